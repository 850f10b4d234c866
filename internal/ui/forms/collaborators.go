package forms

import (
	"sync"
	"time"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
)

// Durable storage keys for the session tokens.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// TokenStorage persists session tokens across page loads. The browser build
// backs it with localStorage.
type TokenStorage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Notifier shows a short-lived message to the user. Calls never block.
type Notifier interface {
	Notify(message string, kind model.NotificationKind)
}

// Navigator moves the browser to another view.
type Navigator interface {
	Navigate(target string)
}

// Scheduler runs fn once after delay.
type Scheduler interface {
	After(delay time.Duration, fn func())
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

// After implements Scheduler.
func (TimerScheduler) After(delay time.Duration, fn func()) {
	time.AfterFunc(delay, fn)
}

// MemoryTokenStorage is an in-process TokenStorage used outside the browser.
type MemoryTokenStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryTokenStorage returns an empty store.
func NewMemoryTokenStorage() *MemoryTokenStorage {
	return &MemoryTokenStorage{values: make(map[string]string)}
}

func (m *MemoryTokenStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryTokenStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryTokenStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type discardNotifier struct{}

func (discardNotifier) Notify(string, model.NotificationKind) {}

type discardNavigator struct{}

func (discardNavigator) Navigate(string) {}

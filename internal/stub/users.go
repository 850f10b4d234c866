// Package stub is an in-memory implementation of the Compass auth backend
// for local development and integration tests.
package stub

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	Nickname     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// UserStore keeps accounts in memory, keyed by case-folded email.
type UserStore struct {
	mu         sync.RWMutex
	byEmail    map[string]User
	bcryptCost int
}

// NewUserStore returns an empty store hashing with cost.
func NewUserStore(cost int) *UserStore {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserStore{byEmail: make(map[string]User), bcryptCost: cost}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a new account.
func (s *UserStore) Create(email, password, nickname string) (User, error) {
	key := emailKey(email)

	s.mu.RLock()
	_, exists := s.byEmail[key]
	s.mu.RUnlock()
	if exists {
		return User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		Nickname:     nickname,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the write lock; hashing ran unlocked.
	if _, exists := s.byEmail[key]; exists {
		return User{}, ErrEmailTaken
	}
	s.byEmail[key] = user
	return user, nil
}

// Authenticate returns the account for email when password matches.
func (s *UserStore) Authenticate(email, password string) (User, error) {
	s.mu.RLock()
	user, ok := s.byEmail[emailKey(email)]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Count reports the number of registered accounts.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEmail)
}

//go:build js && wasm

package wasm

import (
	"errors"
	"fmt"
	"syscall/js"
	"time"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
)

// notificationLifetime is how long a toast stays on screen.
const notificationLifetime = 3 * time.Second

var errStorageUnavailable = errors.New("localStorage is not available")

// localStorageTokens persists session tokens in window.localStorage.
type localStorageTokens struct {
	storage js.Value
}

func newLocalStorageTokens() *localStorageTokens {
	return &localStorageTokens{storage: js.Global().Get("localStorage")}
}

func (l *localStorageTokens) Get(key string) (string, bool) {
	if !l.storage.Truthy() {
		return "", false
	}
	value := l.storage.Call("getItem", key)
	if value.Type() != js.TypeString {
		return "", false
	}
	return value.String(), true
}

func (l *localStorageTokens) Set(key, value string) (err error) {
	if !l.storage.Truthy() {
		return errStorageUnavailable
	}
	// setItem throws on quota errors and in some private modes.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("localStorage setItem %s: %v", key, r)
		}
	}()
	l.storage.Call("setItem", key, value)
	return nil
}

func (l *localStorageTokens) Remove(key string) (err error) {
	if !l.storage.Truthy() {
		return errStorageUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("localStorage removeItem %s: %v", key, r)
		}
	}()
	l.storage.Call("removeItem", key)
	return nil
}

// domNotifier appends toasts to #notifications and removes them after
// notificationLifetime.
type domNotifier struct {
	doc js.Value
}

func (n domNotifier) Notify(message string, kind model.NotificationKind) {
	container := n.doc.Call("getElementById", "notifications")
	if !container.Truthy() {
		js.Global().Get("console").Call("warn", "notification container missing", message)
		return
	}
	el := n.doc.Call("createElement", "div")
	el.Set("className", "notification "+string(kind))
	el.Call("setAttribute", "role", "status")
	el.Set("textContent", message)
	container.Call("appendChild", el)

	var remove js.Func
	remove = js.FuncOf(func(js.Value, []js.Value) any {
		el.Call("remove")
		remove.Release()
		return nil
	})
	js.Global().Call("setTimeout", remove, notificationLifetime.Milliseconds())
}

// locationNavigator performs full page navigations.
type locationNavigator struct{}

func (locationNavigator) Navigate(target string) {
	js.Global().Get("location").Call("assign", target)
}

// consoleWriter forwards structured log lines to console.log.
type consoleWriter struct{}

func (consoleWriter) Write(p []byte) (int, error) {
	console := js.Global().Get("console")
	if console.Truthy() {
		console.Call("log", string(p))
	}
	return len(p), nil
}

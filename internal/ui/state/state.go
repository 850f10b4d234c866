package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
)

// ErrUnknownField is returned when an input names a field the form does not have.
var ErrUnknownField = errors.New("unknown form field")

// AuthForm is the shared auth form instance used by the WASM app.
var AuthForm = NewAuthFormStore()

// AuthFormStore owns the field values, field errors, mode and busy flag of
// one auth form for the lifetime of the page.
type AuthFormStore struct {
	mu        sync.RWMutex
	mode      model.AuthMode
	fields    model.AuthFields
	errors    model.FieldErrors
	busy      bool
	listeners map[int]func(model.AuthFormState)
	nextID    int
}

// NewAuthFormStore constructs an idle store in login mode.
func NewAuthFormStore() *AuthFormStore {
	return &AuthFormStore{
		mode:      model.ModeLogin,
		errors:    make(model.FieldErrors),
		listeners: make(map[int]func(model.AuthFormState)),
	}
}

// Snapshot returns a copy of the current state.
//
// Callers can safely modify the returned value without affecting the store.
func (s *AuthFormStore) Snapshot() model.AuthFormState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *AuthFormStore) snapshotLocked() model.AuthFormState {
	return model.AuthFormState{
		Mode:   s.mode,
		Fields: s.fields,
		Errors: s.errors.Clone(),
		Busy:   s.busy,
	}
}

// Mode reports the current mode.
func (s *AuthFormStore) Mode() model.AuthMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Fields reports the current field values.
func (s *AuthFormStore) Fields() model.AuthFields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields
}

// Busy reports whether a submission is in flight.
func (s *AuthFormStore) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// SetField overwrites a text field and clears that field's error, if any.
// The field is not re-validated until the next submit.
func (s *AuthFormStore) SetField(name, value string) error {
	s.mu.Lock()
	switch name {
	case model.FieldEmail:
		s.fields.Email = value
	case model.FieldPassword:
		s.fields.Password = value
	case model.FieldNickname:
		s.fields.Nickname = value
	case model.FieldPasswordConfirm:
		s.fields.PasswordConfirm = value
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	delete(s.errors, name)
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetChecked overwrites a checkbox field and clears that field's error, if any.
func (s *AuthFormStore) SetChecked(name string, checked bool) error {
	if name != model.FieldAgreeTerms {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	s.mu.Lock()
	s.fields.AgreeTerms = checked
	delete(s.errors, name)
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetMode switches between login and signup. Field values and existing
// errors are left as they are.
func (s *AuthFormStore) SetMode(mode model.AuthMode) {
	s.mu.Lock()
	if s.mode == mode {
		s.mu.Unlock()
		return
	}
	s.mode = mode
	s.mu.Unlock()
	s.notify()
}

// SetErrors replaces the error map. Entries with an empty message are dropped.
func (s *AuthFormStore) SetErrors(errs model.FieldErrors) {
	next := make(model.FieldErrors, len(errs))
	for k, v := range errs {
		if v != "" {
			next[k] = v
		}
	}
	s.mu.Lock()
	s.errors = next
	s.mu.Unlock()
	s.notify()
}

// SetBusy toggles the submission flag.
func (s *AuthFormStore) SetBusy(busy bool) {
	s.mu.Lock()
	if s.busy == busy {
		s.mu.Unlock()
		return
	}
	s.busy = busy
	s.mu.Unlock()
	s.notify()
}

// TryAcquire marks the form busy and reports true, or reports false when a
// submission is already in flight.
func (s *AuthFormStore) TryAcquire() bool {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return false
	}
	s.busy = true
	s.mu.Unlock()
	s.notify()
	return true
}

// ResetAfterSignupSuccess clears everything except the email and returns
// the form to login mode so the new account can sign in right away.
func (s *AuthFormStore) ResetAfterSignupSuccess() {
	s.mu.Lock()
	s.fields = model.AuthFields{Email: s.fields.Email}
	s.errors = make(model.FieldErrors)
	s.mode = model.ModeLogin
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers fn to run after every change. The returned func
// removes it.
func (s *AuthFormStore) Subscribe(fn func(model.AuthFormState)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *AuthFormStore) notify() {
	s.mu.RLock()
	if len(s.listeners) == 0 {
		s.mu.RUnlock()
		return
	}
	snap := s.snapshotLocked()
	listeners := make([]func(model.AuthFormState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

package forms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
	"github.com/Its-donkey/compass-auth/internal/ui/state"
	"github.com/Its-donkey/compass-auth/logging"
)

type notification struct {
	Message string
	Kind    model.NotificationKind
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(message string, kind model.NotificationKind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Message: message, Kind: kind})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *recordingNavigator) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

type manualScheduler struct {
	pending []scheduled
}

func (s *manualScheduler) After(delay time.Duration, fn func()) {
	s.pending = append(s.pending, scheduled{delay: delay, fn: fn})
}

type failingStorage struct{ *MemoryTokenStorage }

func (failingStorage) Set(string, string) error { return errors.New("quota exceeded") }

type harness struct {
	store     *state.AuthFormStore
	storage   *MemoryTokenStorage
	notifier  *recordingNotifier
	navigator *recordingNavigator
	scheduler *manualScheduler
	ctrl      *AuthController
	requests  *atomic.Int32
}

// newHarness starts a backend that answers every request with handler and
// returns a controller wired to recording collaborators.
func newHarness(t *testing.T, handler http.HandlerFunc) *harness {
	t.Helper()
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	h := &harness{
		store:     state.NewAuthFormStore(),
		storage:   NewMemoryTokenStorage(),
		notifier:  &recordingNotifier{},
		navigator: &recordingNavigator{},
		scheduler: &manualScheduler{},
		requests:  &count,
	}
	h.ctrl = NewAuthController(Options{
		Store:     h.store,
		Client:    NewAuthClient(srv.URL, srv.Client(), logging.Discard()),
		Storage:   h.storage,
		Notifier:  h.notifier,
		Navigator: h.navigator,
		Scheduler: h.scheduler,
	})
	return h
}

func (h *harness) fillLogin(t *testing.T, email, password string) {
	t.Helper()
	require.NoError(t, h.store.SetField(model.FieldEmail, email))
	require.NoError(t, h.store.SetField(model.FieldPassword, password))
}

func (h *harness) fillSignup(t *testing.T) {
	t.Helper()
	h.store.SetMode(model.ModeSignup)
	require.NoError(t, h.store.SetField(model.FieldEmail, "new@example.com"))
	require.NoError(t, h.store.SetField(model.FieldPassword, "Abcd123!"))
	require.NoError(t, h.store.SetField(model.FieldPasswordConfirm, "Abcd123!"))
	require.NoError(t, h.store.SetField(model.FieldNickname, "nomad"))
	require.NoError(t, h.store.SetChecked(model.FieldAgreeTerms, true))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestLoginUnauthorizedSetsPasswordError(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
	})
	h.fillLogin(t, "user@example.com", "x")

	outcome := h.ctrl.Submit(context.Background())

	assert.Equal(t, OutcomeUnauthorized, outcome)
	snap := h.store.Snapshot()
	assert.Equal(t, model.FieldErrors{model.FieldPassword: MsgInvalidCredentials}, snap.Errors)
	assert.False(t, snap.Busy)
	assert.Empty(t, h.notifier.all())
	_, stored := h.storage.Get(AccessTokenKey)
	assert.False(t, stored)
}

func TestSignupConflictSetsEmailError(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "duplicate"})
	})
	h.fillSignup(t)

	outcome := h.ctrl.Submit(context.Background())

	assert.Equal(t, OutcomeConflict, outcome)
	snap := h.store.Snapshot()
	assert.Equal(t, model.FieldErrors{model.FieldEmail: MsgEmailInUse}, snap.Errors)
	assert.Equal(t, model.ModeSignup, snap.Mode)
	assert.Equal(t, "nomad", snap.Fields.Nickname)
	assert.False(t, snap.Busy)
}

func TestLoginSuccessPersistsTokensAndSchedulesNavigation(t *testing.T) {
	var got model.LoginRequest
	var requestID string
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, LoginPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		requestID = r.Header.Get(logging.RequestIDHeader)
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]string{
			"accessToken":  "T1",
			"refreshToken": "T2",
			"tokenType":    "Bearer",
		})
	})
	h.fillLogin(t, "user@example.com", "x")

	outcome := h.ctrl.Submit(context.Background())

	require.Equal(t, OutcomeLoggedIn, outcome)
	assert.Equal(t, model.LoginRequest{Email: "user@example.com", Password: "x"}, got)
	assert.NotEmpty(t, requestID)

	access, _ := h.storage.Get(AccessTokenKey)
	refresh, _ := h.storage.Get(RefreshTokenKey)
	assert.Equal(t, "T1", access)
	assert.Equal(t, "T2", refresh)

	assert.Equal(t, []notification{{Message: MsgLoginSuccess, Kind: model.NotifySuccess}}, h.notifier.all())

	// Navigation waits for the scheduler.
	assert.Empty(t, h.navigator.all())
	require.Len(t, h.scheduler.pending, 1)
	assert.Equal(t, NavigationDelay, h.scheduler.pending[0].delay)
	h.scheduler.pending[0].fn()
	assert.Equal(t, []string{MainViewPath}, h.navigator.all())

	assert.False(t, h.store.Busy())
}

func TestLoginSuccessWithoutTokensIsGenericError(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "only-one"})
	})
	h.fillLogin(t, "user@example.com", "x")

	assert.Equal(t, OutcomeServerError, h.ctrl.Submit(context.Background()))
	assert.Equal(t, []notification{{Message: MsgGenericError, Kind: model.NotifyError}}, h.notifier.all())
	assert.Empty(t, h.scheduler.pending)
	_, stored := h.storage.Get(AccessTokenKey)
	assert.False(t, stored)
}

func TestLoginTokenStorageFailureIsReported(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "T1", "refreshToken": "T2"})
	})
	h.ctrl.storage = failingStorage{NewMemoryTokenStorage()}
	h.fillLogin(t, "user@example.com", "x")

	assert.Equal(t, OutcomeServerError, h.ctrl.Submit(context.Background()))
	assert.Empty(t, h.scheduler.pending)
	assert.Equal(t, model.NotifyError, h.notifier.all()[0].Kind)
}

func TestSignupSuccessResetsToLogin(t *testing.T) {
	var got map[string]any
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SignupPath, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusCreated, model.UserResponse{ID: "u1", Email: "new@example.com", Nickname: "nomad"})
	})
	h.fillSignup(t)

	outcome := h.ctrl.Submit(context.Background())

	require.Equal(t, OutcomeSignedUp, outcome)
	assert.Equal(t, map[string]any{
		"email":    "new@example.com",
		"password": "Abcd123!",
		"nickname": "nomad",
	}, got)

	snap := h.store.Snapshot()
	assert.Equal(t, model.ModeLogin, snap.Mode)
	assert.Equal(t, model.AuthFields{Email: "new@example.com"}, snap.Fields)
	assert.Empty(t, snap.Errors)
	assert.False(t, snap.Busy)

	assert.Equal(t, []notification{{Message: MsgSignupSuccess, Kind: model.NotifySuccess}}, h.notifier.all())
	_, stored := h.storage.Get(AccessTokenKey)
	assert.False(t, stored)
	assert.Empty(t, h.scheduler.pending)
}

func TestServerErrorUsesServerMessage(t *testing.T) {
	cases := []struct {
		name string
		body any
		want string
	}{
		{"message", map[string]string{"message": "maintenance window"}, "maintenance window"},
		{"nested", map[string]any{"error": map[string]string{"message": "db down"}}, "db down"},
		{"no message", map[string]string{"status": "error"}, MsgGenericError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusInternalServerError, tc.body)
			})
			h.fillLogin(t, "user@example.com", "x")
			h.store.SetErrors(model.FieldErrors{})

			assert.Equal(t, OutcomeServerError, h.ctrl.Submit(context.Background()))
			assert.Equal(t, []notification{{Message: tc.want, Kind: model.NotifyError}}, h.notifier.all())
			assert.Empty(t, h.store.Snapshot().Errors)
			assert.False(t, h.store.Busy())
		})
	}
}

func TestServerErrorWithPlainTextBody(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	h.fillLogin(t, "user@example.com", "x")

	assert.Equal(t, OutcomeServerError, h.ctrl.Submit(context.Background()))
	assert.Equal(t, MsgGenericError, h.notifier.all()[0].Message)
}

func TestTransportFailureNotifies(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	store := state.NewAuthFormStore()
	notifier := &recordingNotifier{}
	ctrl := NewAuthController(Options{
		Store:    store,
		Client:   NewAuthClient(base, nil, nil),
		Notifier: notifier,
	})
	require.NoError(t, store.SetField(model.FieldEmail, "user@example.com"))
	require.NoError(t, store.SetField(model.FieldPassword, "x"))

	assert.Equal(t, OutcomeTransportError, ctrl.Submit(context.Background()))
	assert.Equal(t, []notification{{Message: MsgNetworkError, Kind: model.NotifyError}}, notifier.all())
	assert.Empty(t, store.Snapshot().Errors)
	assert.False(t, store.Busy())
}

func TestInvalidFormMakesNoRequest(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h.fillLogin(t, "not-an-email", "")

	assert.Equal(t, OutcomeInvalid, h.ctrl.Submit(context.Background()))
	assert.EqualValues(t, 0, h.requests.Load())
	snap := h.store.Snapshot()
	assert.Contains(t, snap.Errors, model.FieldEmail)
	assert.Contains(t, snap.Errors, model.FieldPassword)
	assert.False(t, snap.Busy)
}

func TestValidSubmitClearsStaleErrors(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{})
	})
	h.fillLogin(t, "user@example.com", "x")
	h.store.SetErrors(model.FieldErrors{model.FieldNickname: "stale from signup"})

	h.ctrl.Submit(context.Background())
	assert.Empty(t, h.store.Snapshot().Errors)
}

func TestSubmitWhileBusyIsIgnored(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		writeJSON(w, http.StatusUnauthorized, nil)
	})
	h.fillLogin(t, "user@example.com", "x")

	done := make(chan Outcome, 1)
	go func() { done <- h.ctrl.Submit(context.Background()) }()

	<-entered
	assert.True(t, h.store.Busy())
	assert.Equal(t, OutcomeIgnored, h.ctrl.Submit(context.Background()))

	close(release)
	assert.Equal(t, OutcomeUnauthorized, <-done)
	assert.EqualValues(t, 1, h.requests.Load())
	assert.False(t, h.store.Busy())
}

func TestModeSwitchDuringRequestDoesNotAbort(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		writeJSON(w, http.StatusUnauthorized, nil)
	})
	h.fillLogin(t, "user@example.com", "x")

	done := make(chan Outcome, 1)
	go func() { done <- h.ctrl.Submit(context.Background()) }()

	<-entered
	h.store.SetMode(model.ModeSignup)
	close(release)

	assert.Equal(t, OutcomeUnauthorized, <-done)
	snap := h.store.Snapshot()
	assert.Equal(t, model.ModeSignup, snap.Mode)
	assert.Equal(t, model.FieldErrors{model.FieldPassword: MsgInvalidCredentials}, snap.Errors)
}

func TestLogoutRevokesAndClearsTokens(t *testing.T) {
	var auth string
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, LogoutPath, r.URL.Path)
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, h.storage.Set(AccessTokenKey, "T1"))
	require.NoError(t, h.storage.Set(RefreshTokenKey, "T2"))

	require.NoError(t, h.ctrl.Logout(context.Background()))

	assert.Equal(t, "Bearer T1", auth)
	_, hasAccess := h.storage.Get(AccessTokenKey)
	_, hasRefresh := h.storage.Get(RefreshTokenKey)
	assert.False(t, hasAccess)
	assert.False(t, hasRefresh)
	assert.Equal(t, []notification{{Message: MsgLogoutSuccess, Kind: model.NotifyInfo}}, h.notifier.all())
	assert.Equal(t, []string{LoginViewPath}, h.navigator.all())
}

func TestLogoutClearsTokensEvenWhenBackendFails(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
	})
	require.NoError(t, h.storage.Set(AccessTokenKey, "T1"))
	require.NoError(t, h.storage.Set(RefreshTokenKey, "T2"))

	err := h.ctrl.Logout(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	_, hasAccess := h.storage.Get(AccessTokenKey)
	assert.False(t, hasAccess)
	assert.Equal(t, []string{LoginViewPath}, h.navigator.all())
}

func TestLogoutWithoutSessionSkipsBackend(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, h.ctrl.Logout(context.Background()))
	assert.EqualValues(t, 0, h.requests.Load())
	assert.Equal(t, []string{LoginViewPath}, h.navigator.all())
}

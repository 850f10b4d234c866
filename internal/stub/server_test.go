package stub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/compass-auth/internal/config"
	"github.com/Its-donkey/compass-auth/internal/ui/forms"
	"github.com/Its-donkey/compass-auth/internal/ui/model"
	"github.com/Its-donkey/compass-auth/internal/ui/state"
	"github.com/Its-donkey/compass-auth/logging"
)

func testConfig() config.StubConfig {
	return config.StubConfig{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		BcryptCost: 4,
	}
}

func doJSON(t *testing.T, s *Server, method, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func TestSignupThenLogin(t *testing.T) {
	s := New(testConfig(), nil)

	resp, body := doJSON(t, s, http.MethodPost, "/api/auth/signup",
		`{"email":"new@example.com","password":"Abcd123!","nickname":"nomad"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "new@example.com", body["email"])
	assert.Equal(t, "nomad", body["nickname"])
	assert.NotEmpty(t, body["id"])

	resp, body = doJSON(t, s, http.MethodPost, "/api/auth/login",
		`{"email":"NEW@example.com","password":"Abcd123!"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
	assert.Equal(t, "Bearer", body["tokenType"])
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	s := New(testConfig(), nil)
	payload := `{"email":"dup@example.com","password":"Abcd123!","nickname":"one"}`

	resp, _ := doJSON(t, s, http.MethodPost, "/api/auth/signup", payload, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, s, http.MethodPost, "/api/auth/signup",
		`{"email":"Dup@Example.com","password":"Other123!","nickname":"two"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, ErrEmailTaken.Error(), body["message"])
	assert.Equal(t, 1, s.Users().Count())
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := New(testConfig(), nil)
	_, err := s.Users().Create("user@example.com", "Abcd123!", "user")
	require.NoError(t, err)

	for _, payload := range []string{
		`{"email":"user@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"Abcd123!"}`,
	} {
		resp, body := doJSON(t, s, http.MethodPost, "/api/auth/login", payload, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, ErrInvalidCredentials.Error(), body["message"])
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	s := New(testConfig(), nil)
	resp, body := doJSON(t, s, http.MethodPost, "/api/auth/login", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request body", body["message"])
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	s := New(testConfig(), nil)
	user, err := s.Users().Create("user@example.com", "Abcd123!", "user")
	require.NoError(t, err)
	access, _, err := s.tokens.Issue(user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, s.tokens.ActiveRefreshTokens(user.ID))

	bearer := map[string]string{"Authorization": "Bearer " + access}
	resp, _ := doJSON(t, s, http.MethodPost, "/api/auth/logout", "", bearer)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, s.tokens.ActiveRefreshTokens(user.ID))

	resp, _ = doJSON(t, s, http.MethodPost, "/api/auth/logout", "", bearer)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRequiresBearer(t *testing.T) {
	s := New(testConfig(), nil)
	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-a-jwt"} {
		resp, body := doJSON(t, s, http.MethodPost, "/api/auth/logout", "", map[string]string{"Authorization": header})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q", header)
		assert.NotEmpty(t, body["message"])
	}
}

func TestExpiredAccessTokenIsRejected(t *testing.T) {
	s := New(testConfig(), nil)
	issued := time.Now().Add(-time.Hour)
	s.tokens.now = func() time.Time { return issued }
	access, _, err := s.tokens.Issue("u1")
	require.NoError(t, err)
	s.tokens.now = time.Now

	_, err = s.tokens.Parse(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOAuthRouteIsNotImplemented(t *testing.T) {
	s := New(testConfig(), nil)
	resp, body := doJSON(t, s, http.MethodGet, "/oauth2/authorization/Google", "", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Contains(t, body["message"], "google")
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	s := New(testConfig(), nil)
	resp, body := doJSON(t, s, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["message"])
}

func TestRequestIDIsEchoedAndLogged(t *testing.T) {
	logger := logging.New("auth-stub", logging.DEBUG)
	entries := make(chan logging.Entry, 4)
	logger.Subscribe(entries)
	s := New(testConfig(), logger)

	resp, _ := doJSON(t, s, http.MethodGet, "/healthz", "", map[string]string{logging.RequestIDHeader: "req-42"})
	assert.Equal(t, "req-42", resp.Header.Get(logging.RequestIDHeader))

	entry := <-entries
	assert.Equal(t, "req-42", entry.RequestID)
	assert.Equal(t, "stub", entry.Category)
	assert.EqualValues(t, http.StatusOK, entry.Fields["status"])
}

// The browser controller and the stub agree on the wire contract.
func TestAuthControllerAgainstStub(t *testing.T) {
	s := New(testConfig(), nil)
	srv := httptest.NewServer(adaptor.FiberApp(s.App()))
	t.Cleanup(srv.Close)

	store := state.NewAuthFormStore()
	storage := forms.NewMemoryTokenStorage()
	ctrl := forms.NewAuthController(forms.Options{
		Store:     store,
		Client:    forms.NewAuthClient(srv.URL, srv.Client(), nil),
		Storage:   storage,
		Scheduler: noopScheduler{},
	})
	ctx := context.Background()

	store.SetMode(model.ModeSignup)
	require.NoError(t, store.SetField(model.FieldEmail, "trip@example.com"))
	require.NoError(t, store.SetField(model.FieldPassword, "Abcd123!"))
	require.NoError(t, store.SetField(model.FieldPasswordConfirm, "Abcd123!"))
	require.NoError(t, store.SetField(model.FieldNickname, "tripper"))
	require.NoError(t, store.SetChecked(model.FieldAgreeTerms, true))
	require.Equal(t, forms.OutcomeSignedUp, ctrl.Submit(ctx))

	// Signing up again with the same email conflicts.
	store.SetMode(model.ModeSignup)
	require.NoError(t, store.SetField(model.FieldPassword, "Abcd123!"))
	require.NoError(t, store.SetField(model.FieldPasswordConfirm, "Abcd123!"))
	require.NoError(t, store.SetField(model.FieldNickname, "tripper"))
	require.NoError(t, store.SetChecked(model.FieldAgreeTerms, true))
	require.Equal(t, forms.OutcomeConflict, ctrl.Submit(ctx))

	store.SetMode(model.ModeLogin)
	require.NoError(t, store.SetField(model.FieldPassword, "wrong"))
	require.Equal(t, forms.OutcomeUnauthorized, ctrl.Submit(ctx))

	require.NoError(t, store.SetField(model.FieldPassword, "Abcd123!"))
	require.Equal(t, forms.OutcomeLoggedIn, ctrl.Submit(ctx))
	access, ok := storage.Get(forms.AccessTokenKey)
	require.True(t, ok)
	_, err := s.tokens.Parse(access)
	require.NoError(t, err)

	require.NoError(t, ctrl.Logout(ctx))
	_, err = s.tokens.Parse(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type noopScheduler struct{}

func (noopScheduler) After(time.Duration, func()) {}

package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
	"github.com/Its-donkey/compass-auth/logging"
)

// Backend routes, relative to the API base URL.
const (
	LoginPath     = "/api/auth/login"
	SignupPath    = "/api/auth/signup"
	LogoutPath    = "/api/auth/logout"
	OAuthPathRoot = "/oauth2/authorization/"
)

var (
	// ErrTransport wraps failures that prevented any HTTP response.
	ErrTransport = errors.New("auth backend unreachable")
	// ErrMissingTokens is returned when a login succeeds without both tokens.
	ErrMissingTokens = errors.New("login response did not include session tokens")
)

// StatusError reports a non-2xx response from the auth backend.
type StatusError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("auth backend returned %d", e.Status)
}

// AuthClient talks to the authentication backend. Requests carry an
// X-Request-ID so browser and server logs can be correlated.
type AuthClient struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// NewAuthClient builds a client for baseURL. An empty baseURL keeps requests
// relative to the page origin. No timeout is applied unless httpClient sets one.
func NewAuthClient(baseURL string, httpClient *http.Client, logger *logging.Logger) *AuthClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AuthClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// BaseURL reports the normalised API base.
func (c *AuthClient) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for session tokens.
func (c *AuthClient) Login(ctx context.Context, payload model.LoginRequest) (model.SessionTokens, error) {
	body, err := c.post(ctx, LoginPath, payload, "")
	if err != nil {
		return model.SessionTokens{}, err
	}
	var resp model.LoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.SessionTokens{}, fmt.Errorf("%w: %v", ErrMissingTokens, err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return model.SessionTokens{}, ErrMissingTokens
	}
	return resp.SessionTokens, nil
}

// Signup registers a new account. The returned user is best effort: a 2xx
// with an unexpected body still counts as success.
func (c *AuthClient) Signup(ctx context.Context, payload model.SignupRequest) (model.UserResponse, error) {
	body, err := c.post(ctx, SignupPath, payload, "")
	if err != nil {
		return model.UserResponse{}, err
	}
	var user model.UserResponse
	_ = json.Unmarshal(body, &user)
	return user, nil
}

// Logout revokes the session identified by accessToken.
func (c *AuthClient) Logout(ctx context.Context, accessToken string) error {
	_, err := c.post(ctx, LogoutPath, nil, accessToken)
	return err
}

// OAuthURL returns the redirect target for provider.
func (c *AuthClient) OAuthURL(provider string) string {
	return c.baseURL + OAuthPathRoot + strings.ToLower(provider)
}

func (c *AuthClient) post(ctx context.Context, path string, payload any, bearer string) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(logging.RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	log := c.logger.WithRequestID(requestID).WithCategory("auth").WithField("path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("auth request failed", err)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("reading auth response failed", err)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	log.WithField("status", resp.StatusCode).Debug("auth response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Status:    resp.StatusCode,
			Message:   ErrorMessage(body),
			RequestID: requestID,
		}
	}
	return body, nil
}

// ErrorMessage extracts a human readable message from an error body. It
// accepts {"message": "..."} and {"error": {"message": "..."}} and returns
// an empty string for anything else.
func ErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// {"error": "text"} fails the nested decode; try the flat shape alone.
		var flat model.ErrorResponse
		if json.Unmarshal(body, &flat) == nil {
			return strings.TrimSpace(flat.Message)
		}
		return ""
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(payload.Error.Message)
}

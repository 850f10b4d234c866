package forms

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
	"github.com/Its-donkey/compass-auth/internal/ui/state"
	"github.com/Its-donkey/compass-auth/logging"
)

// Views the controller navigates to.
const (
	MainViewPath  = "/main"
	LoginViewPath = "/login"
)

// NavigationDelay leaves the login success notification on screen before
// the page changes.
const NavigationDelay = 1500 * time.Millisecond

// User facing messages.
const (
	MsgEmailInUse         = "email already in use"
	MsgInvalidCredentials = "invalid email or password"
	MsgGenericError       = "Something went wrong while processing your request."
	MsgNetworkError       = "Could not reach the server. Please try again shortly."
	MsgLoginSuccess       = "Logged in successfully. Taking you to your trips…"
	MsgSignupSuccess      = "Account created. Please log in with your new account."
	MsgLogoutSuccess      = "You have been logged out."
)

// Outcome summarises how a submission ended.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeInvalid
	OutcomeLoggedIn
	OutcomeSignedUp
	OutcomeConflict
	OutcomeUnauthorized
	OutcomeServerError
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeLoggedIn:
		return "logged_in"
	case OutcomeSignedUp:
		return "signed_up"
	case OutcomeConflict:
		return "conflict"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeServerError:
		return "server_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Options wires an AuthController to its collaborators. Nil fields fall back
// to the shared form store, a same-origin client, in-memory token storage,
// no-op notifier and navigator, and time.AfterFunc scheduling.
type Options struct {
	Store     *state.AuthFormStore
	Client    *AuthClient
	Storage   TokenStorage
	Notifier  Notifier
	Navigator Navigator
	Scheduler Scheduler
	Logger    *logging.Logger
}

// AuthController runs the validate, submit and resolve cycle for the auth
// form and the related session actions.
type AuthController struct {
	store     *state.AuthFormStore
	client    *AuthClient
	storage   TokenStorage
	notifier  Notifier
	navigator Navigator
	scheduler Scheduler
	logger    *logging.Logger
}

// NewAuthController applies defaults to opts and returns a controller.
func NewAuthController(opts Options) *AuthController {
	c := &AuthController{
		store:     opts.Store,
		client:    opts.Client,
		storage:   opts.Storage,
		notifier:  opts.Notifier,
		navigator: opts.Navigator,
		scheduler: opts.Scheduler,
		logger:    opts.Logger,
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.store == nil {
		c.store = state.AuthForm
	}
	if c.client == nil {
		c.client = NewAuthClient("", nil, c.logger)
	}
	if c.storage == nil {
		c.storage = NewMemoryTokenStorage()
	}
	if c.notifier == nil {
		c.notifier = discardNotifier{}
	}
	if c.navigator == nil {
		c.navigator = discardNavigator{}
	}
	if c.scheduler == nil {
		c.scheduler = TimerScheduler{}
	}
	return c
}

// Store exposes the form store the controller drives.
func (c *AuthController) Store() *state.AuthFormStore {
	return c.store
}

// Submit validates the form and, when valid, sends it to the backend for
// the current mode. It returns once the response has been resolved. A call
// made while another submission is in flight does nothing.
func (c *AuthController) Submit(ctx context.Context) Outcome {
	snap := c.store.Snapshot()
	if snap.Busy {
		c.logger.Debug("auth", "submit ignored while busy", nil)
		return OutcomeIgnored
	}

	errs := ValidateAuthForm(snap.Mode, snap.Fields)
	c.store.SetErrors(errs)
	if len(errs) > 0 {
		c.logger.Debug("auth", "form validation failed", map[string]any{
			"mode":   snap.Mode.String(),
			"fields": len(errs),
		})
		return OutcomeInvalid
	}

	if !c.store.TryAcquire() {
		return OutcomeIgnored
	}
	defer c.store.SetBusy(false)

	var outcome Outcome
	if snap.Mode == model.ModeSignup {
		outcome = c.signup(ctx, snap.Fields)
	} else {
		outcome = c.login(ctx, snap.Fields)
	}
	c.logger.Info("auth", "submission resolved", map[string]any{
		"mode":    snap.Mode.String(),
		"outcome": outcome.String(),
	})
	return outcome
}

func (c *AuthController) login(ctx context.Context, fields model.AuthFields) Outcome {
	tokens, err := c.client.Login(ctx, model.LoginRequest{
		Email:    fields.Email,
		Password: fields.Password,
	})
	if err != nil {
		return c.resolveFailure(err)
	}

	if err := c.persistTokens(tokens); err != nil {
		c.logger.Error("auth", "storing session tokens failed", err, nil)
		c.notifier.Notify(MsgGenericError, model.NotifyError)
		return OutcomeServerError
	}

	c.notifier.Notify(MsgLoginSuccess, model.NotifySuccess)
	c.scheduler.After(NavigationDelay, func() {
		c.navigator.Navigate(MainViewPath)
	})
	return OutcomeLoggedIn
}

func (c *AuthController) signup(ctx context.Context, fields model.AuthFields) Outcome {
	if _, err := c.client.Signup(ctx, model.SignupRequest{
		Email:    fields.Email,
		Password: fields.Password,
		Nickname: fields.Nickname,
	}); err != nil {
		return c.resolveFailure(err)
	}
	c.notifier.Notify(MsgSignupSuccess, model.NotifySuccess)
	c.store.ResetAfterSignupSuccess()
	return OutcomeSignedUp
}

func (c *AuthController) resolveFailure(err error) Outcome {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		log := c.logger.WithRequestID(statusErr.RequestID).
			WithCategory("auth").
			WithField("status", statusErr.Status)
		switch statusErr.Status {
		case http.StatusConflict:
			log.Info("email already registered")
			c.store.SetErrors(model.FieldErrors{model.FieldEmail: MsgEmailInUse})
			return OutcomeConflict
		case http.StatusUnauthorized:
			log.Info("credentials rejected")
			c.store.SetErrors(model.FieldErrors{model.FieldPassword: MsgInvalidCredentials})
			return OutcomeUnauthorized
		}
		log.Warn("auth backend returned an error")
		msg := statusErr.Message
		if msg == "" {
			msg = MsgGenericError
		}
		c.notifier.Notify(msg, model.NotifyError)
		return OutcomeServerError
	case errors.Is(err, ErrTransport):
		c.notifier.Notify(MsgNetworkError, model.NotifyError)
		return OutcomeTransportError
	default:
		c.logger.Error("auth", "unexpected auth response", err, nil)
		c.notifier.Notify(MsgGenericError, model.NotifyError)
		return OutcomeServerError
	}
}

func (c *AuthController) persistTokens(tokens model.SessionTokens) error {
	if err := c.storage.Set(AccessTokenKey, tokens.AccessToken); err != nil {
		return err
	}
	return c.storage.Set(RefreshTokenKey, tokens.RefreshToken)
}

// Logout revokes the stored session on the backend, drops both tokens
// whatever the backend answers, and returns to the login view. The returned
// error reports backend or storage failures after the fact.
func (c *AuthController) Logout(ctx context.Context) error {
	var revokeErr error
	if access, ok := c.storage.Get(AccessTokenKey); ok && access != "" {
		revokeErr = c.client.Logout(ctx, access)
		if revokeErr != nil {
			c.logger.Warn("auth", "logout request failed", map[string]any{"error": revokeErr.Error()})
		}
	}

	err := errors.Join(
		revokeErr,
		c.storage.Remove(AccessTokenKey),
		c.storage.Remove(RefreshTokenKey),
	)

	c.notifier.Notify(MsgLogoutSuccess, model.NotifyInfo)
	c.navigator.Navigate(LoginViewPath)
	return err
}

package model

import "strings"

// AuthMode selects which fields the auth form requires and which endpoint
// receives the submission.
type AuthMode int

const (
	ModeLogin AuthMode = iota
	ModeSignup
)

func (m AuthMode) String() string {
	switch m {
	case ModeLogin:
		return "login"
	case ModeSignup:
		return "signup"
	default:
		return "unknown"
	}
}

// ParseAuthMode converts "login"/"signup" (case-insensitive) to an AuthMode.
func ParseAuthMode(value string) (AuthMode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "login":
		return ModeLogin, true
	case "signup":
		return ModeSignup, true
	default:
		return ModeLogin, false
	}
}

// Field names double as ErrorMap keys and DOM input names.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldNickname        = "nickname"
	FieldPasswordConfirm = "passwordConfirm"
	FieldAgreeTerms      = "agreeTerms"
)

// AuthFields holds every input of the auth card. Nickname, PasswordConfirm
// and AgreeTerms only matter in signup mode.
type AuthFields struct {
	Email           string
	Password        string
	Nickname        string
	PasswordConfirm string
	AgreeTerms      bool
}

// FieldErrors maps a field name to the message shown under it. A missing
// key means the field is valid.
type FieldErrors map[string]string

// Clone returns an independent copy.
func (e FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// AuthFormState is a point-in-time view of the auth form.
type AuthFormState struct {
	Mode   AuthMode
	Fields AuthFields
	Errors FieldErrors
	Busy   bool
}

// SessionTokens are issued by a successful login.
type SessionTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// LoginResponse is the success body of POST /api/auth/login. Fields beyond
// the two tokens are ignored.
type LoginResponse struct {
	SessionTokens
}

// UserResponse is the body returned by a successful signup.
type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// ErrorResponse is the optional error body returned by the backend.
type ErrorResponse struct {
	Message string `json:"message"`
}

// NotificationKind selects the styling of a transient notification.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// SocialProvider is a login button rendered under the form.
type SocialProvider struct {
	ID    string
	Label string
}

// SocialProviders lists the providers offered on the auth card.
var SocialProviders = []SocialProvider{
	{ID: "google", Label: "Google"},
	{ID: "kakao", Label: "Kakao"},
}

package stub

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers malformed, expired and revoked access tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenIssuer signs HS256 access tokens and hands out opaque refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
	refresh map[string]refreshGrant
}

type refreshGrant struct {
	userID  string
	expires time.Time
}

// NewTokenIssuer builds an issuer.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		revoked:    make(map[string]time.Time),
		refresh:    make(map[string]refreshGrant),
	}
}

// Issue creates an access and refresh token pair for userID.
func (t *TokenIssuer) Issue(userID string) (access, refresh string, err error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
	}
	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}

	refresh = uuid.NewString()
	t.mu.Lock()
	t.refresh[refresh] = refreshGrant{userID: userID, expires: now.Add(t.refreshTTL)}
	t.mu.Unlock()
	return access, refresh, nil
}

// Parse validates an access token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	t.mu.Lock()
	_, revoked := t.revoked[claims.ID]
	t.mu.Unlock()
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke invalidates the access token identified by claims and every refresh
// token issued to the same user.
func (t *TokenIssuer) Revoke(claims *jwt.RegisteredClaims) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var until time.Time
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	t.revoked[claims.ID] = until
	for token, grant := range t.refresh {
		if grant.userID == claims.Subject {
			delete(t.refresh, token)
		}
	}
}

// ActiveRefreshTokens reports unexpired refresh tokens held for userID.
func (t *TokenIssuer) ActiveRefreshTokens(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	n := 0
	for _, grant := range t.refresh {
		if grant.userID == userID && grant.expires.After(now) {
			n++
		}
	}
	return n
}

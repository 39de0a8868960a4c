package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotAuthenticated = errors.New("identity: not authenticated")

// Provider is the external identity collaborator. The core only consumes a
// bearer token and an authenticated/unauthenticated signal; token issuance
// lives with the identity provider itself.
type Provider interface {
	Token(ctx context.Context) (string, error)
	Authenticated() bool
}

// StaticProvider serves a pre-issued bearer token. When the token is a JWT,
// its registered claims are inspected locally (without signature
// verification, which belongs to the gateway) so an expired token reads as
// unauthenticated instead of failing at identify time.
type StaticProvider struct {
	token string
	now   func() time.Time
}

func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token, now: time.Now}
}

func (p *StaticProvider) Authenticated() bool {
	if p.token == "" {
		return false
	}
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(p.token, &claims)
	if err != nil {
		// Opaque token: nothing to inspect, assume live.
		return true
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(p.now()) {
		return false
	}
	return true
}

func (p *StaticProvider) Token(ctx context.Context) (string, error) {
	if !p.Authenticated() {
		return "", ErrNotAuthenticated
	}
	return p.token, nil
}

// Subject returns the JWT subject claim when present, or "" for opaque
// tokens. Used as a pre-READY hint for the current user id.
func (p *StaticProvider) Subject() string {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(p.token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}

// Package auth gates the admin API. Admins sign in with email and password
// against Firebase (or a single locally configured account) and then send the
// returned token as a Bearer credential.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned for a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned when no verifier accepts a token.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnavailable means the identity provider could not be reached.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Identity is the signed-in admin.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Identity  Identity  `json:"identity"`
}

// Verifier checks a bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// SignIner exchanges credentials for a token.
type SignIner interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
}

// Chain accepts a token if any of its verifiers does.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, token string) (*Identity, error) {
	var lastErr error = ErrInvalidToken
	for _, v := range c {
		id, err := v.Verify(ctx, token)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
	}
	return nil, lastErr
}

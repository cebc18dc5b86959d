package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer = "bagshop"
	tokenTTL    = 12 * time.Hour
)

type adminClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Local authenticates one admin account configured by email and bcrypt hash
// and issues HS256 tokens.
type Local struct {
	email   string
	hash    []byte
	secret  []byte
	nowFunc func() time.Time
}

// NewLocal returns nil when the account or secret is not configured.
func NewLocal(email, passwordHash, secret string) *Local {
	if email == "" || passwordHash == "" || secret == "" {
		return nil
	}
	return &Local{
		email:   strings.ToLower(strings.TrimSpace(email)),
		hash:    []byte(passwordHash),
		secret:  []byte(secret),
		nowFunc: time.Now,
	}
}

// HashPassword is a helper for generating ADMIN_PASSWORD_HASH values.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (l *Local) SignIn(_ context.Context, email, password string) (*Session, error) {
	if strings.ToLower(strings.TrimSpace(email)) != l.email {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(l.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := l.nowFunc()
	exp := now.Add(tokenTTL)
	claims := adminClaims{
		Email: l.email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   l.email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{
		Token:     signed,
		ExpiresAt: exp.UTC(),
		Identity:  Identity{UID: l.email, Email: l.email},
	}, nil
}

func (l *Local) Verify(_ context.Context, token string) (*Identity, error) {
	var claims adminClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(l.nowFunc),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Email != l.email {
		return nil, ErrInvalidToken
	}
	return &Identity{UID: claims.Subject, Email: claims.Email}, nil
}

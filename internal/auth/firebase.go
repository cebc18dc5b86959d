package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// idTokenVerifier is the part of the Firebase auth client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Firebase verifies Firebase ID tokens and signs admins in with their
// Firebase email and password.
type Firebase struct {
	tokens  idTokenVerifier
	relying *identitytoolkit.RelyingpartyService
	nowFunc func() time.Time
}

// NewFirebase connects to the Firebase project. credentialsJSON may be empty
// to use application default credentials. apiKey enables password sign-in.
func NewFirebase(ctx context.Context, projectID, credentialsJSON, apiKey string) (*Firebase, error) {
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}

	f := &Firebase{tokens: client, nowFunc: time.Now}
	if apiKey != "" {
		if err := f.enableSignIn(ctx, option.WithAPIKey(apiKey)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Firebase) enableSignIn(ctx context.Context, opts ...option.ClientOption) error {
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("init identity toolkit: %w", err)
	}
	f.relying = svc.Relyingparty
	return nil
}

// CanSignIn reports whether password sign-in is configured.
func (f *Firebase) CanSignIn() bool { return f.relying != nil }

func (f *Firebase) Verify(ctx context.Context, token string) (*Identity, error) {
	t, err := f.tokens.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	email, _ := t.Claims["email"].(string)
	return &Identity{UID: t.UID, Email: email}, nil
}

// SignIn calls the Identity Toolkit password endpoint.
func (f *Firebase) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if f.relying == nil {
		return nil, ErrUnavailable
	}
	resp, err := f.relying.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Join(ErrUnavailable, err)
	}
	return &Session{
		Token:     resp.IdToken,
		ExpiresAt: f.nowFunc().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC(),
		Identity:  Identity{UID: resp.LocalId, Email: resp.Email},
	}, nil
}

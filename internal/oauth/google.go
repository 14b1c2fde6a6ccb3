// Package oauth verifies third-party identity tokens.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

var ErrInvalidToken = errors.New("invalid google id token")

// GoogleProfile is the part of a verified Google ID token the store uses.
type GoogleProfile struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

type tokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier checks Google Sign-In credentials against one OAuth client ID.
type GoogleVerifier struct {
	validator tokenValidator
	clientID  string
}

func NewGoogleVerifier(ctx context.Context, clientID string, timeout time.Duration) (*GoogleVerifier, error) {
	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("google validator: %w", err)
	}
	return &GoogleVerifier{validator: v, clientID: clientID}, nil
}

// Verify checks signature, expiry, issuer and audience of credential.
func (g *GoogleVerifier) Verify(ctx context.Context, credential string) (*GoogleProfile, error) {
	payload, err := g.validator.Validate(ctx, credential, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return profileFromPayload(payload), nil
}

func profileFromPayload(p *idtoken.Payload) *GoogleProfile {
	email, _ := p.Claims["email"].(string)
	name, _ := p.Claims["name"].(string)
	verified, _ := p.Claims["email_verified"].(bool)
	return &GoogleProfile{Subject: p.Subject, Email: email, Name: name, EmailVerified: verified}
}

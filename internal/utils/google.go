package utils

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleProfile is what the login flow needs from a verified ID token.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier checks a Google Sign-In ID token.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*GoogleProfile, error)
}

// IDTokenVerifier validates tokens against Google's published keys.
type IDTokenVerifier struct {
	ClientID string
}

func (v IDTokenVerifier) Verify(ctx context.Context, token string) (*GoogleProfile, error) {
	if v.ClientID == "" {
		return nil, errors.New("google login is not configured")
	}
	payload, err := idtoken.Validate(ctx, token, v.ClientID)
	if err != nil {
		return nil, fmt.Errorf("validate google id token: %w", err)
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, errors.New("google id token has no email")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, errors.New("google account email is not verified")
	}
	name, _ := payload.Claims["name"].(string)
	return &GoogleProfile{Subject: payload.Subject, Email: email, Name: name}, nil
}

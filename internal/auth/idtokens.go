package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"
)

// ExternalTokenClaims is the identity asserted by a Google or Apple ID
// token after its signature, audience and expiry were checked.
type ExternalTokenClaims struct {
	Issuer  string
	Subject string
	Email   string
	// EmailVerified is set when the provider vouches for Email. Only a
	// verified email may be used to link an existing account.
	EmailVerified bool
}

var (
	googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}
	appleIssuers  = []string{"https://appleid.apple.com"}
)

func VerifyGoogleIDToken(ctx context.Context, tokenString, expectedAud string) (*ExternalTokenClaims, error) {
	if err := checkIDTokenInput("google", tokenString, expectedAud); err != nil {
		return nil, err
	}
	payload, err := idtoken.Validate(ctx, tokenString, expectedAud)
	if err != nil {
		return nil, fmt.Errorf("google id token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	return newClaims(googleIssuers, payload.Issuer, payload.Subject, email, verified)
}

func VerifyAppleIDToken(ctx context.Context, tokenString, expectedAud string) (*ExternalTokenClaims, error) {
	if err := checkIDTokenInput("apple", tokenString, expectedAud); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tok, err := validator.NewClient().VerifyIdToken(expectedAud, tokenString)
	if err != nil {
		return nil, fmt.Errorf("apple id token: %w", err)
	}
	// Apple only releases addresses it has verified, relay addresses included.
	return newClaims(appleIssuers, tok.Iss, tok.Sub, tok.Email, tok.Email != "")
}

func checkIDTokenInput(provider, token, audience string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("missing id token")
	}
	if strings.TrimSpace(audience) == "" {
		return fmt.Errorf("missing %s client id", provider)
	}
	return nil
}

func newClaims(issuers []string, iss, sub, email string, verified bool) (*ExternalTokenClaims, error) {
	if !slices.Contains(issuers, iss) {
		return nil, fmt.Errorf("unexpected issuer: %s", iss)
	}
	if sub == "" {
		return nil, errors.New("id token has no subject")
	}
	email = strings.TrimSpace(strings.ToLower(email))
	return &ExternalTokenClaims{
		Issuer:        iss,
		Subject:       sub,
		Email:         email,
		EmailVerified: verified && email != "",
	}, nil
}

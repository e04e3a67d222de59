package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleAuthenticator performs the Google OAuth 2.0 / OIDC authorization-code
// flow: it builds consent URLs and exchanges callback codes for a verified
// Identity.
type GoogleAuthenticator struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleAuthenticator discovers Google's OIDC endpoints and configures the
// client. The requested scopes are fixed to openid, profile, and email.
func NewGoogleAuthenticator(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleAuthenticator, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})

	return &GoogleAuthenticator{config: config, verifier: verifier}, nil
}

// AuthURL generates the Google consent URL carrying the given state token.
func (g *GoogleAuthenticator) AuthURL(state string) string {
	return g.config.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades the authorization code for tokens, verifies the ID token,
// and returns the resulting Identity. Failures are reported as ProviderErrors
// so the gateway can log the kind without leaking it to the client.
func (g *GoogleAuthenticator) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, &ProviderError{Kind: classifyExchangeError(err), Err: err}
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, &ProviderError{Kind: KindProviderUnavailable, Err: errors.New("no id_token in token response")}
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, &ProviderError{Kind: KindInvalidCode, Err: fmt.Errorf("verify id_token: %w", err)}
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, &ProviderError{Kind: KindProviderUnavailable, Err: fmt.Errorf("parse claims: %w", err)}
	}
	if claims.Sub == "" {
		return nil, &ProviderError{Kind: KindProviderUnavailable, Err: errors.New("id_token missing sub claim")}
	}

	var raw json.RawMessage
	_ = idToken.Claims(&raw)

	identity := &Identity{
		Provider:       "google",
		ProviderUserID: claims.Sub,
		DisplayName:    claims.Name,
		EmailVerified:  claims.EmailVerified,
		Picture:        claims.Picture,
		Raw:            raw,
	}
	if claims.Email != "" {
		identity.Emails = []string{claims.Email}
	}

	return identity, nil
}

// classifyExchangeError maps token-endpoint failures onto the ProviderError
// taxonomy. A 4xx from the endpoint means the code (or our request) was bad;
// anything else is the provider being unreachable or broken.
func classifyExchangeError(err error) ProviderErrorKind {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return KindProviderUnavailable
	}

	switch retrieveErr.ErrorCode {
	case "access_denied", "invalid_scope":
		return KindScopeDenied
	case "invalid_grant", "invalid_request", "unauthorized_client":
		return KindInvalidCode
	}

	if retrieveErr.Response != nil &&
		retrieveErr.Response.StatusCode >= http.StatusBadRequest &&
		retrieveErr.Response.StatusCode < http.StatusInternalServerError {
		return KindInvalidCode
	}

	return KindProviderUnavailable
}

// GenerateState generates a cryptographically secure random state token.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

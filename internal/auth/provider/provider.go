package provider

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	"sicxe-web/internal/auth"
)

var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrTokenExchange   = errors.New("oauth token exchange failed")
	ErrProfileFetch    = errors.New("oauth profile fetch failed")
)

// Adapter defines the contract every external auth provider must
// implement. Implementations return identity facts only and must not
// touch the session.
type Adapter interface {
	// Name returns the provider identifier (e.g. "github", "google").
	Name() string

	// AuthCodeURL returns the provider authorization URL. State and the
	// PKCE verifier are supplied by the caller; an empty verifier
	// disables PKCE.
	AuthCodeURL(state string, verifier string) string

	// Exchange trades the authorization code for an access token.
	// Failures wrap ErrTokenExchange.
	Exchange(ctx context.Context, code string, verifier string) (*oauth2.Token, error)

	// Identity fetches the user profile and normalizes it. Failures wrap
	// ErrProfileFetch. The result is not validated here.
	Identity(ctx context.Context, token *oauth2.Token) (*auth.Identity, error)
}

// WithHTTPClient makes oauth2 and go-oidc use client for calls made
// with the returned context.
func WithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// PKCEOptions returns the auth URL options for verifier.
func PKCEOptions(verifier string) []oauth2.AuthCodeOption {
	if verifier == "" {
		return nil
	}
	return []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
}

// VerifierOptions returns the exchange options for verifier.
func VerifierOptions(verifier string) []oauth2.AuthCodeOption {
	if verifier == "" {
		return nil
	}
	return []oauth2.AuthCodeOption{oauth2.VerifierOption(verifier)}
}

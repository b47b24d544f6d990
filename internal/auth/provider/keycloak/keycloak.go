package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"sicxe-web/internal/auth"
	"sicxe-web/internal/auth/provider"
	"sicxe-web/internal/logger"
)

const providerName = "keycloak"

type Config struct {
	// Issuer must be the realm issuer URL, e.g.
	// http://localhost:8081/realms/sicxe
	Issuer      string
	ClientID    string
	RedirectURL string
	Timeout     time.Duration

	// PublicBaseURL replaces the host of the discovered authorization
	// endpoint when Keycloak is reached through a different address by
	// browsers than by this service.
	PublicBaseURL string
}

// Provider implements OAuth + OIDC authentication against Keycloak.
// It returns identity facts only; no user/session decisions are made here.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	httpClient  *http.Client
}

// New initializes a Keycloak OIDC provider using discovery.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("keycloak oauth config missing required fields")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	oidcProvider, err := oidc.NewProvider(provider.WithHTTPClient(ctx, httpClient), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init keycloak oidc provider: %w", err)
	}

	ep := oidcProvider.Endpoint()
	if cfg.PublicBaseURL != "" {
		ep.AuthURL = strings.Replace(ep.AuthURL, strings.TrimRight(cfg.Issuer, "/"),
			strings.TrimRight(cfg.PublicBaseURL, "/"), 1)
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Endpoint:    ep,
			Scopes: []string{
				oidc.ScopeOpenID,
				"email",
				"profile",
			},
		},
		verifier:   oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		httpClient: httpClient,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) AuthCodeURL(state string, verifier string) string {
	return p.oauthConfig.AuthCodeURL(state, provider.PKCEOptions(verifier)...)
}

func (p *Provider) Exchange(ctx context.Context, code string, verifier string) (*oauth2.Token, error) {
	ctx = provider.WithHTTPClient(ctx, p.httpClient)
	token, err := p.oauthConfig.Exchange(ctx, code, provider.VerifierOptions(verifier)...)
	if err != nil {
		return nil, fmt.Errorf("%w: keycloak: %v", provider.ErrTokenExchange, err)
	}
	return token, nil
}

// Identity verifies the ID token that came with the access token and
// maps its claims.
func (p *Provider) Identity(ctx context.Context, token *oauth2.Token) (*auth.Identity, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: keycloak did not return id_token", provider.ErrProfileFetch)
	}

	idToken, err := p.verifier.Verify(provider.WithHTTPClient(ctx, p.httpClient), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: keycloak id_token verification: %v", provider.ErrProfileFetch, err)
	}

	var claims struct {
		Subject           string `json:"sub"`
		Name              string `json:"name"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: keycloak id_token claims: %v", provider.ErrProfileFetch, err)
	}

	logger.Debug("keycloak oidc verified", map[string]any{
		"issuer":      idToken.Issuer,
		"audience":    idToken.Audience,
		"expiry_unix": idToken.Expiry.Unix(),
	})

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Subject
	}

	return &auth.Identity{
		Provider: providerName,
		Username: username,
		Name:     claims.Name,
		Email:    claims.Email,
	}, nil
}

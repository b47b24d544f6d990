package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"sicxe-web/internal/auth"
	"sicxe-web/internal/auth/provider"
)

const (
	providerName  = "google"
	defaultIssuer = "https://accounts.google.com"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration

	// Issuer defaults to Google's OIDC issuer.
	Issuer string
}

type Provider struct {
	oauthConfig *oauth2.Config
	oidc        *oidc.Provider
	httpClient  *http.Client
}

// New discovers Google's endpoints and builds the provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	oidcProvider, err := oidc.NewProvider(provider.WithHTTPClient(ctx, httpClient), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes:       cfg.Scopes,
	}

	return &Provider{
		oauthConfig: oauthCfg,
		oidc:        oidcProvider,
		httpClient:  httpClient,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) AuthCodeURL(state string, verifier string) string {
	opts := append([]oauth2.AuthCodeOption{oauth2.AccessTypeOnline}, provider.PKCEOptions(verifier)...)
	return p.oauthConfig.AuthCodeURL(state, opts...)
}

func (p *Provider) Exchange(ctx context.Context, code string, verifier string) (*oauth2.Token, error) {
	ctx = provider.WithHTTPClient(ctx, p.httpClient)
	token, err := p.oauthConfig.Exchange(ctx, code, provider.VerifierOptions(verifier)...)
	if err != nil {
		return nil, fmt.Errorf("%w: google: %v", provider.ErrTokenExchange, err)
	}
	return token, nil
}

// Identity reads the userinfo endpoint. The subject is the username and
// the picture is returned without its fixed thumbnail size.
func (p *Provider) Identity(ctx context.Context, token *oauth2.Token) (*auth.Identity, error) {
	ctx = provider.WithHTTPClient(ctx, p.httpClient)
	info, err := p.oidc.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("%w: google: %v", provider.ErrProfileFetch, err)
	}

	var claims struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: google userinfo claims: %v", provider.ErrProfileFetch, err)
	}

	return &auth.Identity{
		Provider: providerName,
		Username: info.Subject,
		Name:     claims.Name,
		Email:    claims.Email,
		Image:    stripImageSize(claims.Picture),
	}, nil
}

// stripImageSize drops the sz query parameter so the full size image is
// served instead of a 50px thumbnail.
func stripImageSize(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if !q.Has("sz") {
		return raw
	}
	q.Del("sz")
	u.RawQuery = q.Encode()
	return u.String()
}

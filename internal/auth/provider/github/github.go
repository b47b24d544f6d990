package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"sicxe-web/internal/auth"
	"sicxe-web/internal/auth/provider"
	"sicxe-web/internal/logger"
)

const (
	providerName = "github"
	userAgent    = "SIC/XE Assembler"
	apiBaseURL   = "https://api.github.com"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration

	// Endpoint and APIBaseURL default to github.com.
	Endpoint   oauth2.Endpoint
	APIBaseURL string
}

// Provider implements the OAuth2 authorization code flow against GitHub.
type Provider struct {
	oauthConfig *oauth2.Config
	apiBaseURL  string
	httpClient  *http.Client
}

func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("github oauth config missing required fields")
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = endpoints.GitHub
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = apiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoint,
			Scopes:       cfg.Scopes,
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
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
		return nil, fmt.Errorf("%w: github: %v", provider.ErrTokenExchange, err)
	}
	return token, nil
}

type githubUser struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Identity maps the authenticated user to login/name/email and looks up
// the public avatar separately.
func (p *Provider) Identity(ctx context.Context, token *oauth2.Token) (*auth.Identity, error) {
	client := p.oauthConfig.Client(provider.WithHTTPClient(ctx, p.httpClient), token)

	var user githubUser
	if err := p.getJSON(ctx, client, p.apiBaseURL+"/user", &user); err != nil {
		return nil, fmt.Errorf("%w: github: %v", provider.ErrProfileFetch, err)
	}

	identity := &auth.Identity{
		Provider: providerName,
		Username: user.Login,
		Name:     user.Name,
		Email:    user.Email,
	}

	if user.Login != "" {
		avatar, err := p.avatarURL(ctx, user.Login)
		if err != nil {
			logger.Warn("github avatar lookup failed", map[string]any{
				"username": user.Login,
				"error":    err.Error(),
			})
		}
		identity.Image = avatar
	}

	return identity, nil
}

// avatarURL reads avatar_url from the public users endpoint.
func (p *Provider) avatarURL(ctx context.Context, login string) (string, error) {
	var user struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := p.getJSON(ctx, p.httpClient, p.apiBaseURL+"/users/"+url.PathEscape(login), &user); err != nil {
		return "", err
	}
	return user.AvatarURL, nil
}

func (p *Provider) getJSON(ctx context.Context, client *http.Client, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

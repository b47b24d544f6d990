package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

type Config struct {
	AppPort      string `env:"APP_PORT" envDefault:"8080"`
	AppRoot      string `env:"APP_ROOT" envDefault:"/"`
	AuthBasePath string `env:"AUTH_BASE_PATH" envDefault:"/auth"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	SessionBackend      string        `env:"SESSION_BACKEND" envDefault:"redis"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"__Host-session"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	GitHubClientID     string   `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string   `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string   `env:"GITHUB_REDIRECT_URL"`
	GitHubScopes       []string `env:"GITHUB_SCOPES" envSeparator:","`

	GoogleClientID     string   `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string   `env:"GOOGLE_REDIRECT_URL"`
	GoogleScopes       []string `env:"GOOGLE_SCOPES" envSeparator:","`

	KeycloakEnabled       bool   `env:"KEYCLOAK_ENABLED"`
	KeycloakIssuer        string `env:"KEYCLOAK_ISSUER"`
	KeycloakClientID      string `env:"KEYCLOAK_CLIENT_ID"`
	KeycloakRedirectURL   string `env:"KEYCLOAK_REDIRECT_URL"`
	KeycloakPublicBaseURL string `env:"KEYCLOAK_PUBLIC_BASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	// AssemblerPath points at the external build service binary.
	AssemblerPath string `env:"ASSEMBLER_PATH" envDefault:"sicasm"`
}

// Load reads an optional .env file and then the process environment.
// The returned Config is treated as immutable.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	case SessionBackendPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("config: DATABASE_DSN is required for the postgres session backend")
		}
	default:
		return fmt.Errorf("config: unknown session backend %q", c.SessionBackend)
	}

	// Browsers drop prefixed cookies that are not Secure.
	if !c.SessionCookieSecure &&
		(strings.HasPrefix(c.SessionCookieName, "__Host-") || strings.HasPrefix(c.SessionCookieName, "__Secure-")) {
		return fmt.Errorf("config: SESSION_COOKIE_NAME %q requires SESSION_COOKIE_SECURE=true", c.SessionCookieName)
	}

	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("config: PROVIDER_TIMEOUT must be positive")
	}
	return nil
}

// GitHubConfigured reports whether GitHub credentials were supplied.
func (c Config) GitHubConfigured() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// GoogleConfigured reports whether Google credentials were supplied.
func (c Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// KeycloakConfigured reports whether a Keycloak realm was supplied.
func (c Config) KeycloakConfigured() bool {
	return c.KeycloakIssuer != "" && c.KeycloakClientID != ""
}

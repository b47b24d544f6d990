package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "/", cfg.AppRoot)
	assert.Equal(t, "/auth", cfg.AuthBasePath)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "__Host-session", cfg.SessionCookieName)
	assert.True(t, cfg.SessionCookieSecure)
	assert.False(t, cfg.KeycloakEnabled)
}

func TestLoadProviders(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("GITHUB_SCOPES", "read:user,user:email")
	t.Setenv("GOOGLE_CLIENT_ID", "g-id")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GitHubConfigured())
	assert.Equal(t, []string{"read:user", "user:email"}, cfg.GitHubScopes)
	assert.False(t, cfg.GoogleConfigured())
	assert.False(t, cfg.KeycloakConfigured())
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "etcd")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown session backend")

	t.Setenv("SESSION_BACKEND", "postgres")
	t.Setenv("DATABASE_DSN", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DSN")

	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("SESSION_TTL", "0s")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRejectsInsecurePrefixedCookie(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("SESSION_COOKIE_SECURE", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_COOKIE_SECURE")

	t.Setenv("SESSION_COOKIE_NAME", "sicxe_session")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.SessionCookieSecure)
}

package app

import (
	"context"
	"net/http"

	"sicxe-web/internal/auth"
	"sicxe-web/internal/auth/handler"
	"sicxe-web/internal/auth/provider"
	"sicxe-web/internal/auth/provider/github"
	"sicxe-web/internal/auth/provider/google"
	"sicxe-web/internal/auth/provider/keycloak"
	"sicxe-web/internal/config"
	"sicxe-web/internal/logger"
	"sicxe-web/internal/metrics"
	"sicxe-web/internal/middleware"
	"sicxe-web/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	sessions := session.NewManager(infra.Sessions, cfg.SessionTTL, session.CookieOptions{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
	})
	authManager := auth.NewManager()

	authHandler := handler.NewHandler(
		registry,
		sessions,
		authManager,
		auth.NewStateGuard(),
		handler.Options{
			AppRoot:         cfg.AppRoot,
			BasePath:        cfg.AuthBasePath,
			ProviderTimeout: cfg.ProviderTimeout,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(sessions, authManager)

	return newRouter(authHandler, authMiddleware), infra.Close, nil
}

// setupProviders builds an adapter for every provider with credentials.
// Providers without credentials are left out of the registry and so are
// never valid.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var adapters []provider.Adapter

	if cfg.GitHubConfigured() {
		p, err := github.New(github.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			Scopes:       cfg.GitHubScopes,
			Timeout:      cfg.ProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, p)
	}

	if cfg.GoogleConfigured() {
		p, err := google.New(ctx, google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       cfg.GoogleScopes,
			Timeout:      cfg.ProviderTimeout,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, p)
	}

	if cfg.KeycloakConfigured() {
		p, err := keycloak.New(ctx, keycloak.Config{
			Issuer:        cfg.KeycloakIssuer,
			ClientID:      cfg.KeycloakClientID,
			RedirectURL:   cfg.KeycloakRedirectURL,
			Timeout:       cfg.ProviderTimeout,
			PublicBaseURL: cfg.KeycloakPublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, p)
	}

	registry := provider.NewRegistry(adapters...)
	if cfg.KeycloakEnabled {
		if err := registry.Enable("keycloak"); err != nil {
			return nil, err
		}
	}

	logger.Info("providers ready", map[string]any{"enabled": registry.Enabled()})
	return registry, nil
}

func newRouter(authHandler *handler.Handler, authMiddleware *middleware.AuthMiddleware) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))
	api.GET("/me", handler.Me)

	return router
}

package middleware

import (
	"context"
	"net/http"

	"sicxe-web/internal/auth"
	"sicxe-web/internal/logger"
	"sicxe-web/internal/session"
)

// unexported, collision-proof context key
type identityContextKeyType struct{}

var identityKey = identityContextKeyType{}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok
}

type AuthMiddleware struct {
	Sessions *session.Manager
	Auth     *auth.Manager
}

func NewAuthMiddleware(sessions *session.Manager, authManager *auth.Manager) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions, Auth: authManager}
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.Sessions.Start(r.Context(), w, r)
		if err != nil {
			logger.Error("failed to start session", map[string]any{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}

		id, ok := a.Auth.CurrentIdentity(sess)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

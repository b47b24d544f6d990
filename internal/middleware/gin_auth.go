package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinRequireAuth runs AuthMiddleware.RequireAuth inside a gin chain. The
// rest of the chain only runs when the session holds an identity; the
// identity reaches gin handlers through c.Request's context.
func GinRequireAuth(a *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})

		a.RequireAuth(next).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}

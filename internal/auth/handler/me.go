package handler

import (
	"net/http"

	"sicxe-web/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Me returns the identity attached by middleware.GinRequireAuth.
func Me(c *gin.Context) {
	id, ok := middleware.IdentityFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, identityJSON(id))
}

package handler

import (
	"net/http"
	"strings"
	"time"

	"sicxe-web/internal/auth"
	"sicxe-web/internal/auth/provider"
	"sicxe-web/internal/logger"
	"sicxe-web/internal/session"

	"github.com/gin-gonic/gin"
)

type Options struct {
	// AppRoot is where every flow ends.
	AppRoot string
	// BasePath is the mount point of the dispatcher; provider endpoints
	// live at BasePath/{provider}.
	BasePath        string
	ProviderTimeout time.Duration
}

type Handler struct {
	providers *provider.Registry
	sessions  *session.Manager
	auth      *auth.Manager
	state     *auth.StateGuard

	appRoot  string
	basePath string
	timeout  time.Duration
}

func NewHandler(
	registry *provider.Registry,
	sessions *session.Manager,
	authManager *auth.Manager,
	state *auth.StateGuard,
	opts Options,
) *Handler {
	if opts.AppRoot == "" {
		opts.AppRoot = "/"
	}
	if opts.BasePath == "" {
		opts.BasePath = "/auth"
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 10 * time.Second
	}
	return &Handler{
		providers: registry,
		sessions:  sessions,
		auth:      authManager,
		state:     state,
		appRoot:   opts.AppRoot,
		basePath:  "/" + strings.Trim(opts.BasePath, "/"),
		timeout:   opts.ProviderTimeout,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET(h.basePath, h.dispatch)
	r.GET(h.basePath+"/:provider", h.callback)
	r.GET("/", h.status)
}

func (h *Handler) dispatch(c *gin.Context) {
	sess, ok := h.startSession(c)
	if !ok {
		return
	}
	h.redirect(c, sess, h.Dispatch(c.Request.Context(), sess, c.Request.URL.Query()))
}

func (h *Handler) callback(c *gin.Context) {
	sess, ok := h.startSession(c)
	if !ok {
		return
	}
	h.redirect(c, sess, h.Callback(c.Request.Context(), sess, c.Param("provider"), c.Request.URL.Query()))
}

// status is the JSON view the page renderer builds on.
func (h *Handler) status(c *gin.Context) {
	sess, ok := h.startSession(c)
	if !ok {
		return
	}

	body := gin.H{
		"authenticated": h.auth.IsAuthenticated(sess),
		"providers":     h.providers.Enabled(),
	}
	if id, ok := h.auth.CurrentIdentity(sess); ok {
		body["user"] = identityJSON(id)
	}
	c.JSON(http.StatusOK, body)
}

// startSession binds the request to its session. Failing to do so is the
// only error in the flow that is not answered with a redirect.
func (h *Handler) startSession(c *gin.Context) (*session.Session, bool) {
	sess, err := h.sessions.Start(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		logger.Error("failed to start session", map[string]any{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "session unavailable",
		})
		return nil, false
	}
	return sess, true
}

func (h *Handler) redirect(c *gin.Context, sess *session.Session, out Outcome) {
	if out.RenewSession {
		if err := h.sessions.Renew(c.Request.Context(), c.Writer, sess); err != nil {
			logger.Error("failed to renew session", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
		}
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, out.Location)
}

func identityJSON(id *auth.Identity) gin.H {
	return gin.H{
		"provider": id.Provider,
		"username": id.Username,
		"name":     id.Name,
		"email":    id.Email,
		"image":    id.Image,
	}
}

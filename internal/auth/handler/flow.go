package handler

import (
	"context"
	"errors"
	"net/url"

	"sicxe-web/internal/auth"
	"sicxe-web/internal/auth/provider"
	"sicxe-web/internal/logger"
	"sicxe-web/internal/metrics"
	"sicxe-web/internal/session"
)

const (
	actionLogin  = "login"
	actionLogout = "logout"
)

// Outcome is where the client is sent once a step has run. Emitting the
// redirect is left to the caller.
type Outcome struct {
	Location string
	// RenewSession asks the caller to move the session to a fresh id
	// before redirecting. It is set once a login has been recorded.
	RenewSession bool
}

// unknownProvider labels metrics for provider names that are not enabled.
const unknownProvider = "unknown"

func (h *Handler) toRoot() Outcome {
	return Outcome{Location: h.appRoot}
}

// Dispatch handles the outer hop: it validates the requested action and
// hands the client to the provider's own endpoint with a fresh state.
func (h *Handler) Dispatch(ctx context.Context, sess *session.Session, query url.Values) Outcome {
	if !query.Has("action") {
		return h.toRoot()
	}
	action := query.Get("action")

	switch action {
	case actionLogin:
		if !query.Has("provider") {
			return h.toRoot()
		}
		name := query.Get("provider")
		if !h.providers.IsValid(name) {
			return h.toRoot()
		}
		if h.auth.IsAuthenticated(sess) {
			return h.toRoot()
		}
		return h.handOff(ctx, sess, name, actionLogin)

	case actionLogout:
		name, _ := h.auth.Provider(sess)
		if !h.providers.IsValid(name) {
			return h.toRoot()
		}
		if !h.auth.IsAuthenticated(sess) {
			return h.toRoot()
		}
		return h.handOff(ctx, sess, name, actionLogout)

	default:
		return h.toRoot()
	}
}

func (h *Handler) handOff(ctx context.Context, sess *session.Session, name, action string) Outcome {
	state, err := h.state.Issue(ctx, sess)
	if err != nil {
		logger.Error("failed to issue state", map[string]any{
			"provider": name,
			"error":    err.Error(),
		})
		return h.toRoot()
	}

	q := url.Values{}
	q.Set("action", action)
	q.Set("state", state)
	return Outcome{Location: h.basePath + "/" + url.PathEscape(name) + "?" + q.Encode()}
}

// Callback handles the inner hop for one provider. Every request must
// carry the pending state. It then either completes an authorization
// code return or performs the login/logout action it was sent for.
func (h *Handler) Callback(ctx context.Context, sess *session.Session, name string, query url.Values) Outcome {
	ok, err := h.state.VerifyAndConsume(ctx, sess, query.Get("state"), query.Has("state"))
	if err != nil {
		logger.Error("failed to verify state", map[string]any{
			"provider": name,
			"error":    err.Error(),
		})
		return h.toRoot()
	}
	if !ok {
		label := unknownProvider
		if h.providers.IsValid(name) {
			label = name
		}
		metrics.AddStateRejection(label)
		logger.Debug("state rejected", map[string]any{"provider": label})
		return h.toRoot()
	}

	adapter, err := h.providers.Resolve(name)
	if err != nil {
		return h.toRoot()
	}

	if query.Has("error") {
		metrics.AddLogin(name, metrics.ResultProviderError)
		logger.Warn("oauth callback returned error", map[string]any{
			"provider": name,
			"error":    query.Get("error"),
			"desc":     query.Get("error_description"),
		})
		return h.toRoot()
	}

	if query.Has("code") {
		return h.complete(ctx, sess, adapter, query.Get("code"))
	}

	switch query.Get("action") {
	case actionLogout:
		if err := h.auth.Logout(ctx, sess); err != nil {
			logger.Error("logout failed", map[string]any{
				"provider": name,
				"error":    err.Error(),
			})
			return h.toRoot()
		}
		metrics.AddLogout(name)
		return h.toRoot()

	case actionLogin:
		return h.begin(ctx, sess, adapter)

	default:
		return h.toRoot()
	}
}

// begin sends the client to the provider's authorization endpoint with
// a new state and PKCE verifier bound to the session.
func (h *Handler) begin(ctx context.Context, sess *session.Session, adapter provider.Adapter) Outcome {
	state, err := h.state.Issue(ctx, sess)
	if err != nil {
		logger.Error("failed to issue state", map[string]any{
			"provider": adapter.Name(),
			"error":    err.Error(),
		})
		return h.toRoot()
	}

	verifier, err := h.state.IssueVerifier(ctx, sess)
	if err != nil {
		logger.Error("failed to issue pkce verifier", map[string]any{
			"provider": adapter.Name(),
			"error":    err.Error(),
		})
		return h.toRoot()
	}

	return Outcome{Location: adapter.AuthCodeURL(state, verifier)}
}

// complete exchanges the code, fetches the profile and logs the user in.
// The client lands on the application root whatever happens; a failed
// login only shows as still being logged out.
func (h *Handler) complete(ctx context.Context, sess *session.Session, adapter provider.Adapter, code string) Outcome {
	name := adapter.Name()

	verifier, err := h.state.ConsumeVerifier(ctx, sess)
	if err != nil {
		metrics.AddLogin(name, metrics.ResultSessionError)
		logger.Error("failed to read pkce verifier", map[string]any{
			"provider": name,
			"error":    err.Error(),
		})
		return h.toRoot()
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	token, err := adapter.Exchange(callCtx, code, verifier)
	if err != nil {
		metrics.AddLogin(name, metrics.ResultTokenExchange)
		logger.Error("oauth token exchange failed", map[string]any{
			"provider": name,
			"error":    err.Error(),
		})
		return h.toRoot()
	}

	identity, err := adapter.Identity(callCtx, token)
	if err != nil {
		metrics.AddLogin(name, metrics.ResultProfileFetch)
		logger.Error("oauth profile fetch failed", map[string]any{
			"provider": name,
			"error":    err.Error(),
		})
		return h.toRoot()
	}

	if err := h.auth.Login(ctx, sess, *identity); err != nil {
		result := metrics.ResultSessionError
		if errors.Is(err, auth.ErrIncompleteIdentity) {
			result = metrics.ResultIncompleteIdentity
		}
		metrics.AddLogin(name, result)
		logger.Error("login not recorded", map[string]any{
			"provider": name,
			"error":    err.Error(),
		})
		return h.toRoot()
	}

	metrics.AddLogin(name, metrics.ResultSuccess)
	out := h.toRoot()
	out.RenewSession = true
	return out
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"sicxe-web/internal/auth"
	"sicxe-web/internal/auth/provider"
	"sicxe-web/internal/session"
)

const authorizeURL = "https://provider.example.com/authorize"

type fakeAdapter struct {
	name string

	mu          sync.Mutex
	identity    *auth.Identity
	exchangeErr error
	identityErr error
	gotCode     string
	gotVerifier string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) AuthCodeURL(state, verifier string) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("verifier", verifier)
	return authorizeURL + "?" + q.Encode()
}

func (f *fakeAdapter) Exchange(_ context.Context, code, verifier string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotCode = code
	f.gotVerifier = verifier
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func (f *fakeAdapter) Identity(context.Context, *oauth2.Token) (*auth.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	id := *f.identity
	return &id, nil
}

type flowTest struct {
	h        *Handler
	store    *session.MemoryStore
	sessions *session.Manager
	auth     *auth.Manager
	guard    *auth.StateGuard
	github   *fakeAdapter
}

func newFlowTest() *flowTest {
	github := &fakeAdapter{
		name:     "github",
		identity: &auth.Identity{Provider: "github", Username: "bob", Name: "Bob", Email: "b@x.com"},
	}
	google := &fakeAdapter{
		name:     "google",
		identity: &auth.Identity{Provider: "google", Username: "42", Name: "Alice", Email: "a@x.com"},
	}
	keycloak := &fakeAdapter{name: "keycloak"}

	store := session.NewMemoryStore()
	sessions := session.NewManager(store, time.Hour, session.CookieOptions{Name: "sid"})
	authManager := auth.NewManager()
	guard := auth.NewStateGuard()

	return &flowTest{
		h: NewHandler(
			provider.NewRegistry(github, google, keycloak),
			sessions,
			authManager,
			guard,
			Options{AppRoot: "/", BasePath: "/auth", ProviderTimeout: time.Second},
		),
		store:    store,
		sessions: sessions,
		auth:     authManager,
		guard:    guard,
		github:   github,
	}
}

func (f *flowTest) newSession(t *testing.T) *session.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := f.sessions.Start(req.Context(), httptest.NewRecorder(), req)
	require.NoError(t, err)
	return sess
}

func (f *flowTest) reload(t *testing.T, sess *session.Session) *session.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sess.ID()})
	next, err := f.sessions.Start(req.Context(), httptest.NewRecorder(), req)
	require.NoError(t, err)
	return next
}

func (f *flowTest) loggedIn(t *testing.T) *session.Session {
	t.Helper()
	sess := f.newSession(t)
	require.NoError(t, f.auth.Login(context.Background(), sess, *f.github.identity))
	return f.reload(t, sess)
}

func query(pairs ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Set(pairs[i], pairs[i+1])
	}
	return q
}

func TestDispatchLoginIssuesState(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)

	out := f.h.Dispatch(context.Background(), sess, query("action", "login", "provider", "github"))

	u, err := url.Parse(out.Location)
	require.NoError(t, err)
	assert.Equal(t, "/auth/github", u.Path)
	assert.Equal(t, "login", u.Query().Get("action"))
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	pending, ok := f.reload(t, sess).Get("pending_state")
	assert.True(t, ok)
	assert.Equal(t, state, pending)
}

func TestDispatchRedirectsToRoot(t *testing.T) {
	tests := []struct {
		name     string
		query    url.Values
		loggedIn bool
	}{
		{name: "no action", query: query()},
		{name: "login without provider", query: query("action", "login")},
		{name: "unknown provider", query: query("action", "login", "provider", "bitbucket")},
		{name: "disabled provider", query: query("action", "login", "provider", "keycloak")},
		{name: "already authenticated", query: query("action", "login", "provider", "google"), loggedIn: true},
		{name: "logout when anonymous", query: query("action", "logout")},
		{name: "unknown action", query: query("action", "register", "provider", "github")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFlowTest()
			sess := f.newSession(t)
			if test.loggedIn {
				sess = f.loggedIn(t)
			}

			out := f.h.Dispatch(context.Background(), sess, test.query)
			assert.Equal(t, "/", out.Location)

			_, pending := f.reload(t, sess).Get("pending_state")
			assert.False(t, pending)
		})
	}
}

func TestDispatchUnknownProviderLeavesSessionUntouched(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)

	out := f.h.Dispatch(context.Background(), sess, query("action", "login", "provider", "bitbucket"))
	assert.Equal(t, "/", out.Location)

	values, err := f.store.Load(context.Background(), sess.ID())
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestDispatchLogout(t *testing.T) {
	f := newFlowTest()
	sess := f.loggedIn(t)

	out := f.h.Dispatch(context.Background(), sess, query("action", "logout"))

	u, err := url.Parse(out.Location)
	require.NoError(t, err)
	assert.Equal(t, "/auth/github", u.Path)
	assert.Equal(t, "logout", u.Query().Get("action"))

	pending, ok := f.reload(t, sess).Get("pending_state")
	assert.True(t, ok)
	assert.Equal(t, u.Query().Get("state"), pending)
}

func TestCallbackStateMismatchConsumesState(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)
	require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))

	out := f.h.Callback(context.Background(), f.reload(t, sess), "github", query("action", "login", "state", "WRONG"))
	assert.Equal(t, "/", out.Location)

	_, pending := f.reload(t, sess).Get("pending_state")
	assert.False(t, pending)
}

func TestCallbackWithoutStateKeepsPendingState(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)
	require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))

	out := f.h.Callback(context.Background(), f.reload(t, sess), "github", query("action", "login"))
	assert.Equal(t, "/", out.Location)

	v, pending := f.reload(t, sess).Get("pending_state")
	assert.True(t, pending)
	assert.Equal(t, "S", v)
}

func TestCallbackEmptyStateConsumesPendingState(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)
	require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))

	out := f.h.Callback(context.Background(), f.reload(t, sess), "github", url.Values{
		"action": {"login"},
		"state":  {""},
	})
	assert.Equal(t, "/", out.Location)

	_, pending := f.reload(t, sess).Get("pending_state")
	assert.False(t, pending)
}

func TestStateRejectionLabelsAreBounded(t *testing.T) {
	f := newFlowTest()
	for i := 0; i < 50; i++ {
		out := f.h.Callback(context.Background(), f.newSession(t), fmt.Sprintf("junk-%d", i), query())
		assert.Equal(t, "/", out.Location)
	}
	f.h.Callback(context.Background(), f.newSession(t), "github", query("state", "S"))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	allowed := map[string]bool{"github": true, "google": true, unknownProvider: true}
	var found bool
	for _, mf := range families {
		if mf.GetName() != "auth_state_rejections_total" {
			continue
		}
		found = true
		assert.LessOrEqual(t, len(mf.GetMetric()), len(allowed))
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "provider" {
					assert.True(t, allowed[l.GetValue()], "unexpected provider label %q", l.GetValue())
				}
			}
		}
	}
	assert.True(t, found)
}

func TestCallbackLoginLegRedirectsToProvider(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)
	require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))

	out := f.h.Callback(context.Background(), f.reload(t, sess), "github", query("action", "login", "state", "S"))
	require.True(t, strings.HasPrefix(out.Location, authorizeURL), out.Location)

	u, err := url.Parse(out.Location)
	require.NoError(t, err)
	state := u.Query().Get("state")
	assert.NotEmpty(t, state)
	assert.NotEqual(t, "S", state)

	next := f.reload(t, sess)
	pending, ok := next.Get("pending_state")
	assert.True(t, ok)
	assert.Equal(t, state, pending)
	verifier, ok := next.Get("pending_verifier")
	assert.True(t, ok)
	assert.Equal(t, u.Query().Get("verifier"), verifier)
}

func TestCallbackLogoutLeg(t *testing.T) {
	f := newFlowTest()
	sess := f.loggedIn(t)
	require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))

	out := f.h.Callback(context.Background(), f.reload(t, sess), "github", query("action", "logout", "state", "S"))
	assert.Equal(t, "/", out.Location)
	assert.False(t, f.auth.IsAuthenticated(f.reload(t, sess)))
}

func TestCallbackRequiresKnownAction(t *testing.T) {
	f := newFlowTest()
	sess := f.loggedIn(t)

	for _, q := range []url.Values{
		query("state", "S"),
		query("action", "delete", "state", "S"),
	} {
		require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))
		out := f.h.Callback(context.Background(), f.reload(t, sess), "github", q)
		assert.Equal(t, "/", out.Location)
		assert.True(t, f.auth.IsAuthenticated(f.reload(t, sess)))
	}
}

func TestCallbackCodeLogsIn(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)
	require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))
	require.NoError(t, sess.Set(context.Background(), "pending_verifier", "V"))

	out := f.h.Callback(context.Background(), f.reload(t, sess), "github", query("code", "abc", "state", "S"))
	assert.Equal(t, "/", out.Location)
	assert.True(t, out.RenewSession)
	assert.Equal(t, "abc", f.github.gotCode)
	assert.Equal(t, "V", f.github.gotVerifier)

	next := f.reload(t, sess)
	assert.True(t, f.auth.IsAuthenticated(next))
	username, _ := f.auth.Username(next)
	assert.Equal(t, "bob", username)
	p, _ := f.auth.Provider(next)
	assert.Equal(t, "github", p)
	_, ok := next.Get("pending_verifier")
	assert.False(t, ok)
}

func TestCallbackCodeFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeAdapter)
	}{
		{name: "token exchange", setup: func(a *fakeAdapter) {
			a.exchangeErr = errors.Join(provider.ErrTokenExchange, errors.New("bad code"))
		}},
		{name: "profile fetch", setup: func(a *fakeAdapter) {
			a.identityErr = errors.Join(provider.ErrProfileFetch, errors.New("timeout"))
		}},
		{name: "incomplete identity", setup: func(a *fakeAdapter) {
			a.identity = &auth.Identity{Provider: "github", Username: "bob", Name: "Bob"}
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFlowTest()
			test.setup(f.github)
			sess := f.newSession(t)
			require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))

			out := f.h.Callback(context.Background(), f.reload(t, sess), "github", query("code", "abc", "state", "S"))
			assert.Equal(t, "/", out.Location)
			assert.False(t, out.RenewSession)

			next := f.reload(t, sess)
			assert.False(t, f.auth.IsAuthenticated(next))
			_, ok := f.auth.Username(next)
			assert.False(t, ok)
			_, pending := next.Get("pending_state")
			assert.False(t, pending)
		})
	}
}

func TestCallbackProviderError(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)
	require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))

	out := f.h.Callback(context.Background(), f.reload(t, sess), "github",
		query("error", "access_denied", "error_description", "user cancelled", "state", "S"))
	assert.Equal(t, "/", out.Location)
	assert.Empty(t, f.github.gotCode)
	assert.False(t, f.auth.IsAuthenticated(f.reload(t, sess)))
}

func TestCallbackDisabledProvider(t *testing.T) {
	f := newFlowTest()
	sess := f.newSession(t)
	require.NoError(t, f.guard.Bind(context.Background(), sess, "S"))

	out := f.h.Callback(context.Background(), f.reload(t, sess), "keycloak", query("action", "login", "state", "S"))
	assert.Equal(t, "/", out.Location)
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sicxe-web/internal/session"
)

type testSessions struct {
	store *session.MemoryStore
	mgr   *session.Manager
}

func newTestSessions() *testSessions {
	store := session.NewMemoryStore()
	return &testSessions{
		store: store,
		mgr:   session.NewManager(store, time.Hour, session.CookieOptions{Name: "sid"}),
	}
}

func (ts *testSessions) start(t *testing.T) *session.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := ts.mgr.Start(req.Context(), httptest.NewRecorder(), req)
	require.NoError(t, err)
	return sess
}

// reload starts the same session again, as the next request would.
func (ts *testSessions) reload(t *testing.T, sess *session.Session) *session.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sess.ID()})
	next, err := ts.mgr.Start(req.Context(), httptest.NewRecorder(), req)
	require.NoError(t, err)
	return next
}

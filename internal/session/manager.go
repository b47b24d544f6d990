package session

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"
)

// Manager binds requests to sessions held in a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	cookie CookieOptions
}

// NewManager creates a session manager. ttl is both the store lifetime
// and the cookie expiry of a freshly issued session.
func NewManager(store Store, ttl time.Duration, cookie CookieOptions) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		cookie: cookie.normalize(),
	}
}

// written is implemented by response writers that can report whether
// headers have already been flushed (gin.ResponseWriter does).
type written interface {
	Written() bool
}

func headersWritten(w http.ResponseWriter) bool {
	ww, ok := w.(written)
	return ok && ww.Written()
}

// Start returns the session bound to the requesting client, creating one
// if the client presented none. An id the store holds nothing for is
// never adopted; the client gets a fresh one instead. The cookie expiry
// is pushed forward on every request that reuses a session.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	if c, err := r.Cookie(m.cookie.Name); err == nil && ValidID(c.Value) {
		values, err := m.store.Load(ctx, c.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
		}
		if len(values) > 0 {
			if !headersWritten(w) {
				SetCookie(w, c.Value, time.Now().Add(m.ttl), m.cookie)
			}
			return newSession(c.Value, m.store, m.ttl, values, false), nil
		}
	}

	if headersWritten(w) {
		return nil, fmt.Errorf("%w: response already written", ErrSessionUnavailable)
	}

	id, err := GenerateID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	SetCookie(w, id, time.Now().Add(m.ttl), m.cookie)

	return newSession(id, m.store, m.ttl, nil, true), nil
}

// Renew moves every field of sess to a freshly generated id, drops the
// old id from the store and reissues the cookie. sess keeps working under
// the new id.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if headersWritten(w) {
		return fmt.Errorf("%w: response already written", ErrSessionUnavailable)
	}

	id, err := GenerateID()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	if len(sess.values) > 0 {
		if err := m.store.Save(ctx, id, maps.Clone(sess.values), m.ttl); err != nil {
			return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
		}
		keys := slices.Collect(maps.Keys(sess.values))
		if err := m.store.Delete(ctx, sess.id, keys...); err != nil {
			return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
		}
	}

	SetCookie(w, id, time.Now().Add(m.ttl), m.cookie)
	sess.id = id
	return nil
}

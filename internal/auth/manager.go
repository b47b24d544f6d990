package auth

import (
	"context"
	"fmt"

	"sicxe-web/internal/logger"
	"sicxe-web/internal/session"
)

const authenticatedTrue = "true"

// Manager owns the authenticated identity record kept in the session.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) IsAuthenticated(sess *session.Session) bool {
	v, ok := sess.Get(keyAuthenticated)
	return ok && v == authenticatedTrue
}

// Login records identity in the session. Incomplete identities are
// rejected before anything is written. Logging in again overwrites the
// previous identity, including clearing a stale image.
func (m *Manager) Login(ctx context.Context, sess *session.Session, identity Identity) error {
	if err := identity.Validate(); err != nil {
		logger.Warn("incomplete login details", map[string]any{
			"provider":     identity.Provider,
			"has_username": identity.Username != "",
			"has_name":     identity.Name != "",
			"has_email":    identity.Email != "",
		})
		return err
	}

	values := map[string]string{
		keyProvider:      identity.Provider,
		keyUsername:      identity.Username,
		keyName:          identity.Name,
		keyEmail:         identity.Email,
		keyAuthenticated: authenticatedTrue,
	}
	if identity.Image != "" {
		values[keyImage] = identity.Image
	}

	if err := sess.SetMany(ctx, values); err != nil {
		return fmt.Errorf("auth: store identity: %w", err)
	}
	if identity.Image == "" {
		if err := sess.Remove(ctx, keyImage); err != nil {
			return fmt.Errorf("auth: clear image: %w", err)
		}
	}

	logger.Info("user logged in", map[string]any{
		"provider": identity.Provider,
		"username": identity.Username,
		"name":     identity.Name,
		"email":    identity.Email,
	})
	return nil
}

// Logout removes the identity fields. It is a no-op for anonymous
// sessions.
func (m *Manager) Logout(ctx context.Context, sess *session.Session) error {
	if err := sess.Remove(ctx, identityKeys...); err != nil {
		return fmt.Errorf("auth: clear identity: %w", err)
	}
	return nil
}

// CurrentIdentity returns the logged in identity, if any.
func (m *Manager) CurrentIdentity(sess *session.Session) (*Identity, bool) {
	if !m.IsAuthenticated(sess) {
		return nil, false
	}
	id := &Identity{}
	id.Provider, _ = m.Provider(sess)
	id.Username, _ = m.Username(sess)
	id.Name, _ = m.Name(sess)
	id.Email, _ = m.Email(sess)
	id.Image, _ = m.Image(sess)
	return id, true
}

func (m *Manager) Provider(sess *session.Session) (string, bool) {
	return sess.Get(keyProvider)
}

func (m *Manager) Username(sess *session.Session) (string, bool) {
	return sess.Get(keyUsername)
}

func (m *Manager) Name(sess *session.Session) (string, bool) {
	return sess.Get(keyName)
}

func (m *Manager) Email(sess *session.Session) (string, bool) {
	return sess.Get(keyEmail)
}

func (m *Manager) Image(sess *session.Session) (string, bool) {
	return sess.Get(keyImage)
}

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"sicxe-web/internal/session"
	"sicxe-web/internal/utils"
)

const stateSize = 32

// StateGuard issues and checks the one-time anti-forgery token that ties
// an outbound redirect to the request that comes back from it.
type StateGuard struct{}

func NewStateGuard() *StateGuard {
	return &StateGuard{}
}

// Issue generates a fresh state token, binds it to the session and
// returns it for embedding in a redirect URL. Any previously pending
// token is overwritten.
func (g *StateGuard) Issue(ctx context.Context, sess *session.Session) (string, error) {
	state, err := utils.RandomString(stateSize)
	if err != nil {
		return "", fmt.Errorf("auth: generate state: %w", err)
	}
	if err := g.Bind(ctx, sess, state); err != nil {
		return "", err
	}
	return state, nil
}

// Bind stores an externally generated state as the pending token.
func (g *StateGuard) Bind(ctx context.Context, sess *session.Session, state string) error {
	if err := sess.Set(ctx, keyPendingState, state); err != nil {
		return fmt.Errorf("auth: store state: %w", err)
	}
	return nil
}

// VerifyAndConsume checks inbound against the pending token. present
// reports whether the request carried a state parameter at all; a state
// that was sent empty still counts as supplied. When no state was sent
// or none is pending it returns false and leaves the session untouched.
// Otherwise the pending token is removed whether or not it matches, so
// every token is usable at most once.
func (g *StateGuard) VerifyAndConsume(ctx context.Context, sess *session.Session, inbound string, present bool) (bool, error) {
	if !present {
		return false, nil
	}
	if _, ok := sess.Get(keyPendingState); !ok {
		return false, nil
	}

	pending, ok, err := sess.Take(ctx, keyPendingState)
	if err != nil {
		return false, fmt.Errorf("auth: consume state: %w", err)
	}
	if !ok {
		// consumed by a concurrent request
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(pending), []byte(inbound)) == 1, nil
}

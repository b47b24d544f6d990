package session

import (
	"context"
	"errors"
	"time"
)

// ErrSessionUnavailable is returned when no session can be bound to the
// current client, e.g. because the response was already written.
var ErrSessionUnavailable = errors.New("session: unable to start session")

// Store is a key-value backend for per-client session fields.
// Every operation is scoped to a single session id; implementations
// must never expose one session's fields to another.
type Store interface {
	// Load returns every live field of the session. A missing or expired
	// session yields an empty map and no error.
	Load(ctx context.Context, sessionID string) (map[string]string, error)

	// Save upserts the given fields in one write and extends the
	// session lifetime to ttl.
	Save(ctx context.Context, sessionID string, values map[string]string, ttl time.Duration) error

	// Delete removes the given fields. Unknown fields are ignored.
	Delete(ctx context.Context, sessionID string, keys ...string) error

	// Take atomically reads and removes a single field.
	Take(ctx context.Context, sessionID string, key string) (string, bool, error)
}

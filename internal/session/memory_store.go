package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. It is meant for
// development and tests; sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

// live returns the entry for id, dropping it if it has expired.
// Callers must hold m.mu.
func (m *MemoryStore) live(id string) (*memoryEntry, bool) {
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.sessions, id)
		return nil, false
	}
	return e, true
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string)
	if e, ok := m.live(sessionID); ok {
		for k, v := range e.values {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, values map[string]string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(sessionID)
	if !ok {
		e = &memoryEntry{values: make(map[string]string)}
		m.sessions[sessionID] = e
	}
	for k, v := range values {
		e.values[k] = v
	}
	e.expiresAt = m.now().Add(ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.live(sessionID); ok {
		for _, k := range keys {
			delete(e.values, k)
		}
	}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, sessionID string, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(sessionID)
	if !ok {
		return "", false, nil
	}
	v, ok := e.values[key]
	if ok {
		delete(e.values, key)
	}
	return v, ok, nil
}

// Cleanup drops expired sessions.
func (m *MemoryStore) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.sessions {
		m.live(id)
	}
}

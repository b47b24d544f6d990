package session

import (
	"context"
	"maps"
	"time"
)

// Session is the per-request view of one client's session. Fields are
// loaded once when the session is started and every mutation is written
// through to the Store.
type Session struct {
	id     string
	store  Store
	ttl    time.Duration
	values map[string]string
	isNew  bool
}

func newSession(id string, store Store, ttl time.Duration, values map[string]string, isNew bool) *Session {
	if values == nil {
		values = make(map[string]string)
	}
	return &Session{
		id:     id,
		store:  store,
		ttl:    ttl,
		values: values,
		isNew:  isNew,
	}
}

// ID returns the opaque session identifier.
func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Get returns the value of key as loaded for this request.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores a single field.
func (s *Session) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany stores all fields in one store write. Either every field is
// written or none is.
func (s *Session) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	if err := s.store.Save(ctx, s.id, values, s.ttl); err != nil {
		return err
	}
	maps.Copy(s.values, values)
	return nil
}

// Remove deletes the given fields.
func (s *Session) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.store.Delete(ctx, s.id, keys...); err != nil {
		return err
	}
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Take atomically reads and removes key from the backing store. The
// result reflects the store, not the values loaded at Start, so two
// concurrent requests can never both observe the same value.
func (s *Session) Take(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.store.Take(ctx, s.id, key)
	if err != nil {
		return "", false, err
	}
	delete(s.values, key)
	return v, ok, nil
}

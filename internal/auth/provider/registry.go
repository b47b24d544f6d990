package provider

import (
	"fmt"
	"slices"
	"sort"
)

// DefaultEnabled is the compiled allow-list of providers that are usable
// as soon as they are registered. Any other provider must be enabled
// explicitly.
var DefaultEnabled = []string{"github", "google"}

type entry struct {
	adapter Adapter
	enabled bool
}

// Registry holds all configured OAuth providers and allows
// lookup by provider name. It performs no auth logic itself.
// It is built at startup and read-only afterwards.
type Registry struct {
	providers map[string]*entry
}

// NewRegistry registers the given OAuth providers by name.
// Provider names must be unique.
func NewRegistry(list ...Adapter) *Registry {
	m := make(map[string]*entry)
	for _, p := range list {
		m[p.Name()] = &entry{
			adapter: p,
			enabled: slices.Contains(DefaultEnabled, p.Name()),
		}
	}
	return &Registry{providers: m}
}

// Enable turns on a registered provider that is not in DefaultEnabled.
func (r *Registry) Enable(name string) error {
	e, ok := r.providers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	e.enabled = true
	return nil
}

// IsValid reports whether name is a registered and enabled provider.
func (r *Registry) IsValid(name string) bool {
	e, ok := r.providers[name]
	return ok && e.enabled
}

// Resolve returns the adapter for a valid provider.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if !r.IsValid(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return r.providers[name].adapter, nil
}

// Enabled lists the usable provider names in sorted order.
func (r *Registry) Enabled() []string {
	names := make([]string, 0, len(r.providers))
	for name, e := range r.providers {
		if e.enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

package provider

import (
	"fmt"
	"strings"
)

// Registry is a name-keyed lookup over a fixed set of adapters. It is never
// mutated after NewRegistry returns, so concurrent reads need no locking.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
}

// NewRegistry builds a registry; names must be unique case-insensitively
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("registry needs at least one adapter")
	}

	r := &Registry{
		adapters: make([]Adapter, 0, len(adapters)),
		byName:   make(map[string]Adapter, len(adapters)),
	}

	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("nil adapter")
		}
		key := strings.ToLower(a.Name())
		if key == "" {
			return nil, fmt.Errorf("adapter with empty name")
		}
		if _, exists := r.byName[key]; exists {
			return nil, fmt.Errorf("duplicate adapter name '%s'", a.Name())
		}
		r.byName[key] = a
		r.adapters = append(r.adapters, a)
	}

	return r, nil
}

// Get returns the adapter registered under name
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.byName[strings.ToLower(name)]
	return a, ok
}

// All returns every adapter in registration order
func (r *Registry) All() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Names returns every adapter name in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}

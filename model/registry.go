package model

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps type names to Types and constructs empty instances.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry returns a registry holding types.
func NewRegistry(types ...*Type) *Registry {
	r := &Registry{types: make(map[string]*Type)}
	for _, t := range types {
		r.Register(t)
	}
	return r
}

// Register adds or replaces t.
func (r *Registry) Register(t *Type) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name()] = t
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs an empty instance of the named type. Link types get a fresh target.
func (r *Registry) New(name string) (Model, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownType)
	}
	if t.Kind() != LinkKind {
		return NewRecord(t), nil
	}
	target, err := r.New(t.Target())
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", name, err)
	}
	return NewLinkRecord(t, target), nil
}

package secure

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps entity type names to their declarations. Registration
// validates the declaration; lookups recover the typed declaration without
// reflection over entity values.
type Registry struct {
	mu    sync.RWMutex
	types map[string]any
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]any{}}
}

// Register validates and records the entity type. Duplicate names and
// misconfigured declarations are rejected.
func Register[T Entity](r *Registry, t *EntityType[T]) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[t.Name]; ok {
		return &ConfigurationError{Entity: t.Name, Reason: "registered twice"}
	}

	r.types[t.Name] = t

	return nil
}

// MustRegister registers the entity type and panics on misconfiguration.
// Intended for init-time wiring where a broken declaration must not boot.
func MustRegister[T Entity](r *Registry, t *EntityType[T]) {
	if err := Register(r, t); err != nil {
		panic(err)
	}
}

// TypeFor recovers the typed declaration by name.
func TypeFor[T Entity](r *Registry, name string) (*EntityType[T], error) {
	r.mu.RLock()
	raw, ok := r.types[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("secure: entity type %q not registered: %w", name, ErrNotFound)
	}

	t, ok := raw.(*EntityType[T])
	if !ok {
		return nil, &ConfigurationError{Entity: name, Reason: fmt.Sprintf("registered as %T", raw)}
	}

	return t, nil
}

// Names lists the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.types)
	sort.Strings(names)

	return names
}

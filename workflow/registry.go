package workflow

import (
	"fmt"
	"sort"

	"github.com/openfield/cascade"
)

// Registry is an immutable mapping from workflow type name to Definition.
// It is built once at engine construction and never mutated, so reads
// need no locking. Passing the registry into the engine explicitly (rather
// than a process-wide singleton) keeps definitions swappable in tests.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry builds a registry from the given definitions. Duplicate
// type names are a construction-time failure.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	m := make(map[string]*Definition, len(defs))
	for _, d := range defs {
		if _, dup := m[d.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate workflow type %q", cascade.ErrInvalidDefinition, d.Name())
		}
		m[d.Name()] = d
	}
	return &Registry{defs: m}, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(defs ...*Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the definition for the given workflow type.
func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns all registered workflow type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package schema

import (
	"fmt"
	"sync"
)

// Registry holds model definitions by name. Models resolve their
// association targets through the registry they were added to.
type Registry struct {
	Naming NamingStrategy

	models sync.Map // name -> *Model
}

// NewRegistry returns an empty registry with the given naming strategy.
func NewRegistry(naming NamingStrategy) *Registry {
	return &Registry{Naming: naming}
}

// Add registers a model, binding it and its fields to this registry. The
// model's memoized state is reset.
func (r *Registry) Add(models ...*Model) error {
	for _, m := range models {
		if m.Name == "" {
			return fmt.Errorf("cannot register a model without a name")
		}
		m.registry = r
		for _, f := range m.Fields {
			f.model = m
		}
		m.ClearAttributes()
		r.models.Store(m.Name, m)
	}
	return nil
}

// Get returns a registered model by name.
func (r *Registry) Get(name string) (*Model, error) {
	if v, ok := r.models.Load(name); ok {
		return v.(*Model), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
}

// Has reports whether a model name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.models.Load(name)
	return ok
}

// Range visits every registered model until fn returns false.
func (r *Registry) Range(fn func(m *Model) bool) {
	r.models.Range(func(_, v interface{}) bool {
		return fn(v.(*Model))
	})
}

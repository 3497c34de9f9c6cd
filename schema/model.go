package schema

import (
	"errors"
	"fmt"
	"sync"
)

// CachingPolicy controls result caching participation for a model.
type CachingPolicy string

const (
	CachingNone        CachingPolicy = "none"
	CachingConditional CachingPolicy = "conditional"
	CachingAlways      CachingPolicy = "always"
)

var (
	// ErrModelNotFound model not registered
	ErrModelNotFound = errors.New("model not found")
	// ErrFieldNotFound field not defined on model
	ErrFieldNotFound = errors.New("field not found")
	// ErrNoAssociation no association defined for attribute
	ErrNoAssociation = errors.New("no association defined")
	// ErrAmbiguousAssociation more than one association matches
	ErrAmbiguousAssociation = errors.New("ambiguous association")
	// ErrUnsupportedMapping association type is neither association nor junction
	ErrUnsupportedMapping = errors.New("unsupported association mapping")
	// ErrPrimaryKeyRequired model defines no primary field
	ErrPrimaryKeyRequired = errors.New("primary key required")
)

// Model is a named entity definition. Attribute and mapping lookups are
// memoized per instance behind a dirty flag; ClearAttributes invalidates.
type Model struct {
	Name string
	// Source and View are the backing table and view names; empty values
	// derive from the registry's naming strategy.
	Source string
	View   string
	// Inherits names a parent model whose non-primary fields this model
	// exposes as its own.
	Inherits    string
	Version     string
	Caching     CachingPolicy
	Fields      []*Field
	Constraints []*Constraint
	Views       []*View

	registry *Registry

	mu         sync.Mutex
	attributes []*Field
	mappings   map[string]*Mapping
	dirty      bool
}

func (m *Model) String() string {
	return m.Name
}

// Registry returns the registry the model belongs to.
func (m *Model) Registry() *Registry {
	return m.registry
}

// SourceName returns the backing table name.
func (m *Model) SourceName() string {
	if m.Source != "" {
		return m.Source
	}
	return m.registry.Naming.SourceName(m.Name)
}

// ViewName returns the backing view name queries select from.
func (m *Model) ViewName() string {
	if m.View != "" {
		return m.View
	}
	return m.registry.Naming.ViewName(m.Name)
}

// Parent resolves the inherited model, or nil.
func (m *Model) Parent() *Model {
	if m.Inherits == "" {
		return nil
	}
	parent, _ := m.registry.Get(m.Inherits)
	return parent
}

// Attributes returns the model's own fields plus all non-primary inherited
// fields, child overriding parent by name. The computed list is cached
// until ClearAttributes.
func (m *Model) Attributes() []*Field {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attributes != nil && !m.dirty {
		return m.attributes
	}

	own := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		own[f.Name] = true
	}

	var attrs []*Field
	if parent := m.Parent(); parent != nil {
		for _, f := range parent.Attributes() {
			if f.Primary || own[f.Name] {
				continue
			}
			attrs = append(attrs, f)
		}
	}
	attrs = append(attrs, m.Fields...)

	m.attributes = attrs
	m.mappings = nil
	m.dirty = false
	return attrs
}

// ClearAttributes invalidates the memoized attribute list and mapping
// cache, forcing recomputation on next access.
func (m *Model) ClearAttributes() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

// LookUpField finds an attribute by storage name or property alias.
func (m *Model) LookUpField(name string) *Field {
	for _, f := range m.Attributes() {
		if f.Name == name {
			return f
		}
	}
	for _, f := range m.Attributes() {
		if f.Property == name {
			return f
		}
	}
	return nil
}

// PrimaryField returns the field flagged primary.
func (m *Model) PrimaryField() (*Field, error) {
	for _, f := range m.Attributes() {
		if f.Primary {
			return f, nil
		}
	}
	if parent := m.Parent(); parent != nil {
		return parent.PrimaryField()
	}
	return nil, fmt.Errorf("%w: model %s", ErrPrimaryKeyRequired, m.Name)
}

// FieldMany reports the field's cardinality, inferring from pluralization
// when not explicit.
func (m *Model) FieldMany(f *Field) bool {
	if f.Many != nil {
		return *f.Many
	}
	return IsPlural(f.Name)
}

// Expandable reports whether a field resolves to an association that can
// be expanded into nested objects.
func (m *Model) Expandable(f *Field) bool {
	if f.Mapping != nil {
		return true
	}
	if !f.IsPrimitive() {
		return true
	}
	// a plural primitive field is a junction tag collection
	return f.IsPrimitive() && m.FieldMany(f) && f.Type != ""
}

// LookUpView finds a named view.
func (m *Model) LookUpView(name string) *View {
	for _, v := range m.Views {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// InferMapping resolves the association descriptor for a field, memoized
// per field name. Explicit mappings are normalized; otherwise the mapping
// is inferred from the field type and cardinality.
func (m *Model) InferMapping(f *Field) (*Mapping, error) {
	m.mu.Lock()
	if m.mappings == nil {
		m.mappings = map[string]*Mapping{}
	}
	if cached, ok := m.mappings[f.Name]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	mapping, err := m.buildMapping(f)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.mappings[f.Name] = mapping
	m.mu.Unlock()
	return mapping, nil
}

func (m *Model) buildMapping(f *Field) (*Mapping, error) {
	many := m.FieldMany(f)

	if f.Mapping != nil {
		mapping := *f.Mapping
		if mapping.Type == "" {
			if mapping.AssociationAdapter != "" {
				mapping.Type = Junction
			} else {
				mapping.Type = Association
			}
		}
		if mapping.Type != Association && mapping.Type != Junction {
			return nil, fmt.Errorf("%w: %q on %s.%s", ErrUnsupportedMapping, mapping.Type, m.Name, f.Name)
		}
		if mapping.Cascade == "" {
			mapping.Cascade = CascadeNone
		}
		mapping.Many = many
		if mapping.Type == Association {
			if err := m.validateAssociation(&mapping, f); err != nil {
				return nil, err
			}
		}
		return &mapping, nil
	}

	if f.IsPrimitive() {
		if !many || f.Type == "" {
			return nil, fmt.Errorf("%w: attribute %s of %s", ErrNoAssociation, f.Name, m.Name)
		}
		// plural primitive: tag collection through a junction table
		pk, err := m.PrimaryField()
		if err != nil {
			return nil, err
		}
		return &Mapping{
			Type:               Junction,
			ParentModel:        m.Name,
			ParentField:        pk.Name,
			AssociationAdapter: m.registry.Naming.JunctionName(m.Name, f.Name),
			ObjectField:        "object",
			ValueField:         "value",
			Cascade:            CascadeDelete,
			Many:               true,
		}, nil
	}

	target, err := m.registry.Get(f.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %s referenced by %s.%s", ErrModelNotFound, f.Type, m.Name, f.Name)
	}

	if !many {
		// this model is the child side of a foreign-key association
		pk, err := target.PrimaryField()
		if err != nil {
			return nil, err
		}
		mapping := &Mapping{
			Type:        Association,
			ParentModel: target.Name,
			ParentField: pk.Name,
			ChildModel:  m.Name,
			ChildField:  f.Name,
			Cascade:     CascadeNone,
			Many:        false,
		}
		if err := m.validateAssociation(mapping, f); err != nil {
			return nil, err
		}
		return mapping, nil
	}

	// many: either the parent side of an association (the target holds a
	// scalar back-reference) or a many-to-many junction
	var backRef *Field
	for _, tf := range target.Attributes() {
		if tf.Type == m.Name && !target.FieldMany(tf) {
			if backRef != nil {
				return nil, fmt.Errorf("%w: %s has multiple references to %s", ErrAmbiguousAssociation, target.Name, m.Name)
			}
			backRef = tf
		}
	}

	pk, err := m.PrimaryField()
	if err != nil {
		return nil, err
	}

	if backRef != nil {
		mapping := &Mapping{
			Type:        Association,
			ParentModel: m.Name,
			ParentField: pk.Name,
			ChildModel:  target.Name,
			ChildField:  backRef.Name,
			Cascade:     CascadeNone,
			Many:        true,
		}
		if err := m.validateAssociation(mapping, f); err != nil {
			return nil, err
		}
		return mapping, nil
	}

	targetPK, err := target.PrimaryField()
	if err != nil {
		return nil, err
	}
	return &Mapping{
		Type:               Junction,
		ParentModel:        m.Name,
		ParentField:        pk.Name,
		ChildModel:         target.Name,
		ChildField:         targetPK.Name,
		AssociationAdapter: m.registry.Naming.JunctionName(m.Name, f.Name),
		ObjectField:        "parentId",
		ValueField:         "valueId",
		Cascade:            CascadeDelete,
		Many:               true,
	}, nil
}

// validateAssociation enforces the invariant that an association's
// childField names a field that exists on the child model. Resolution
// failure is a hard error.
func (m *Model) validateAssociation(mapping *Mapping, f *Field) error {
	child, err := m.registry.Get(mapping.ChildModel)
	if err != nil {
		return fmt.Errorf("%w: child model %s of association %s.%s", ErrModelNotFound, mapping.ChildModel, m.Name, f.Name)
	}
	if child.LookUpField(mapping.ChildField) == nil {
		return fmt.Errorf("%w: field %s on child model %s of association %s.%s",
			ErrFieldNotFound, mapping.ChildField, child.Name, m.Name, f.Name)
	}
	return nil
}

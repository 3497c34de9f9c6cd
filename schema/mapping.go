package schema

// MappingType distinguishes the two association shapes.
type MappingType string

const (
	// Association is a foreign-key relationship: one parent row referenced
	// by many child rows through a scalar key column on the child.
	Association MappingType = "association"
	// Junction is a many-to-many relationship realized through an
	// intermediate association table.
	Junction MappingType = "junction"
)

// CascadePolicy is applied to child rows when a parent row is removed.
type CascadePolicy string

const (
	CascadeNone   CascadePolicy = "none"
	CascadeNull   CascadePolicy = "null"
	CascadeDelete CascadePolicy = "delete"
)

// Mapping describes the relationship between two models. For an
// Association the child model carries a ChildField referencing
// ParentModel.ParentField. For a Junction the AssociationAdapter table
// carries one column per side; a Junction with an empty ChildModel is a
// primitive tag collection.
type Mapping struct {
	Type               MappingType
	ParentModel        string
	ParentField        string
	ChildModel         string
	ChildField         string
	AssociationAdapter string
	// ObjectField and ValueField are the junction table's column names for
	// the owning side and the far side respectively.
	ObjectField string
	ValueField  string
	Cascade     CascadePolicy
	// Many reflects the cardinality seen from the model the mapping was
	// resolved for.
	Many bool
	// Options carries per-association query defaults ($select, $top,
	// $levels) applied during expansion.
	Options map[string]string
}

// Identity returns a key that de-duplicates mappings describing the same
// relationship.
func (m *Mapping) Identity() string {
	return m.ParentModel + "." + m.ParentField + ">" + m.ChildModel + "." + m.ChildField + "@" + m.AssociationAdapter
}

// JunctionObjectField returns the junction column holding the parent-side
// key, defaulting to "parentId".
func (m *Mapping) JunctionObjectField() string {
	if m.ObjectField != "" {
		return m.ObjectField
	}
	return "parentId"
}

// JunctionValueField returns the junction column holding the child-side
// value, defaulting to "valueId".
func (m *Mapping) JunctionValueField() string {
	if m.ValueField != "" {
		return m.ValueField
	}
	return "valueId"
}

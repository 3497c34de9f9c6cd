package schema

// Primitive field types understood by the engine. A Field whose Type names
// a registered Model instead of a primitive is an association field.
const (
	TypeText     = "Text"
	TypeInteger  = "Integer"
	TypeCounter  = "Counter"
	TypeNumber   = "Number"
	TypeBoolean  = "Boolean"
	TypeDate     = "Date"
	TypeDateTime = "DateTime"
	TypeGuid     = "Guid"
)

// Field describes a single attribute of a Model.
type Field struct {
	// Name is the storage name.
	Name string
	// Property is the display alias, when it differs from Name.
	Property string
	// Type is a primitive type name or the name of another Model.
	Type     string
	Nullable bool
	Primary  bool
	// Size bounds text length; zero means unbounded.
	Size int
	// Many marks one-to-many cardinality. When nil the cardinality is
	// inferred from pluralization of the field name.
	Many *bool
	// Hidden fields are stripped from projections before dispatch.
	Hidden bool
	// Indexed requests a secondary index during migration.
	Indexed bool
	// Mapping overrides the inferred association descriptor.
	Mapping *Mapping
	// Value is an expression evaluated when the field has no value on
	// insert, e.g. "guid()" or "now()".
	Value string
	// Calculation is an expression evaluated on every save.
	Calculation string

	// model is the Model the field was declared on, set at registration.
	// Inherited fields keep their declaring model.
	model *Model
}

// PropertyName returns the name the field is exposed under.
func (f *Field) PropertyName() string {
	if f.Property != "" {
		return f.Property
	}
	return f.Name
}

// IsPrimitive reports whether the field's type is one of the built-in
// primitives rather than a Model reference.
func (f *Field) IsPrimitive() bool {
	switch f.Type {
	case TypeText, TypeInteger, TypeCounter, TypeNumber, TypeBoolean,
		TypeDate, TypeDateTime, TypeGuid, "":
		return true
	}
	return false
}

// Model returns the model the field was declared on.
func (f *Field) Model() *Model {
	return f.model
}

// View is a named field subset with optional defaults merged into queries
// that select it.
type View struct {
	Name   string
	Fields []string
	// Filter is a textual boolean expression in the $filter grammar.
	Filter string
	Order  string
	Group  string
}

// Constraint declares a uniqueness rule over one or more fields, carried
// into the migration descriptor.
type Constraint struct {
	Type   string // "unique"
	Fields []string
}

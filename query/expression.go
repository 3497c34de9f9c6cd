package query

// Expression is the interface implemented by every node of a query
// expression tree. Adapters walk the tree with type switches; the engine
// itself never renders SQL.
type Expression interface {
	// Canonical writes a deterministic textual form of the expression,
	// used for query fingerprinting and diagnostics.
	Canonical(w Writer)
}

// Writer collects the canonical form of an expression tree.
type Writer interface {
	WriteString(s string) (int, error)
	WriteByte(c byte) error
}

// Entity references a backing table or view, optionally aliased.
type Entity struct {
	Name  string
	Alias string
}

func (e Entity) Canonical(w Writer) {
	w.WriteString(e.Name)
	if e.Alias != "" {
		w.WriteString(" as ")
		w.WriteString(e.Alias)
	}
}

// Key returns the name the entity is addressed by in predicates.
func (e Entity) Key() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Name
}

// Column references a field, optionally qualified by an entity key and
// optionally aliased in a projection.
type Column struct {
	Entity string
	Name   string
	Alias  string
}

func (c Column) Canonical(w Writer) {
	if c.Entity != "" {
		w.WriteString(c.Entity)
		w.WriteByte('.')
	}
	w.WriteString(c.Name)
	if c.Alias != "" {
		w.WriteString(" as ")
		w.WriteString(c.Alias)
	}
}

// Value is a literal operand.
type Value struct {
	V interface{}
}

func (v Value) Canonical(w Writer) {
	writeValue(w, v.V)
}

// Values is a literal list operand, used by IN and BETWEEN comparisons.
type Values struct {
	V []interface{}
}

func (vs Values) Canonical(w Writer) {
	w.WriteByte('(')
	for i, v := range vs.V {
		if i > 0 {
			w.WriteByte(',')
		}
		writeValue(w, v)
	}
	w.WriteByte(')')
}

// Func applies a named function to its arguments. The engine emits
// aggregate functions (count, avg, sum, min, max) and value transforms
// (add, substr, indexof, year, floor, ...); adapters map the names onto
// their dialect.
type Func struct {
	Name  string
	Alias string
	Args  []Expression
}

func (f Func) Canonical(w Writer) {
	w.WriteString(f.Name)
	w.WriteByte('(')
	for i, arg := range f.Args {
		if i > 0 {
			w.WriteByte(',')
		}
		arg.Canonical(w)
	}
	w.WriteByte(')')
	if f.Alias != "" {
		w.WriteString(" as ")
		w.WriteString(f.Alias)
	}
}

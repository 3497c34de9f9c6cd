package query

// JoinKind is the join flavor requested from the adapter.
type JoinKind string

const (
	LeftJoin  JoinKind = "left"
	InnerJoin JoinKind = "inner"
	RightJoin JoinKind = "right"
)

// Join attaches an entity to the query under a predicate. The engine only
// synthesizes LEFT joins for association traversal; explicit joins keep
// whatever kind the caller requested.
type Join struct {
	Kind   JoinKind
	Entity Entity
	On     Expression
}

func (j Join) Canonical(w Writer) {
	w.WriteString(string(j.Kind))
	w.WriteString(" join ")
	j.Entity.Canonical(w)
	if j.On != nil {
		w.WriteString(" on ")
		j.On.Canonical(w)
	}
}

// Order is a single ordering term.
type Order struct {
	Expr Expression
	Desc bool
}

func (o Order) Canonical(w Writer) {
	o.Expr.Canonical(w)
	if o.Desc {
		w.WriteString(" desc")
	} else {
		w.WriteString(" asc")
	}
}

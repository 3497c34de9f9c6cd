package query

import (
	"strconv"
	"strings"
)

// Statement is the unit handed to an adapter for execution.
type Statement interface {
	Expression
	statement()
}

// Query is a select statement over one entity plus any synthesized or
// explicit joins.
type Query struct {
	Entity   Entity
	Selects  []Expression
	Joins    []Join
	Where    Expression
	Orders   []Order
	Groups   []Expression
	Skip     int
	Take     int // 0 means no limit
	Distinct bool
	// Count requests a single-row total ignoring Skip/Take.
	Count bool
}

func (*Query) statement() {}

func (q *Query) Canonical(w Writer) {
	w.WriteString("select ")
	if q.Distinct {
		w.WriteString("distinct ")
	}
	if q.Count {
		w.WriteString("count ")
	}
	if len(q.Selects) == 0 {
		w.WriteByte('*')
	} else {
		for i, s := range q.Selects {
			if i > 0 {
				w.WriteByte(',')
			}
			s.Canonical(w)
		}
	}
	w.WriteString(" from ")
	q.Entity.Canonical(w)
	for _, j := range q.Joins {
		w.WriteByte(' ')
		j.Canonical(w)
	}
	if q.Where != nil {
		w.WriteString(" where ")
		q.Where.Canonical(w)
	}
	if len(q.Groups) > 0 {
		w.WriteString(" group by ")
		for i, g := range q.Groups {
			if i > 0 {
				w.WriteByte(',')
			}
			g.Canonical(w)
		}
	}
	if len(q.Orders) > 0 {
		w.WriteString(" order by ")
		for i, o := range q.Orders {
			if i > 0 {
				w.WriteByte(',')
			}
			o.Canonical(w)
		}
	}
	if q.Take > 0 {
		w.WriteString(" take ")
		w.WriteString(strconv.Itoa(q.Take))
	}
	if q.Skip > 0 {
		w.WriteString(" skip ")
		w.WriteString(strconv.Itoa(q.Skip))
	}
}

// HasJoin reports whether a join with the given entity key is already
// present. Attribute resolution uses it to de-duplicate synthesized joins.
func (q *Query) HasJoin(key string) bool {
	for _, j := range q.Joins {
		if j.Entity.Key() == key {
			return true
		}
	}
	return false
}

// AddJoin appends the joins that are not already present, comparing by
// entity key.
func (q *Query) AddJoin(joins ...Join) {
	for _, j := range joins {
		if !q.HasJoin(j.Entity.Key()) {
			q.Joins = append(q.Joins, j)
		}
	}
}

// Clone returns a deep-enough copy: expression nodes are immutable once
// built, so slices are copied and nodes shared.
func (q *Query) Clone() *Query {
	dup := *q
	dup.Selects = append([]Expression(nil), q.Selects...)
	dup.Joins = append([]Join(nil), q.Joins...)
	dup.Orders = append([]Order(nil), q.Orders...)
	dup.Groups = append([]Expression(nil), q.Groups...)
	return &dup
}

// String renders the canonical form.
func (q *Query) String() string {
	var b strings.Builder
	q.Canonical(&b)
	return b.String()
}

// Canonicalize renders any expression to its canonical string.
func Canonicalize(e Expression) string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	e.Canonical(&b)
	return b.String()
}

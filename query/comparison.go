package query

import (
	"fmt"
	"time"
)

// Operator identifies a comparison between two operands.
type Operator string

const (
	Eq          Operator = "eq"
	Ne          Operator = "ne"
	Gt          Operator = "gt"
	Ge          Operator = "ge"
	Lt          Operator = "lt"
	Le          Operator = "le"
	In          Operator = "in"
	NotIn       Operator = "nin"
	Between     Operator = "between"
	Contains    Operator = "contains"
	NotContains Operator = "ncontains"
	StartsWith  Operator = "startswith"
	EndsWith    Operator = "endswith"
	Bit         Operator = "bit"
)

// Comparison relates a left operand to a right operand.
type Comparison struct {
	Left  Expression
	Op    Operator
	Right Expression
}

func (c Comparison) Canonical(w Writer) {
	w.WriteByte('(')
	c.Left.Canonical(w)
	w.WriteByte(' ')
	w.WriteString(string(c.Op))
	w.WriteByte(' ')
	if c.Right != nil {
		c.Right.Canonical(w)
	} else {
		w.WriteString("null")
	}
	w.WriteByte(')')
}

// LogicOp joins the members of a Group.
type LogicOp string

const (
	AndOp LogicOp = "and"
	OrOp  LogicOp = "or"
)

// Group is a logical conjunction or disjunction of expressions.
type Group struct {
	Op    LogicOp
	Exprs []Expression
}

func (g Group) Canonical(w Writer) {
	w.WriteByte('(')
	for i, e := range g.Exprs {
		if i > 0 {
			w.WriteByte(' ')
			w.WriteString(string(g.Op))
			w.WriteByte(' ')
		}
		e.Canonical(w)
	}
	w.WriteByte(')')
}

// And groups expressions with AND, flattening nested AND groups.
func And(exprs ...Expression) Expression {
	return group(AndOp, exprs)
}

// Or groups expressions with OR.
func Or(exprs ...Expression) Expression {
	return group(OrOp, exprs)
}

func group(op LogicOp, exprs []Expression) Expression {
	members := make([]Expression, 0, len(exprs))
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if g, ok := e.(Group); ok && g.Op == op {
			members = append(members, g.Exprs...)
			continue
		}
		members = append(members, e)
	}
	switch len(members) {
	case 0:
		return nil
	case 1:
		return members[0]
	}
	return Group{Op: op, Exprs: members}
}

// Not negates an expression.
type Not struct {
	Expr Expression
}

func (n Not) Canonical(w Writer) {
	w.WriteString("not ")
	n.Expr.Canonical(w)
}

func writeValue(w Writer, v interface{}) {
	switch v := v.(type) {
	case nil:
		w.WriteString("null")
	case string:
		w.WriteByte('\'')
		w.WriteString(v)
		w.WriteByte('\'')
	case time.Time:
		w.WriteString(v.UTC().Format(time.RFC3339Nano))
	default:
		w.WriteString(fmt.Sprintf("%v", v))
	}
}

package sqlite

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/modelkit/modelq/query"
)

// builder renders an expression tree into SQLite SQL with ? placeholders.
type builder struct {
	sql  strings.Builder
	args []interface{}
}

func render(stmt query.Statement) (string, []interface{}, error) {
	b := &builder{}
	var err error
	switch s := stmt.(type) {
	case *query.Query:
		err = b.renderQuery(s)
	case *query.Insert:
		err = b.renderInsert(s)
	case *query.Update:
		err = b.renderUpdate(s)
	case *query.Delete:
		err = b.renderDelete(s)
	default:
		err = fmt.Errorf("sqlite: unsupported statement %T", stmt)
	}
	if err != nil {
		return "", nil, err
	}
	return b.sql.String(), b.args, nil
}

func (b *builder) renderQuery(q *query.Query) error {
	b.sql.WriteString("SELECT ")
	if q.Count {
		b.sql.WriteString("COUNT(*) AS total")
	} else {
		if q.Distinct {
			b.sql.WriteString("DISTINCT ")
		}
		if len(q.Selects) == 0 {
			b.sql.WriteString(quote(q.Entity.Key()) + ".*")
		} else {
			for i, s := range q.Selects {
				if i > 0 {
					b.sql.WriteString(", ")
				}
				if err := b.expr(s, true); err != nil {
					return err
				}
			}
		}
	}

	b.sql.WriteString(" FROM ")
	b.entity(q.Entity)
	for _, j := range q.Joins {
		switch j.Kind {
		case query.InnerJoin:
			b.sql.WriteString(" INNER JOIN ")
		case query.RightJoin:
			b.sql.WriteString(" RIGHT JOIN ")
		default:
			b.sql.WriteString(" LEFT JOIN ")
		}
		b.entity(j.Entity)
		b.sql.WriteString(" ON ")
		if err := b.expr(j.On, false); err != nil {
			return err
		}
	}
	if q.Where != nil {
		b.sql.WriteString(" WHERE ")
		if err := b.expr(q.Where, false); err != nil {
			return err
		}
	}
	if q.Count {
		return nil
	}
	if len(q.Groups) > 0 {
		b.sql.WriteString(" GROUP BY ")
		for i, g := range q.Groups {
			if i > 0 {
				b.sql.WriteString(", ")
			}
			if err := b.expr(g, false); err != nil {
				return err
			}
		}
	}
	if len(q.Orders) > 0 {
		b.sql.WriteString(" ORDER BY ")
		for i, o := range q.Orders {
			if i > 0 {
				b.sql.WriteString(", ")
			}
			if err := b.expr(o.Expr, false); err != nil {
				return err
			}
			if o.Desc {
				b.sql.WriteString(" DESC")
			}
		}
	}
	if q.Take > 0 {
		b.sql.WriteString(" LIMIT " + strconv.Itoa(q.Take))
	} else if q.Skip > 0 {
		b.sql.WriteString(" LIMIT -1")
	}
	if q.Skip > 0 {
		b.sql.WriteString(" OFFSET " + strconv.Itoa(q.Skip))
	}
	return nil
}

func (b *builder) renderInsert(s *query.Insert) error {
	keys := sortedKeys(s.Values)
	b.sql.WriteString("INSERT INTO ")
	b.sql.WriteString(quote(s.Entity.Name))
	b.sql.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.sql.WriteString(", ")
		}
		b.sql.WriteString(quote(k))
	}
	b.sql.WriteString(") VALUES (")
	for i, k := range keys {
		if i > 0 {
			b.sql.WriteString(", ")
		}
		b.sql.WriteByte('?')
		b.args = append(b.args, s.Values[k])
	}
	b.sql.WriteByte(')')
	return nil
}

func (b *builder) renderUpdate(s *query.Update) error {
	b.sql.WriteString("UPDATE ")
	b.sql.WriteString(quote(s.Entity.Name))
	b.sql.WriteString(" SET ")
	for i, k := range sortedKeys(s.Set) {
		if i > 0 {
			b.sql.WriteString(", ")
		}
		b.sql.WriteString(quote(k))
		b.sql.WriteString(" = ?")
		b.args = append(b.args, s.Set[k])
	}
	if s.Where != nil {
		b.sql.WriteString(" WHERE ")
		return b.expr(s.Where, false)
	}
	return nil
}

func (b *builder) renderDelete(s *query.Delete) error {
	b.sql.WriteString("DELETE FROM ")
	b.sql.WriteString(quote(s.Entity.Name))
	if s.Where != nil {
		b.sql.WriteString(" WHERE ")
		return b.expr(s.Where, false)
	}
	return nil
}

func (b *builder) entity(e query.Entity) {
	b.sql.WriteString(quote(e.Name))
	if e.Alias != "" && e.Alias != e.Name {
		b.sql.WriteString(" AS ")
		b.sql.WriteString(quote(e.Alias))
	}
}

// expr renders one expression node. selectPos enables projection aliases,
// which are invalid in predicate position.
func (b *builder) expr(e query.Expression, selectPos bool) error {
	switch v := e.(type) {
	case nil:
		b.sql.WriteString("NULL")
		return nil
	case query.Column:
		if v.Entity != "" {
			b.sql.WriteString(quote(v.Entity))
			b.sql.WriteByte('.')
		}
		if v.Name == "*" {
			b.sql.WriteByte('*')
		} else {
			b.sql.WriteString(quote(v.Name))
		}
		if selectPos && v.Alias != "" {
			b.sql.WriteString(" AS " + quote(v.Alias))
		}
		return nil
	case query.Value:
		if v.V == nil {
			b.sql.WriteString("NULL")
			return nil
		}
		b.sql.WriteByte('?')
		b.args = append(b.args, v.V)
		return nil
	case query.Values:
		b.sql.WriteByte('(')
		for i, member := range v.V {
			if i > 0 {
				b.sql.WriteString(", ")
			}
			b.sql.WriteByte('?')
			b.args = append(b.args, member)
		}
		b.sql.WriteByte(')')
		return nil
	case query.Comparison:
		return b.comparison(v)
	case query.Group:
		b.sql.WriteByte('(')
		for i, member := range v.Exprs {
			if i > 0 {
				if v.Op == query.OrOp {
					b.sql.WriteString(" OR ")
				} else {
					b.sql.WriteString(" AND ")
				}
			}
			if err := b.expr(member, false); err != nil {
				return err
			}
		}
		b.sql.WriteByte(')')
		return nil
	case query.Not:
		b.sql.WriteString("NOT (")
		if err := b.expr(v.Expr, false); err != nil {
			return err
		}
		b.sql.WriteByte(')')
		return nil
	case query.Func:
		return b.fn(v, selectPos)
	}
	return fmt.Errorf("sqlite: unsupported expression %T", e)
}

func (b *builder) comparison(c query.Comparison) error {
	// null operands turn eq/ne into IS NULL / IS NOT NULL
	if isNull(c.Right) && (c.Op == query.Eq || c.Op == query.Ne) {
		if err := b.expr(c.Left, false); err != nil {
			return err
		}
		if c.Op == query.Eq {
			b.sql.WriteString(" IS NULL")
		} else {
			b.sql.WriteString(" IS NOT NULL")
		}
		return nil
	}

	switch c.Op {
	case query.Contains, query.NotContains:
		if err := b.expr(c.Left, false); err != nil {
			return err
		}
		if c.Op == query.NotContains {
			b.sql.WriteString(" NOT")
		}
		b.sql.WriteString(" LIKE '%' || ")
		if err := b.expr(c.Right, false); err != nil {
			return err
		}
		b.sql.WriteString(" || '%'")
		return nil
	case query.StartsWith:
		if err := b.expr(c.Left, false); err != nil {
			return err
		}
		b.sql.WriteString(" LIKE ")
		if err := b.expr(c.Right, false); err != nil {
			return err
		}
		b.sql.WriteString(" || '%'")
		return nil
	case query.EndsWith:
		if err := b.expr(c.Left, false); err != nil {
			return err
		}
		b.sql.WriteString(" LIKE '%' || ")
		return b.expr(c.Right, false)
	case query.In, query.NotIn:
		if err := b.expr(c.Left, false); err != nil {
			return err
		}
		if c.Op == query.NotIn {
			b.sql.WriteString(" NOT IN ")
		} else {
			b.sql.WriteString(" IN ")
		}
		return b.expr(c.Right, false)
	case query.Between:
		values, ok := c.Right.(query.Values)
		if !ok || len(values.V) != 2 {
			return fmt.Errorf("sqlite: between expects two bounds")
		}
		if err := b.expr(c.Left, false); err != nil {
			return err
		}
		b.sql.WriteString(" BETWEEN ? AND ?")
		b.args = append(b.args, values.V[0], values.V[1])
		return nil
	case query.Bit:
		b.sql.WriteByte('(')
		if err := b.expr(c.Left, false); err != nil {
			return err
		}
		b.sql.WriteString(" & ")
		if err := b.expr(c.Right, false); err != nil {
			return err
		}
		b.sql.WriteString(") <> 0")
		return nil
	}

	ops := map[query.Operator]string{
		query.Eq: " = ", query.Ne: " <> ",
		query.Gt: " > ", query.Ge: " >= ",
		query.Lt: " < ", query.Le: " <= ",
	}
	op, ok := ops[c.Op]
	if !ok {
		return fmt.Errorf("sqlite: unsupported operator %q", c.Op)
	}
	if err := b.expr(c.Left, false); err != nil {
		return err
	}
	b.sql.WriteString(op)
	return b.expr(c.Right, false)
}

var infixFuncs = map[string]string{
	"add": " + ", "subtract": " - ", "multiply": " * ", "divide": " / ", "mod": " % ",
}

var datePartFuncs = map[string]string{
	"year": "%Y", "month": "%m", "day": "%d",
	"hour": "%H", "minute": "%M", "second": "%S",
}

func (b *builder) fn(f query.Func, selectPos bool) error {
	name := strings.ToLower(f.Name)
	emitAlias := func() {
		if selectPos && f.Alias != "" {
			b.sql.WriteString(" AS " + quote(f.Alias))
		}
	}

	if op, ok := infixFuncs[name]; ok {
		if len(f.Args) != 2 {
			return fmt.Errorf("sqlite: %s expects two operands", name)
		}
		b.sql.WriteByte('(')
		if err := b.expr(f.Args[0], false); err != nil {
			return err
		}
		b.sql.WriteString(op)
		if err := b.expr(f.Args[1], false); err != nil {
			return err
		}
		b.sql.WriteByte(')')
		emitAlias()
		return nil
	}

	if part, ok := datePartFuncs[name]; ok {
		b.sql.WriteString("CAST(strftime('" + part + "', ")
		if err := b.expr(f.Args[0], false); err != nil {
			return err
		}
		b.sql.WriteString(") AS INTEGER)")
		emitAlias()
		return nil
	}

	switch name {
	case "count", "avg", "sum", "min", "max",
		"length", "trim", "round", "floor", "date":
		// direct passthrough
	case "ceiling":
		name = "ceil"
	case "tolower":
		name = "lower"
	case "toupper":
		name = "upper"
	case "substring", "substr":
		return b.substr(f, emitAlias)
	case "indexof":
		b.sql.WriteString("(INSTR(")
		if err := b.argList(f.Args); err != nil {
			return err
		}
		b.sql.WriteString(") - 1)")
		emitAlias()
		return nil
	case "concat":
		b.sql.WriteByte('(')
		for i, arg := range f.Args {
			if i > 0 {
				b.sql.WriteString(" || ")
			}
			if err := b.expr(arg, false); err != nil {
				return err
			}
		}
		b.sql.WriteByte(')')
		emitAlias()
		return nil
	default:
		return fmt.Errorf("sqlite: unsupported function %q", f.Name)
	}

	b.sql.WriteString(strings.ToUpper(name))
	b.sql.WriteByte('(')
	if err := b.argList(f.Args); err != nil {
		return err
	}
	b.sql.WriteByte(')')
	emitAlias()
	return nil
}

// substr shifts the zero-based start position onto SQLite's one-based
// SUBSTR.
func (b *builder) substr(f query.Func, emitAlias func()) error {
	if len(f.Args) < 2 || len(f.Args) > 3 {
		return fmt.Errorf("sqlite: substring expects two or three arguments")
	}
	b.sql.WriteString("SUBSTR(")
	if err := b.expr(f.Args[0], false); err != nil {
		return err
	}
	b.sql.WriteString(", (")
	if err := b.expr(f.Args[1], false); err != nil {
		return err
	}
	b.sql.WriteString(") + 1")
	if len(f.Args) == 3 {
		b.sql.WriteString(", ")
		if err := b.expr(f.Args[2], false); err != nil {
			return err
		}
	}
	b.sql.WriteByte(')')
	emitAlias()
	return nil
}

func (b *builder) argList(args []query.Expression) error {
	for i, arg := range args {
		if i > 0 {
			b.sql.WriteString(", ")
		}
		if err := b.expr(arg, false); err != nil {
			return err
		}
	}
	return nil
}

func isNull(e query.Expression) bool {
	if e == nil {
		return true
	}
	v, ok := e.(query.Value)
	return ok && v.V == nil
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

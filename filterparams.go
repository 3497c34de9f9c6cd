package modelq

import (
	"fmt"
	"strings"

	"github.com/modelkit/modelq/filter"
	"github.com/modelkit/modelq/query"
)

// Filter builds a queryable from URL-style parameters: $filter, $select,
// $order/$orderby, $group/$groupby, $expand, $levels, $skip and
// $top/$take. Every other key binds an @-parameter inside the $filter
// expression.
func (m *Model) Filter(params map[string]interface{}) (*Queryable, error) {
	q := m.AsQueryable()
	bind := map[string]interface{}{}
	for k, v := range params {
		if !strings.HasPrefix(k, "$") {
			bind[k] = v
		}
	}

	if raw, ok := params["$filter"]; ok {
		text, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: $filter expects a string", ErrInvalidQuery)
		}
		expr, err := filter.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		expr, err = filter.Bind(expr, bind)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		expr, err = q.resolveFilterColumns(expr)
		if err != nil {
			return nil, err
		}
		if expr != nil {
			q.Prepare()
			q.current = expr
			q.Prepare()
		}
	}

	if raw, ok := params["$select"]; ok {
		attrs, err := stringList(raw, "$select")
		if err != nil {
			return nil, err
		}
		q.Select(attrs...)
	}
	if raw, ok := params["$order"]; ok {
		if err := applySpecParam(q, raw, "$order", func(spec string) error {
			return q.applyOrderSpec(spec, true)
		}); err != nil {
			return nil, err
		}
	}
	if raw, ok := params["$orderby"]; ok {
		if err := applySpecParam(q, raw, "$orderby", func(spec string) error {
			return q.applyOrderSpec(spec, true)
		}); err != nil {
			return nil, err
		}
	}
	if raw, ok := params["$group"]; ok {
		if err := applySpecParam(q, raw, "$group", q.applyGroupSpec); err != nil {
			return nil, err
		}
	}
	if raw, ok := params["$groupby"]; ok {
		if err := applySpecParam(q, raw, "$groupby", q.applyGroupSpec); err != nil {
			return nil, err
		}
	}
	if raw, ok := params["$expand"]; ok {
		names, err := stringList(raw, "$expand")
		if err != nil {
			return nil, err
		}
		args := make([]interface{}, len(names))
		for i, n := range names {
			args[i] = n
		}
		q.ExpandAttrs(args...)
	}
	if raw, ok := params["$levels"]; ok {
		n, err := toInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: $levels: %v", ErrInvalidQuery, err)
		}
		q.Levels(n)
	}
	if raw, ok := params["$skip"]; ok {
		n, err := toInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: $skip: %v", ErrInvalidQuery, err)
		}
		q.Skip(n)
	}
	for _, key := range []string{"$top", "$take"} {
		raw, ok := params[key]
		if !ok {
			continue
		}
		n, err := toInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidQuery, key, err)
		}
		if n > 0 {
			q.Take(n)
		}
	}

	if q.err != nil {
		return nil, q.err
	}
	return q, nil
}

// parseFilterExpression parses a stored filter (a view's Filter clause)
// and resolves its attribute paths against the model, synthesizing joins
// as it goes.
func (q *Queryable) parseFilterExpression(input string) (query.Expression, error) {
	expr, err := filter.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return q.resolveFilterColumns(expr)
}

// resolveFilterColumns rewrites unresolved Column nodes into qualified
// columns, routing nested paths through join synthesis.
func (q *Queryable) resolveFilterColumns(expr query.Expression) (query.Expression, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case query.Column:
		return q.resolveAttributePath(e.Name)
	case query.Comparison:
		left, err := q.resolveFilterColumns(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := q.resolveFilterColumns(e.Right)
		if err != nil {
			return nil, err
		}
		return query.Comparison{Left: left, Op: e.Op, Right: right}, nil
	case query.Group:
		exprs := make([]query.Expression, len(e.Exprs))
		for i, member := range e.Exprs {
			resolved, err := q.resolveFilterColumns(member)
			if err != nil {
				return nil, err
			}
			exprs[i] = resolved
		}
		return query.Group{Op: e.Op, Exprs: exprs}, nil
	case query.Not:
		inner, err := q.resolveFilterColumns(e.Expr)
		if err != nil {
			return nil, err
		}
		return query.Not{Expr: inner}, nil
	case query.Func:
		args := make([]query.Expression, len(e.Args))
		for i, arg := range e.Args {
			resolved, err := q.resolveFilterColumns(arg)
			if err != nil {
				return nil, err
			}
			args[i] = resolved
		}
		return query.Func{Name: e.Name, Alias: e.Alias, Args: args}, nil
	case filter.Param:
		return nil, fmt.Errorf("%w: filter parameter @%s was not supplied", ErrInvalidQuery, e.Name)
	default:
		return expr, nil
	}
}

// resolveAttributePath resolves one attribute path through the shared
// operand resolver, converting its deferred error into a return value.
func (q *Queryable) resolveAttributePath(name string) (query.Expression, error) {
	saved := q.err
	q.err = nil
	col := q.resolveOperand(name)
	err := q.err
	q.err = saved
	if err != nil {
		return nil, err
	}
	return col, nil
}

// applyOrderSpec applies a comma-separated order specification such as
// "familyName asc,dateCreated desc". When replace is set the existing
// order list is discarded first.
func (q *Queryable) applyOrderSpec(spec string, replace bool) error {
	if replace {
		q.q.Orders = nil
	}
	for _, term := range strings.Split(spec, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		desc := false
		if i := strings.LastIndexByte(term, ' '); i > 0 {
			switch strings.ToLower(strings.TrimSpace(term[i+1:])) {
			case "desc", "descending":
				desc = true
				term = strings.TrimSpace(term[:i])
			case "asc", "ascending":
				term = strings.TrimSpace(term[:i])
			}
		}
		expr, err := q.resolveAttributePath(term)
		if err != nil {
			return err
		}
		q.q.Orders = append(q.q.Orders, query.Order{Expr: stripAlias(expr), Desc: desc})
	}
	return nil
}

// applyGroupSpec appends the comma-separated grouping attributes.
func (q *Queryable) applyGroupSpec(spec string) error {
	for _, term := range strings.Split(spec, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		expr, err := q.resolveAttributePath(term)
		if err != nil {
			return err
		}
		q.q.Groups = append(q.q.Groups, stripAlias(expr))
	}
	return nil
}

func stringList(raw interface{}, key string) ([]string, error) {
	switch v := raw.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s expects a string or string list", ErrInvalidQuery, key)
}

func applySpecParam(q *Queryable, raw interface{}, key string, apply func(string) error) error {
	spec, ok := raw.(string)
	if !ok {
		return fmt.Errorf("%w: %s expects a string", ErrInvalidQuery, key)
	}
	return apply(spec)
}

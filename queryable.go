package modelq

import (
	"fmt"

	"github.com/modelkit/modelq/attr"
	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// Queryable is the fluent query builder bound to one model. It is mutable
// per-chain state: build one per logical query, or Clone before sharing.
type Queryable struct {
	model *Model
	q     *query.Query

	// current is the filter branch being composed; Prepare commits it
	// into the query's filter tree.
	current query.Expression
	// left is the operand opened by Where/And/Or, waiting for a
	// comparison.
	left   query.Expression
	nextOr bool

	expands []*Expand
	levels  int
	flatten bool
	silent  bool
	asArray bool
	view    *schema.View

	err error
}

// Expand marks one association for post-execution expansion.
type Expand struct {
	Name    string
	Mapping *schema.Mapping
	Options *ExpandOptions
}

// ExpandOptions carries per-association sub-query defaults.
type ExpandOptions struct {
	Select []string
	// Top bounds the nested collection; -1 means no limit, 0 means unset.
	Top int
	// Levels bounds recursive expansion below this association; 0 means
	// "caller levels minus one".
	Levels int
	Order  string
}

// ExpandWith pairs an association name with sub-query options.
func ExpandWith(name string, options *ExpandOptions) *Expand {
	return &Expand{Name: name, Options: options}
}

func newQueryable(m *Model) *Queryable {
	return &Queryable{
		model:  m,
		silent: m.silent,
		levels: 1,
		q: &query.Query{
			Entity: query.Entity{Name: m.def.ViewName()},
		},
	}
}

// Model returns the bound model handle.
func (q *Queryable) Model() *Model {
	return q.model
}

// Query exposes the underlying query expression.
func (q *Queryable) Query() *query.Query {
	return q.q
}

// Err returns the first error recorded while building the chain.
func (q *Queryable) Err() error {
	return q.err
}

func (q *Queryable) addError(err error) *Queryable {
	if q.err == nil {
		q.err = err
	}
	return q
}

func (q *Queryable) entityKey() string {
	return q.q.Entity.Key()
}

// Clone copies the chain so a sub-query can share model, view and expand
// state without aliasing the expression tree.
func (q *Queryable) Clone() *Queryable {
	dup := *q
	dup.q = q.q.Clone()
	dup.expands = append([]*Expand(nil), q.expands...)
	return &dup
}

// Where opens a predicate on the attribute; it must be followed by a
// comparison method.
func (q *Queryable) Where(attribute string) *Queryable {
	q.left = q.resolveOperand(attribute)
	q.nextOr = false
	return q
}

// And opens a further predicate joined with AND.
func (q *Queryable) And(attribute string) *Queryable {
	q.left = q.resolveOperand(attribute)
	q.nextOr = false
	return q
}

// Or opens a further predicate joined with OR.
func (q *Queryable) Or(attribute string) *Queryable {
	q.left = q.resolveOperand(attribute)
	q.nextOr = true
	return q
}

// Prepare commits the filter branch under construction into the query's
// filter tree and starts a fresh one. The committed branch merges with
// AND by default, or OR when useOr is true. Arbitrary AND/OR composition
// is expressed through explicit Prepare calls between branches.
func (q *Queryable) Prepare(useOr ...bool) *Queryable {
	if q.current == nil {
		return q
	}
	or := len(useOr) > 0 && useOr[0]
	if q.q.Where == nil {
		q.q.Where = q.current
	} else if or {
		q.q.Where = query.Or(q.q.Where, q.current)
	} else {
		q.q.Where = query.And(q.q.Where, q.current)
	}
	q.current = nil
	return q
}

// commit folds a completed comparison into the branch under construction.
func (q *Queryable) commit(expr query.Expression) *Queryable {
	q.left = nil
	if q.current == nil {
		q.current = expr
	} else if q.nextOr {
		q.current = query.Or(q.current, expr)
	} else {
		q.current = query.And(q.current, expr)
	}
	return q
}

// Select builds the projection. Attributes may be field names, nested
// paths, aggregate expressions, or the name of a view defined on the
// model. "*" clears the projection. Attributes with many cardinality are
// routed to the expand list instead of the flat projection.
func (q *Queryable) Select(attributes ...string) *Queryable {
	if len(attributes) == 1 {
		if v := q.model.def.LookUpView(attributes[0]); v != nil && q.model.def.LookUpField(attributes[0]) == nil {
			q.view = v
			return q.Select(v.Fields...)
		}
	}

	for _, a := range attributes {
		if a == "*" {
			q.q.Selects = nil
			continue
		}
		q.selectAttribute(a)
	}
	return q
}

func (q *Queryable) selectAttribute(attribute string) {
	expr, err := attr.Parse(attribute)
	if err != nil {
		q.addError(fmt.Errorf("%w: %v", ErrInvalidAttribute, err))
		return
	}

	if expr.Aggregate != "" {
		col, err := q.selectAggregatedAttribute(expr)
		if err != nil {
			q.addError(err)
			return
		}
		q.q.Selects = append(q.q.Selects, col)
		return
	}

	if expr.IsNested() {
		col, joins, err := q.resolveNestedAttributeJoin(q.model.def, expr, q.entityKey())
		if err != nil {
			q.addError(err)
			return
		}
		q.q.AddJoin(joins...)
		q.q.Selects = append(q.q.Selects, col)
		return
	}

	f := q.model.def.LookUpField(expr.First())
	if f == nil {
		q.addError(fmt.Errorf("%w: attribute %s of model %s", ErrFieldNotFound, expr.First(), q.model.def.Name))
		return
	}

	// many-cardinality attributes have no flat column; they expand after
	// execution instead
	if q.model.def.FieldMany(f) {
		q.pushExpand(&Expand{Name: f.Name})
		return
	}

	q.q.Selects = append(q.q.Selects, query.Column{
		Entity: q.entityKey(),
		Name:   f.Name,
		Alias:  expr.Alias,
	})
}

// OrderBy replaces the order list with an ascending term.
func (q *Queryable) OrderBy(attribute string) *Queryable {
	q.q.Orders = nil
	return q.ThenBy(attribute)
}

// OrderByDescending replaces the order list with a descending term.
func (q *Queryable) OrderByDescending(attribute string) *Queryable {
	q.q.Orders = nil
	return q.ThenByDescending(attribute)
}

// ThenBy appends an ascending order term.
func (q *Queryable) ThenBy(attribute string) *Queryable {
	if expr := q.resolveOperand(attribute); expr != nil {
		q.q.Orders = append(q.q.Orders, query.Order{Expr: expr})
	}
	q.left = nil
	return q
}

// ThenByDescending appends a descending order term.
func (q *Queryable) ThenByDescending(attribute string) *Queryable {
	if expr := q.resolveOperand(attribute); expr != nil {
		q.q.Orders = append(q.q.Orders, query.Order{Expr: expr, Desc: true})
	}
	q.left = nil
	return q
}

// GroupBy sets the grouping attributes, resolved through the same join
// synthesis as filtering and ordering.
func (q *Queryable) GroupBy(attributes ...string) *Queryable {
	q.q.Groups = nil
	for _, a := range attributes {
		if expr := q.resolveOperand(a); expr != nil {
			q.q.Groups = append(q.q.Groups, expr)
		}
	}
	q.left = nil
	return q
}

// Skip sets the paging offset.
func (q *Queryable) Skip(n int) *Queryable {
	q.q.Skip = n
	return q
}

// Take bounds the number of records returned.
func (q *Queryable) Take(n int) *Queryable {
	q.q.Take = n
	return q
}

// ExpandAttrs adds associations to the expand list: strings name an
// association field, *Expand values carry sub-query options. Calling with
// no arguments clears the list.
func (q *Queryable) ExpandAttrs(args ...interface{}) *Queryable {
	if len(args) == 0 {
		q.expands = nil
		return q
	}
	for _, a := range args {
		switch v := a.(type) {
		case string:
			q.pushExpand(&Expand{Name: v})
		case *Expand:
			q.pushExpand(v)
		case Expand:
			q.pushExpand(&v)
		case *schema.Mapping:
			q.pushExpand(&Expand{Mapping: v})
		default:
			q.addError(fmt.Errorf("%w: unsupported expand argument %T", ErrInvalidQuery, a))
		}
	}
	return q
}

func (q *Queryable) pushExpand(e *Expand) {
	for _, existing := range q.expands {
		if existing.Name != "" && existing.Name == e.Name {
			return
		}
	}
	q.expands = append(q.expands, e)
}

// Levels sets the expansion recursion depth. A value below one is
// equivalent to Flatten.
func (q *Queryable) Levels(n int) *Queryable {
	if n < 1 {
		return q.Flatten()
	}
	q.levels = n
	q.flatten = false
	return q
}

// CurrentLevels reports the effective expansion depth.
func (q *Queryable) CurrentLevels() int {
	if q.flatten {
		return 0
	}
	return q.levels
}

// Flatten suppresses association expansion entirely: the expand list is
// cleared and foreign keys stay raw scalars.
func (q *Queryable) Flatten(v ...bool) *Queryable {
	flatten := true
	if len(v) > 0 {
		flatten = v[0]
	}
	q.flatten = flatten
	if flatten {
		q.expands = nil
		q.levels = 0
	} else if q.levels < 1 {
		q.levels = 1
	}
	return q
}

// Silent opts this chain out of permission-filter hook participation. The
// flag propagates to the nested lookups expansion triggers.
func (q *Queryable) Silent(v ...bool) *Queryable {
	silent := true
	if len(v) > 0 {
		silent = v[0]
	}
	q.silent = silent
	return q
}

// AsArray collapses single-field projections to scalar sequences in
// ScalarAll.
func (q *Queryable) AsArray(v ...bool) *Queryable {
	asArray := true
	if len(v) > 0 {
		asArray = v[0]
	}
	q.asArray = asArray
	return q
}

// Join appends an explicit LEFT join against the named model, inferring
// the unique association between the two models. Zero or ambiguous
// matches are errors.
func (q *Queryable) Join(modelName string) *Queryable {
	target, err := q.model.db.registry.Get(modelName)
	if err != nil {
		return q.addError(err)
	}

	var match *schema.Field
	for _, f := range q.model.def.Attributes() {
		if f.Type == modelName {
			if match != nil {
				return q.addError(fmt.Errorf("%w: model %s and model %s", ErrJoinAmbiguous, q.model.def.Name, modelName))
			}
			match = f
		}
	}
	if match == nil {
		return q.addError(fmt.Errorf("%w: model %s and model %s", ErrJoinNotFound, q.model.def.Name, modelName))
	}

	mapping, err := q.model.def.InferMapping(match)
	if err != nil {
		return q.addError(err)
	}

	join, err := q.associationJoin(q.model.def, mapping, match.Name, q.entityKey(), target)
	if err != nil {
		return q.addError(err)
	}
	q.q.AddJoin(join)
	return q
}

// resolveOperand resolves an attribute expression into a filter/order
// operand, synthesizing joins for nested paths.
func (q *Queryable) resolveOperand(attribute string) query.Expression {
	expr, err := attr.Parse(attribute)
	if err != nil {
		q.addError(fmt.Errorf("%w: %v", ErrInvalidAttribute, err))
		return nil
	}

	if expr.Aggregate != "" {
		col, err := q.selectAggregatedAttribute(expr)
		if err != nil {
			q.addError(err)
			return nil
		}
		return col
	}

	if expr.IsNested() {
		col, joins, err := q.resolveNestedAttributeJoin(q.model.def, expr, q.entityKey())
		if err != nil {
			q.addError(err)
			return nil
		}
		q.q.AddJoin(joins...)
		return stripAlias(col)
	}

	f := q.model.def.LookUpField(expr.First())
	if f == nil {
		q.addError(fmt.Errorf("%w: attribute %s of model %s", ErrFieldNotFound, expr.First(), q.model.def.Name))
		return nil
	}
	return query.Column{Entity: q.entityKey(), Name: f.Name}
}

// stripAlias removes a projection alias from an operand used in filter or
// order position.
func stripAlias(e query.Expression) query.Expression {
	switch v := e.(type) {
	case query.Column:
		v.Alias = ""
		return v
	case query.Func:
		v.Alias = ""
		return v
	}
	return e
}

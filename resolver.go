package modelq

import (
	"fmt"

	"github.com/modelkit/modelq/attr"
	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// resolveNestedAttributeJoin converts a nested attribute path into a
// select expression plus the LEFT joins needed to reach it. The caller
// merges the joins into the owning query; AddJoin de-duplicates by entity
// alias so re-resolving a path that reuses a segment never doubles a
// join.
//
// Every resolution failure is a hard error naming the offending attribute
// and model; nothing here degrades silently.
func (q *Queryable) resolveNestedAttributeJoin(model *schema.Model, expr *attr.Expr, baseKey string) (query.Expression, []query.Join, error) {
	first := expr.First()
	f := model.LookUpField(first)
	if f == nil {
		return nil, nil, fmt.Errorf("%w: attribute %s of model %s", ErrFieldNotFound, first, model.Name)
	}

	mapping, err := model.InferMapping(f)
	if err != nil {
		return nil, nil, err
	}

	if mapping.Type == schema.Junction {
		return q.resolveJunctionAttributeJoin(model, mapping, expr, baseKey)
	}

	registry := q.model.db.registry

	if mapping.ChildModel == model.Name {
		// current model is the child side: join the parent's view aliased
		// by the join field, child.childField = parent.parentField
		parent, err := registry.Get(mapping.ParentModel)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: parent model %s of attribute %s", ErrModelNotFound, mapping.ParentModel, expr.Name())
		}

		join := query.Join{
			Kind:   query.LeftJoin,
			Entity: query.Entity{Name: parent.ViewName(), Alias: first},
			On: query.Comparison{
				Left:  query.Column{Entity: baseKey, Name: mapping.ChildField},
				Op:    query.Eq,
				Right: query.Column{Entity: first, Name: mapping.ParentField},
			},
		}

		if len(expr.Path) > 2 {
			// deeper path: recurse into the parent model, parent join first
			col, deeper, err := q.resolveNestedAttributeJoin(parent, expr.Rest(), first)
			if err != nil {
				return nil, nil, err
			}
			return col, append([]query.Join{join}, deeper...), nil
		}

		target := parent.LookUpField(expr.Path[1])
		if target == nil {
			return nil, nil, fmt.Errorf("%w: attribute %s of model %s", ErrFieldNotFound, expr.Path[1], parent.Name)
		}
		col := query.Column{Entity: first, Name: target.Name, Alias: expr.Alias}
		return col, []query.Join{join}, nil
	}

	// current model is the parent side: only two-segment paths are
	// supported on this branch
	if len(expr.Path) > 2 {
		return nil, nil, fmt.Errorf("%w: attribute %s of model %s: paths deeper than two segments are not supported for one-to-many associations",
			ErrInvalidAttribute, expr.Name(), model.Name)
	}

	child, err := registry.Get(mapping.ChildModel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: child model %s of attribute %s", ErrModelNotFound, mapping.ChildModel, expr.Name())
	}

	join := query.Join{
		Kind:   query.LeftJoin,
		Entity: query.Entity{Name: child.ViewName(), Alias: first},
		On: query.Comparison{
			Left:  query.Column{Entity: baseKey, Name: mapping.ParentField},
			Op:    query.Eq,
			Right: query.Column{Entity: first, Name: mapping.ChildField},
		},
	}

	target := child.LookUpField(expr.Path[1])
	if target == nil {
		return nil, nil, fmt.Errorf("%w: attribute %s of model %s", ErrFieldNotFound, expr.Path[1], child.Name)
	}
	col := query.Column{Entity: first, Name: target.Name, Alias: expr.Alias}
	return col, []query.Join{join}, nil
}

// resolveJunctionAttributeJoin joins through the association-adapter
// table, using the foreign-key column matching the current model's side,
// and optionally traverses into the far-side model when the target
// attribute belongs to it rather than to the junction table.
func (q *Queryable) resolveJunctionAttributeJoin(model *schema.Model, mapping *schema.Mapping, expr *attr.Expr, baseKey string) (query.Expression, []query.Join, error) {
	if len(expr.Path) > 2 {
		return nil, nil, fmt.Errorf("%w: attribute %s of model %s: junction paths deeper than two segments are not supported",
			ErrInvalidAttribute, expr.Name(), model.Name)
	}

	registry := q.model.db.registry
	alias := expr.First()

	var (
		junction query.Join
		farModel string
		farKey   string
	)

	if mapping.ParentModel == model.Name {
		// current model owns the junction: its key matches the object column
		junction = query.Join{
			Kind:   query.LeftJoin,
			Entity: query.Entity{Name: mapping.AssociationAdapter, Alias: alias},
			On: query.Comparison{
				Left:  query.Column{Entity: baseKey, Name: mapping.ParentField},
				Op:    query.Eq,
				Right: query.Column{Entity: alias, Name: mapping.JunctionObjectField()},
			},
		}
		farModel = mapping.ChildModel
		farKey = mapping.JunctionValueField()
	} else {
		// current model is the far side: its key matches the value column
		junction = query.Join{
			Kind:   query.LeftJoin,
			Entity: query.Entity{Name: mapping.AssociationAdapter, Alias: alias},
			On: query.Comparison{
				Left:  query.Column{Entity: baseKey, Name: mapping.ChildField},
				Op:    query.Eq,
				Right: query.Column{Entity: alias, Name: mapping.JunctionValueField()},
			},
		}
		farModel = mapping.ParentModel
		farKey = mapping.JunctionObjectField()
	}

	if len(expr.Path) == 1 {
		// bare junction attribute selects the far-side key column
		return query.Column{Entity: alias, Name: farKey, Alias: expr.Alias}, []query.Join{junction}, nil
	}

	second := expr.Path[1]

	if farModel == "" {
		// primitive tag collection: the only addressable attribute is the
		// stored value
		return query.Column{Entity: alias, Name: mapping.JunctionValueField(), Alias: expr.Alias}, []query.Join{junction}, nil
	}

	far, err := registry.Get(farModel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: model %s of attribute %s", ErrModelNotFound, farModel, expr.Name())
	}

	if far.LookUpField(second) == nil {
		// the attribute may name a junction column directly
		if second == mapping.JunctionObjectField() || second == mapping.JunctionValueField() {
			return query.Column{Entity: alias, Name: second, Alias: expr.Alias}, []query.Join{junction}, nil
		}
		return nil, nil, fmt.Errorf("%w: attribute %s of model %s", ErrFieldNotFound, second, far.Name)
	}

	farPK, err := far.PrimaryField()
	if err != nil {
		return nil, nil, err
	}

	farAlias := alias + "Value"
	farJoin := query.Join{
		Kind:   query.LeftJoin,
		Entity: query.Entity{Name: far.ViewName(), Alias: farAlias},
		On: query.Comparison{
			Left:  query.Column{Entity: alias, Name: farKey},
			Op:    query.Eq,
			Right: query.Column{Entity: farAlias, Name: farPK.Name},
		},
	}

	col := query.Column{Entity: farAlias, Name: second, Alias: expr.Alias}
	return col, []query.Join{junction, farJoin}, nil
}

// selectAggregatedAttribute resolves the base field or nested path first,
// then wraps the reference in an aggregate envelope keyed by the resolved
// alias.
func (q *Queryable) selectAggregatedAttribute(expr *attr.Expr) (query.Expression, error) {
	var base query.Expression

	if expr.IsNested() {
		col, joins, err := q.resolveNestedAttributeJoin(q.model.def, expr, q.entityKey())
		if err != nil {
			return nil, err
		}
		q.q.AddJoin(joins...)
		base = stripAlias(col)
	} else {
		f := q.model.def.LookUpField(expr.First())
		if f == nil {
			return nil, fmt.Errorf("%w: attribute %s of model %s", ErrFieldNotFound, expr.First(), q.model.def.Name)
		}
		base = query.Column{Entity: q.entityKey(), Name: f.Name}
	}

	return query.Func{
		Name:  expr.Aggregate,
		Alias: expr.DefaultAlias(),
		Args:  []query.Expression{base},
	}, nil
}

// associationJoin builds the single explicit join used by Join(model).
func (q *Queryable) associationJoin(model *schema.Model, mapping *schema.Mapping, fieldName, baseKey string, target *schema.Model) (query.Join, error) {
	switch {
	case mapping.Type == schema.Junction:
		return query.Join{
			Kind:   query.LeftJoin,
			Entity: query.Entity{Name: mapping.AssociationAdapter, Alias: fieldName},
			On: query.Comparison{
				Left:  query.Column{Entity: baseKey, Name: mapping.ParentField},
				Op:    query.Eq,
				Right: query.Column{Entity: fieldName, Name: mapping.JunctionObjectField()},
			},
		}, nil
	case mapping.ChildModel == model.Name:
		return query.Join{
			Kind:   query.LeftJoin,
			Entity: query.Entity{Name: target.ViewName(), Alias: fieldName},
			On: query.Comparison{
				Left:  query.Column{Entity: baseKey, Name: mapping.ChildField},
				Op:    query.Eq,
				Right: query.Column{Entity: fieldName, Name: mapping.ParentField},
			},
		}, nil
	default:
		return query.Join{
			Kind:   query.LeftJoin,
			Entity: query.Entity{Name: target.ViewName(), Alias: fieldName},
			On: query.Comparison{
				Left:  query.Column{Entity: baseKey, Name: mapping.ParentField},
				Op:    query.Eq,
				Right: query.Column{Entity: fieldName, Name: mapping.ChildField},
			},
		}, nil
	}
}

package modelq

import (
	"context"
	"fmt"

	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// expandRows attaches associated objects to the result rows, one expand
// entry at a time. Entries run in series; each batched fetch is keyed on
// the distinct key values actually present, bounding query count to the
// number of associations rather than the number of rows.
//
// An entry whose mapping cannot be resolved is logged and skipped; the
// remaining entries proceed. Adapter errors still abort the operation.
func (q *Queryable) expandRows(ctx context.Context, rows []map[string]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	seen := map[string]bool{}
	for _, e := range q.expands {
		mapping := e.Mapping
		if mapping == nil && e.Name != "" {
			if f := q.model.def.LookUpField(e.Name); f != nil {
				if m, err := q.model.def.InferMapping(f); err == nil {
					mapping = m
				}
			}
		}
		if mapping == nil {
			q.model.db.logger.Warn(ctx, "expand: association %q of model %s cannot be resolved, skipping",
				e.Name, q.model.def.Name)
			continue
		}
		if seen[mapping.Identity()] {
			continue
		}
		seen[mapping.Identity()] = true

		var err error
		switch {
		case mapping.Type == schema.Association && mapping.ChildModel == q.model.def.Name:
			err = q.expandParents(ctx, e, mapping, rows)
		case mapping.Type == schema.Association && mapping.ParentModel == q.model.def.Name:
			err = q.expandChildren(ctx, e, mapping, rows)
		case mapping.Type == schema.Junction && mapping.ChildModel == q.model.def.Name:
			err = q.expandJunctionParents(ctx, e, mapping, rows)
		case mapping.Type == schema.Junction && mapping.ParentModel == q.model.def.Name && mapping.ChildModel != "":
			err = q.expandJunctionChildren(ctx, e, mapping, rows)
		case mapping.Type == schema.Junction && mapping.ParentModel == q.model.def.Name:
			err = q.expandTags(ctx, e, mapping, rows)
		default:
			q.model.db.logger.Warn(ctx, "expand: association %q of model %s has an unusable orientation, skipping",
				e.Name, q.model.def.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// subQueryable builds the nested query for one expansion, propagating
// silent mode and the decremented expansion depth, then applying the
// per-association options.
func (q *Queryable) subQueryable(target *Model, e *Expand, keyField string) *Queryable {
	sub := target.AsQueryable().Silent(q.silent).Levels(q.levels - 1)

	if e.Options != nil {
		if len(e.Options.Select) > 0 {
			sub.Select(e.Options.Select...)
			sub.ensureSelected(keyField)
		}
		if e.Options.Levels > 0 {
			sub.Levels(e.Options.Levels)
		}
		if e.Options.Order != "" {
			if err := sub.applyOrderSpec(e.Options.Order, true); err != nil {
				sub.addError(err)
			}
		}
		if e.Options.Top > 0 {
			sub.Take(e.Options.Top)
		}
	}
	return sub
}

// ensureSelected appends the key column when an explicit $select left it
// out; attachment matching needs it.
func (q *Queryable) ensureSelected(name string) {
	for _, s := range q.q.Selects {
		if projectionKey(s) == name {
			return
		}
	}
	q.q.Selects = append(q.q.Selects, query.Column{Entity: q.entityKey(), Name: name})
}

// attachName is the row key expanded results attach under.
func (q *Queryable) attachName(e *Expand, mapping *schema.Mapping) string {
	if e.Name != "" {
		return e.Name
	}
	for _, f := range q.model.def.Attributes() {
		if m, err := q.model.def.InferMapping(f); err == nil && m.Identity() == mapping.Identity() {
			return f.Name
		}
	}
	return mapping.ChildField
}

// expandParents resolves the referenced parent object of each row: the
// current model is the child side, rows carry the scalar foreign key.
func (q *Queryable) expandParents(ctx context.Context, e *Expand, mapping *schema.Mapping, rows []map[string]interface{}) error {
	name := q.attachName(e, mapping)

	keys := distinctValues(rows, mapping.ChildField, mapping.ParentField)
	if len(keys) == 0 {
		return nil
	}

	parent, err := q.model.db.Model(mapping.ParentModel)
	if err != nil {
		return err
	}

	sub := q.subQueryable(parent, e, mapping.ParentField)
	parents, err := sub.Where(mapping.ParentField).In(keys...).All(ctx)
	if err != nil {
		return err
	}

	index := make(map[string]map[string]interface{}, len(parents))
	for _, p := range parents {
		index[keyString(p[mapping.ParentField])] = p
	}

	for _, row := range rows {
		if v, ok := index[keyString(reduceKey(row[mapping.ChildField], mapping.ParentField))]; ok {
			row[name] = v
		} else {
			row[name] = nil
		}
	}
	return nil
}

// expandChildren attaches the child collection of each row: the current
// model is the parent side of a plain association.
func (q *Queryable) expandChildren(ctx context.Context, e *Expand, mapping *schema.Mapping, rows []map[string]interface{}) error {
	name := q.attachName(e, mapping)

	keys := distinctValues(rows, mapping.ParentField, mapping.ParentField)
	if len(keys) == 0 {
		return nil
	}

	child, err := q.model.db.Model(mapping.ChildModel)
	if err != nil {
		return err
	}

	sub := q.subQueryable(child, e, mapping.ChildField)
	children, err := sub.Where(mapping.ChildField).In(keys...).All(ctx)
	if err != nil {
		return err
	}

	// a nested run may already have expanded the foreign key into the
	// parent object; grouping reduces it back to the key
	grouped := map[string][]map[string]interface{}{}
	for _, c := range children {
		k := keyString(reduceKey(c[mapping.ChildField], mapping.ParentField))
		grouped[k] = append(grouped[k], c)
	}

	for _, row := range rows {
		k := keyString(row[mapping.ParentField])
		if members, ok := grouped[k]; ok {
			row[name] = members
		} else {
			row[name] = []map[string]interface{}{}
		}
	}
	return nil
}

// junctionPairs fetches the (object, value) pairs of a junction table for
// the given object keys.
func (q *Queryable) junctionPairs(ctx context.Context, mapping *schema.Mapping, keyColumn string, keys []interface{}) ([]map[string]interface{}, error) {
	if err := q.model.ensureJunction(ctx, mapping); err != nil {
		return nil, err
	}
	junction := &query.Query{
		Entity: query.Entity{Name: mapping.AssociationAdapter},
		Where: query.Comparison{
			Left:  query.Column{Entity: mapping.AssociationAdapter, Name: keyColumn},
			Op:    query.In,
			Right: query.Values{V: keys},
		},
	}
	return q.model.db.adapter.Execute(ctx, junction, nil)
}

// expandJunctionChildren attaches the far-side members of a junction to
// each owning row ("get children").
func (q *Queryable) expandJunctionChildren(ctx context.Context, e *Expand, mapping *schema.Mapping, rows []map[string]interface{}) error {
	name := q.attachName(e, mapping)

	keys := distinctValues(rows, mapping.ParentField, mapping.ParentField)
	if len(keys) == 0 {
		return nil
	}

	pairs, err := q.junctionPairs(ctx, mapping, mapping.JunctionObjectField(), keys)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		attachEmpty(rows, name)
		return nil
	}

	memberKeys := distinctValues(pairs, mapping.JunctionValueField(), mapping.ChildField)
	child, err := q.model.db.Model(mapping.ChildModel)
	if err != nil {
		return err
	}

	sub := q.subQueryable(child, e, mapping.ChildField)
	members, err := sub.Where(mapping.ChildField).In(memberKeys...).All(ctx)
	if err != nil {
		return err
	}

	byKey := make(map[string]map[string]interface{}, len(members))
	for _, m := range members {
		byKey[keyString(m[mapping.ChildField])] = m
	}

	grouped := map[string][]map[string]interface{}{}
	for _, p := range pairs {
		owner := keyString(p[mapping.JunctionObjectField()])
		if m, ok := byKey[keyString(p[mapping.JunctionValueField()])]; ok {
			grouped[owner] = append(grouped[owner], m)
		}
	}

	for _, row := range rows {
		k := keyString(row[mapping.ParentField])
		if members, ok := grouped[k]; ok {
			row[name] = members
		} else {
			row[name] = []map[string]interface{}{}
		}
	}
	return nil
}

// expandJunctionParents attaches the parent-side members of a junction to
// each owning row ("get parents"): the current model is the far side.
func (q *Queryable) expandJunctionParents(ctx context.Context, e *Expand, mapping *schema.Mapping, rows []map[string]interface{}) error {
	name := q.attachName(e, mapping)

	keys := distinctValues(rows, mapping.ChildField, mapping.ChildField)
	if len(keys) == 0 {
		return nil
	}

	pairs, err := q.junctionPairs(ctx, mapping, mapping.JunctionValueField(), keys)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		attachEmpty(rows, name)
		return nil
	}

	ownerKeys := distinctValues(pairs, mapping.JunctionObjectField(), mapping.ParentField)
	parent, err := q.model.db.Model(mapping.ParentModel)
	if err != nil {
		return err
	}

	sub := q.subQueryable(parent, e, mapping.ParentField)
	parents, err := sub.Where(mapping.ParentField).In(ownerKeys...).All(ctx)
	if err != nil {
		return err
	}

	byKey := make(map[string]map[string]interface{}, len(parents))
	for _, p := range parents {
		byKey[keyString(p[mapping.ParentField])] = p
	}

	grouped := map[string][]map[string]interface{}{}
	for _, p := range pairs {
		member := keyString(p[mapping.JunctionValueField()])
		if owner, ok := byKey[keyString(p[mapping.JunctionObjectField()])]; ok {
			grouped[member] = append(grouped[member], owner)
		}
	}

	for _, row := range rows {
		k := keyString(row[mapping.ChildField])
		if owners, ok := grouped[k]; ok {
			row[name] = owners
		} else {
			row[name] = []map[string]interface{}{}
		}
	}
	return nil
}

// expandTags attaches raw scalar tag values per owning row: a junction
// with no child model stores primitive values directly.
func (q *Queryable) expandTags(ctx context.Context, e *Expand, mapping *schema.Mapping, rows []map[string]interface{}) error {
	name := q.attachName(e, mapping)

	keys := distinctValues(rows, mapping.ParentField, mapping.ParentField)
	if len(keys) == 0 {
		return nil
	}

	pairs, err := q.junctionPairs(ctx, mapping, mapping.JunctionObjectField(), keys)
	if err != nil {
		return err
	}

	grouped := map[string][]interface{}{}
	for _, p := range pairs {
		owner := keyString(p[mapping.JunctionObjectField()])
		grouped[owner] = append(grouped[owner], p[mapping.JunctionValueField()])
	}

	for _, row := range rows {
		k := keyString(row[mapping.ParentField])
		if tags, ok := grouped[k]; ok {
			row[name] = tags
		} else {
			row[name] = []interface{}{}
		}
	}
	return nil
}

func attachEmpty(rows []map[string]interface{}, name string) {
	for _, row := range rows {
		row[name] = []map[string]interface{}{}
	}
}

// distinctValues collects the distinct non-nil values of a column across
// the rows. keyField names the referenced model's key so a previously
// expanded object reduces back to the value it was matched on.
func distinctValues(rows []map[string]interface{}, column, keyField string) []interface{} {
	seen := map[string]bool{}
	var out []interface{}
	for _, row := range rows {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		v = reduceKey(v, keyField)
		k := keyString(v)
		if !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

// reduceKey unwraps an attached association object to the key it was
// matched on. Expanded objects carry the referenced model's fields, so
// the lookup uses that model's key name, not the owning column's.
func reduceKey(v interface{}, keyField string) interface{} {
	if obj, ok := v.(map[string]interface{}); ok {
		if id, ok := obj[keyField]; ok {
			return id
		}
	}
	return v
}

func keyString(v interface{}) string {
	return fmt.Sprintf("%v", v)
}

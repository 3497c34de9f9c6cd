package modelq

import (
	"context"
	"fmt"

	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// Save persists the items in series inside one transaction boundary.
// Items carrying their primary key update, others insert. Junction-backed
// many fields synchronize by set difference against the stored tags.
func (m *Model) Save(ctx context.Context, items ...map[string]interface{}) error {
	if len(items) == 0 {
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return err
	}
	// junction tables migrate up front; inside the transaction the main
	// adapter's connection may not be available
	if err := m.prepareJunctions(ctx); err != nil {
		return err
	}
	return m.db.adapter.ExecuteInTransaction(ctx, func(tx Adapter) error {
		for _, item := range items {
			if err := m.saveOne(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Model) prepareJunctions(ctx context.Context) error {
	for _, f := range m.def.Attributes() {
		if !m.def.FieldMany(f) {
			continue
		}
		mapping, err := m.def.InferMapping(f)
		if err != nil || mapping.Type != schema.Junction {
			continue
		}
		if err := m.ensureJunction(ctx, mapping); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) saveOne(ctx context.Context, tx Adapter, item map[string]interface{}) error {
	pk, err := m.def.PrimaryField()
	if err != nil {
		return err
	}

	state := StateInsert
	if v, ok := itemValue(item, pk); ok && v != nil {
		state = StateUpdate
	}

	hs := m.db.hookSet(m.def.Name)
	ev := &SaveEvent{Model: m, State: state, Target: item}
	if state == StateUpdate {
		key, _ := itemValue(item, pk)
		// read through the open transaction; the main adapter may share its
		// connection with it
		prev, err := tx.Execute(ctx, &query.Query{
			Entity: query.Entity{Name: m.def.SourceName()},
			Where: query.Comparison{
				Left:  query.Column{Name: pk.Name},
				Op:    query.Eq,
				Right: query.Value{V: key},
			},
			Take: 1,
		}, nil)
		if err != nil {
			return err
		}
		if len(prev) > 0 {
			ev.Previous = prev[0]
		}
	}
	if err := hs.emitBeforeSave(ctx, ev); err != nil {
		return err
	}

	if err := m.applyComputedFields(ctx, item, state); err != nil {
		return err
	}

	scalars := map[string]interface{}{}
	type junctionSync struct {
		mapping *schema.Mapping
		values  []interface{}
	}
	var junctions []junctionSync

	for _, f := range m.def.Attributes() {
		v, ok := itemValue(item, f)
		if !ok {
			continue
		}
		if m.def.FieldMany(f) {
			mapping, err := m.def.InferMapping(f)
			if err != nil || mapping.Type != schema.Junction {
				// one-to-many association collections save through their
				// own model, not through the parent
				continue
			}
			values, ok := v.([]interface{})
			if !ok {
				if typed, ok2 := v.([]string); ok2 {
					for _, s := range typed {
						values = append(values, s)
					}
				} else {
					return fmt.Errorf("%w: field %s of model %s expects a collection", ErrInvalidQuery, f.Name, m.def.Name)
				}
			}
			junctions = append(junctions, junctionSync{mapping: mapping, values: values})
			continue
		}
		scalars[f.Name] = m.castValue(f, v)
	}

	if state == StateInsert {
		if err := m.validateRequired(scalars); err != nil {
			return err
		}
		counterKey := pk.Type == schema.TypeCounter
		if counterKey {
			delete(scalars, pk.Name)
		}
		if _, err := tx.Execute(ctx, &query.Insert{
			Entity: query.Entity{Name: m.def.SourceName()},
			Values: scalars,
		}, nil); err != nil {
			return err
		}
		if counterKey {
			last, ok := tx.(LastIdentityAdapter)
			if !ok {
				return fmt.Errorf("%w: adapter cannot report generated keys", ErrNotSupported)
			}
			id, err := last.LastIdentity(ctx)
			if err != nil {
				return err
			}
			item[pk.Name] = id
		}
	} else {
		key := scalars[pk.Name]
		delete(scalars, pk.Name)
		if len(scalars) > 0 {
			if _, err := tx.Execute(ctx, &query.Update{
				Entity: query.Entity{Name: m.def.SourceName()},
				Set:    scalars,
				Where: query.Comparison{
					Left:  query.Column{Name: pk.Name},
					Op:    query.Eq,
					Right: query.Value{V: key},
				},
			}, nil); err != nil {
				return err
			}
		}
	}

	ownerKey, _ := itemValue(item, pk)
	for _, js := range junctions {
		if err := m.syncJunction(ctx, tx, js.mapping, ownerKey, js.values); err != nil {
			return err
		}
	}

	return hs.emitAfterSave(ctx, ev)
}

// applyComputedFields fills calculation expressions on every save and
// value expressions on insert when the item carries no value.
func (m *Model) applyComputedFields(ctx context.Context, item map[string]interface{}, state int) error {
	for _, f := range m.def.Attributes() {
		if f.Calculation != "" {
			v, err := m.evalFieldExpression(ctx, f.Calculation)
			if err != nil {
				return err
			}
			item[f.Name] = v
			continue
		}
		if state != StateInsert || f.Value == "" {
			continue
		}
		if v, ok := itemValue(item, f); ok && v != nil {
			continue
		}
		v, err := m.evalFieldExpression(ctx, f.Value)
		if err != nil {
			return err
		}
		item[f.Name] = v
	}
	return nil
}

func (m *Model) validateRequired(scalars map[string]interface{}) error {
	for _, f := range m.def.Attributes() {
		if f.Nullable || f.Primary || f.Value != "" || f.Calculation != "" || m.def.FieldMany(f) {
			continue
		}
		if v, ok := scalars[f.Name]; !ok || v == nil {
			return fmt.Errorf("%w: field %s of model %s may not be null", ErrInvalidQuery, f.Name, m.def.Name)
		}
	}
	return nil
}

// syncJunction reconciles the stored tag rows of one owner against the
// desired values by set difference: missing values insert, surplus rows
// delete. Order is not meaningful for junction members.
func (m *Model) syncJunction(ctx context.Context, tx Adapter, mapping *schema.Mapping, ownerKey interface{}, values []interface{}) error {
	if err := m.ensureJunction(ctx, mapping); err != nil {
		return err
	}

	objectCol := mapping.JunctionObjectField()
	valueCol := mapping.JunctionValueField()
	entity := query.Entity{Name: mapping.AssociationAdapter}

	current, err := tx.Execute(ctx, &query.Query{
		Entity: entity,
		Where: query.Comparison{
			Left:  query.Column{Entity: mapping.AssociationAdapter, Name: objectCol},
			Op:    query.Eq,
			Right: query.Value{V: ownerKey},
		},
	}, nil)
	if err != nil {
		return err
	}

	desired := map[string]interface{}{}
	for _, v := range values {
		if obj, ok := v.(map[string]interface{}); ok && mapping.ChildModel != "" {
			if child, err := m.db.registry.Get(mapping.ChildModel); err == nil {
				if pk, err := child.PrimaryField(); err == nil {
					if key, ok := obj[pk.Name]; ok {
						v = key
					}
				}
			}
		}
		desired[keyString(v)] = v
	}

	stored := map[string]bool{}
	for _, row := range current {
		stored[keyString(row[valueCol])] = true
	}

	for k, v := range desired {
		if stored[k] {
			continue
		}
		if _, err := tx.Execute(ctx, &query.Insert{
			Entity: entity,
			Values: map[string]interface{}{objectCol: ownerKey, valueCol: v},
		}, nil); err != nil {
			return err
		}
	}

	for _, row := range current {
		if _, ok := desired[keyString(row[valueCol])]; ok {
			continue
		}
		if _, err := tx.Execute(ctx, &query.Delete{
			Entity: entity,
			Where: query.And(
				query.Comparison{Left: query.Column{Name: objectCol}, Op: query.Eq, Right: query.Value{V: ownerKey}},
				query.Comparison{Left: query.Column{Name: valueCol}, Op: query.Eq, Right: query.Value{V: row[valueCol]}},
			),
		}, nil); err != nil {
			return err
		}
	}

	return nil
}

func itemValue(item map[string]interface{}, f *schema.Field) (interface{}, bool) {
	if v, ok := item[f.Name]; ok {
		return v, true
	}
	if f.Property != "" {
		if v, ok := item[f.Property]; ok {
			return v, true
		}
	}
	return nil, false
}

package modelq

import (
	"context"
	"fmt"

	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// Remove deletes the items in series inside one transaction boundary,
// applying each association's cascade policy before the row itself goes.
func (m *Model) Remove(ctx context.Context, items ...map[string]interface{}) error {
	if len(items) == 0 {
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return err
	}
	if err := m.prepareJunctions(ctx); err != nil {
		return err
	}
	return m.db.adapter.ExecuteInTransaction(ctx, func(tx Adapter) error {
		for _, item := range items {
			if err := m.removeOne(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Model) removeOne(ctx context.Context, tx Adapter, item map[string]interface{}) error {
	pk, err := m.def.PrimaryField()
	if err != nil {
		return err
	}
	key, ok := itemValue(item, pk)
	if !ok || key == nil {
		return fmt.Errorf("%w: cannot remove an item of %s without its key", schema.ErrPrimaryKeyRequired, m.def.Name)
	}

	hs := m.db.hookSet(m.def.Name)
	ev := &RemoveEvent{Model: m, Target: item}
	if err := hs.emitBeforeRemove(ctx, ev); err != nil {
		return err
	}

	if err := m.cascade(ctx, tx, key); err != nil {
		return err
	}

	if _, err := tx.Execute(ctx, &query.Delete{
		Entity: query.Entity{Name: m.def.SourceName()},
		Where: query.Comparison{
			Left:  query.Column{Name: pk.Name},
			Op:    query.Eq,
			Right: query.Value{V: key},
		},
	}, nil); err != nil {
		return err
	}

	return hs.emitAfterRemove(ctx, ev)
}

// cascade detaches or deletes the dependents of one parent key. Junction
// rows always go with their owner; association children follow the
// mapping's cascade policy.
func (m *Model) cascade(ctx context.Context, tx Adapter, key interface{}) error {
	for _, f := range m.def.Attributes() {
		mapping, err := m.def.InferMapping(f)
		if err != nil {
			continue
		}

		if mapping.Type == schema.Junction {
			if mapping.ParentModel != m.def.Name {
				continue
			}
			if err := m.ensureJunction(ctx, mapping); err != nil {
				return err
			}
			if _, err := tx.Execute(ctx, &query.Delete{
				Entity: query.Entity{Name: mapping.AssociationAdapter},
				Where: query.Comparison{
					Left:  query.Column{Name: mapping.JunctionObjectField()},
					Op:    query.Eq,
					Right: query.Value{V: key},
				},
			}, nil); err != nil {
				return err
			}
			continue
		}

		// only the parent side owns dependents
		if mapping.ParentModel != m.def.Name || mapping.ChildModel == m.def.Name {
			continue
		}
		child, err := m.db.registry.Get(mapping.ChildModel)
		if err != nil {
			return err
		}
		where := query.Comparison{
			Left:  query.Column{Name: mapping.ChildField},
			Op:    query.Eq,
			Right: query.Value{V: key},
		}
		switch mapping.Cascade {
		case schema.CascadeDelete:
			if _, err := tx.Execute(ctx, &query.Delete{
				Entity: query.Entity{Name: child.SourceName()},
				Where:  where,
			}, nil); err != nil {
				return err
			}
		case schema.CascadeNull:
			if _, err := tx.Execute(ctx, &query.Update{
				Entity: query.Entity{Name: child.SourceName()},
				Set:    map[string]interface{}{mapping.ChildField: nil},
				Where:  where,
			}, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

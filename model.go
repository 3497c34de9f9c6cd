package modelq

import (
	"context"
	"fmt"

	"github.com/modelkit/modelq/schema"
)

// Model binds a registered definition to an engine instance. Handles are
// cheap; each logical query should build its own Queryable through one of
// the entry methods below.
type Model struct {
	db     *DB
	def    *schema.Model
	silent bool
}

// Definition returns the underlying schema definition.
func (m *Model) Definition() *schema.Model {
	return m.def
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.def.Name
}

// DB returns the owning engine.
func (m *Model) DB() *DB {
	return m.db
}

// Silent returns a handle whose queries bypass permission-filter hooks.
// The flag propagates to nested lookups the queries trigger.
func (m *Model) Silent(v ...bool) *Model {
	silent := true
	if len(v) > 0 {
		silent = v[0]
	}
	return &Model{db: m.db, def: m.def, silent: silent}
}

// Use registers hook handlers for this model. A handler participates in
// every event interface it implements.
func (m *Model) Use(handlers ...interface{}) error {
	hs := m.db.hookSet(m.def.Name)
	for _, h := range handlers {
		if !hs.register(h) {
			return fmt.Errorf("%w: handler %T implements no hook interface", ErrNotSupported, h)
		}
	}
	return nil
}

// AsQueryable starts an unfiltered query chain.
func (m *Model) AsQueryable() *Queryable {
	return newQueryable(m)
}

// Where starts a query chain with a pending predicate on the attribute.
func (m *Model) Where(attribute string) *Queryable {
	return newQueryable(m).Where(attribute)
}

// Select starts a query chain with the given projection.
func (m *Model) Select(attributes ...string) *Queryable {
	return newQueryable(m).Select(attributes...)
}

// Find starts a query chain filtered by the object's primary key when
// present, otherwise by every scalar attribute the object carries.
func (m *Model) Find(obj map[string]interface{}) *Queryable {
	q := newQueryable(m)
	pk, err := m.def.PrimaryField()
	if err != nil {
		q.addError(err)
		return q
	}
	if v, ok := obj[pk.Name]; ok && v != nil {
		return q.Where(pk.Name).Equal(v)
	}
	for _, f := range m.def.Attributes() {
		if m.def.FieldMany(f) {
			continue
		}
		if v, ok := obj[f.Name]; ok && v != nil {
			if q.left == nil && q.current == nil {
				q.Where(f.Name).Equal(v)
			} else {
				q.And(f.Name).Equal(v)
			}
		}
	}
	return q
}

// Migrate ensures the model's storage object exists for its current
// version. Results are cached per name and version, so repeated calls are
// cheap.
func (m *Model) Migrate(ctx context.Context) error {
	if m.db.config.DisableMigrations {
		return nil
	}
	key := m.def.Name + "@" + m.def.Version
	if _, done := m.db.migrations.Load(key); done {
		return nil
	}

	mig := m.migration()
	if err := m.db.adapter.Migrate(ctx, mig); err != nil {
		return fmt.Errorf("migrate %s: %w", m.def.Name, err)
	}
	m.db.migrations.Store(key, true)

	return m.db.hookSet(m.def.Name).emitAfterUpgrade(ctx, &UpgradeEvent{Model: m, Migration: mig})
}

// migration synthesizes the storage descriptor from the attribute list:
// scalar fields keep their declared type, child-side association fields
// become key columns typed after the parent's primary field, and many
// fields live in their own storage objects.
func (m *Model) migration() *Migration {
	mig := &Migration{
		AppliesTo:   m.def.SourceName(),
		View:        m.def.ViewName(),
		Model:       m.def.Name,
		Version:     m.def.Version,
		Constraints: m.def.Constraints,
	}
	for _, f := range m.def.Attributes() {
		if m.def.FieldMany(f) {
			continue
		}
		col := f
		if !f.IsPrimitive() {
			if target, err := m.db.registry.Get(f.Type); err == nil {
				if pk, err := target.PrimaryField(); err == nil {
					dup := *f
					dup.Type = pk.Type
					col = &dup
				}
			}
		}
		mig.Add = append(mig.Add, col)
		if f.Indexed {
			mig.Indexes = append(mig.Indexes, f.Name)
		}
	}
	return mig
}

// junctionMigration synthesizes the storage descriptor for a junction
// association table.
func (m *Model) junctionMigration(mapping *schema.Mapping) *Migration {
	object := &schema.Field{Name: mapping.JunctionObjectField(), Type: schema.TypeInteger, Nullable: false}
	value := &schema.Field{Name: mapping.JunctionValueField(), Type: schema.TypeText, Nullable: false}

	if parent, err := m.db.registry.Get(mapping.ParentModel); err == nil {
		if pk, err := parent.PrimaryField(); err == nil {
			object.Type = pk.Type
		}
	}
	if mapping.ChildModel != "" {
		if child, err := m.db.registry.Get(mapping.ChildModel); err == nil {
			if pk, err := child.PrimaryField(); err == nil {
				value.Type = pk.Type
			}
		}
	}

	return &Migration{
		AppliesTo: mapping.AssociationAdapter,
		Model:     mapping.AssociationAdapter,
		Version:   "1.0",
		Add: []*schema.Field{
			{Name: "id", Type: schema.TypeCounter, Primary: true},
			object,
			value,
		},
		Constraints: []*schema.Constraint{
			{Type: "unique", Fields: []string{object.Name, value.Name}},
		},
	}
}

func (m *Model) ensureJunction(ctx context.Context, mapping *schema.Mapping) error {
	if m.db.config.DisableMigrations {
		return nil
	}
	key := mapping.AssociationAdapter + "@junction"
	if _, done := m.db.migrations.Load(key); done {
		return nil
	}
	if err := m.db.adapter.Migrate(ctx, m.junctionMigration(mapping)); err != nil {
		return fmt.Errorf("migrate junction %s: %w", mapping.AssociationAdapter, err)
	}
	m.db.migrations.Store(key, true)
	return nil
}

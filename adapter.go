package modelq

import (
	"context"

	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// Adapter is the backing-store contract consumed by the engine. The
// engine performs no I/O itself: every suspension point is a call into
// the adapter or into a registered hook.
type Adapter interface {
	// Execute runs one statement. Select statements return the matched
	// rows; mutations return nil rows.
	Execute(ctx context.Context, stmt query.Statement, params []interface{}) ([]map[string]interface{}, error)
	// ExecuteInTransaction runs fn inside a transaction boundary. The
	// adapter passed to fn routes statements through that transaction.
	ExecuteInTransaction(ctx context.Context, fn func(tx Adapter) error) error
	// Migrate brings the backing storage object up to the described shape.
	Migrate(ctx context.Context, m *Migration) error
}

// IdentityAdapter is implemented by adapters that can reserve key values
// ahead of an insert.
type IdentityAdapter interface {
	NextIdentity(ctx context.Context, adapter, field string) (interface{}, error)
}

// LastIdentityAdapter is implemented by adapters that expose the key
// generated by the most recent insert.
type LastIdentityAdapter interface {
	LastIdentity(ctx context.Context) (interface{}, error)
}

// Migration describes the storage shape of one model version. It is the
// opaque descriptor handed to Adapter.Migrate; DDL synthesis belongs to
// the adapter.
type Migration struct {
	// AppliesTo is the backing table name.
	AppliesTo string
	// View is the backing view queries select from; empty when the
	// storage object needs no view (junction tables).
	View    string
	Model   string
	Version string
	// Add lists the scalar columns of the storage object.
	Add []*schema.Field
	// Constraints carries the model's uniqueness rules.
	Constraints []*schema.Constraint
	// Indexes lists fields flagged for secondary indexes.
	Indexes []string
}

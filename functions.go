package modelq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// evalFieldExpression evaluates a field's value/calculation expression at
// save time. The registry is deliberately small: identity generation,
// timestamps and adapter-backed sequences cover the computed fields the
// engine owns.
func (m *Model) evalFieldExpression(ctx context.Context, expr string) (interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(expr)) {
	case "guid()", "newguid()":
		return uuid.NewString(), nil
	case "now()":
		return time.Now(), nil
	case "today()":
		y, mo, d := time.Now().Date()
		return time.Date(y, mo, d, 0, 0, 0, 0, time.Local), nil
	case "sequence()":
		ident, ok := m.db.adapter.(IdentityAdapter)
		if !ok {
			return nil, fmt.Errorf("%w: adapter cannot generate sequences", ErrNotSupported)
		}
		pk, err := m.def.PrimaryField()
		if err != nil {
			return nil, err
		}
		return ident.NextIdentity(ctx, m.def.SourceName(), pk.Name)
	}
	return nil, fmt.Errorf("%w: unknown field expression %q on model %s", ErrNotSupported, expr, m.def.Name)
}

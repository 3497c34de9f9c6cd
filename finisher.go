package modelq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/modelkit/modelq/attr"
	"github.com/modelkit/modelq/query"
)

// First returns the first matching record, or nil when nothing matches.
func (q *Queryable) First(ctx context.Context) (map[string]interface{}, error) {
	q.Take(1)
	rows, err := q.execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// All returns every matching record.
func (q *Queryable) All(ctx context.Context) ([]map[string]interface{}, error) {
	return q.execute(ctx)
}

// List returns a paged result set. The total is re-counted through a
// cloned query ignoring skip/take; take defaults to the engine page size
// when unset.
func (q *Queryable) List(ctx context.Context) (*ResultSet, error) {
	counter := q.Clone()

	if q.q.Take <= 0 {
		q.Take(q.model.db.config.DefaultPageSize)
	}

	rows, err := q.execute(ctx)
	if err != nil {
		return nil, err
	}

	total, err := counter.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ResultSet{Total: total, Skip: q.q.Skip, Records: rows}, nil
}

// Count returns the number of matching records ignoring skip/take.
func (q *Queryable) Count(ctx context.Context) (int, error) {
	q.Flatten()
	q.q.Count = true
	q.q.Skip = 0
	q.q.Take = 0
	q.q.Orders = nil

	rows, err := q.execute(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if v, ok := rows[0]["total"]; ok {
		return toInt(v)
	}
	return firstScalar(rows[0])
}

// Value returns the first projected value of the first matching record.
func (q *Queryable) Value(ctx context.Context) (interface{}, error) {
	q.Flatten()
	row, err := q.First(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	if len(q.q.Selects) > 0 {
		return row[projectionKey(q.q.Selects[0])], nil
	}
	pk, err := q.model.def.PrimaryField()
	if err != nil {
		return nil, err
	}
	return row[pk.Name], nil
}

// Max returns the maximum of the attribute over the matching records.
func (q *Queryable) Max(ctx context.Context, attribute string) (interface{}, error) {
	return q.aggregate(ctx, "max", attribute)
}

// Min returns the minimum of the attribute over the matching records.
func (q *Queryable) Min(ctx context.Context, attribute string) (interface{}, error) {
	return q.aggregate(ctx, "min", attribute)
}

// Average returns the mean of the attribute over the matching records.
func (q *Queryable) Average(ctx context.Context, attribute string) (interface{}, error) {
	return q.aggregate(ctx, "avg", attribute)
}

func (q *Queryable) aggregate(ctx context.Context, fn, attribute string) (interface{}, error) {
	expr, err := attr.Parse(fn + "(" + attribute + ")")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
	}
	col, err := q.selectAggregatedAttribute(expr)
	if err != nil {
		return nil, err
	}
	q.Flatten()
	q.q.Selects = []query.Expression{col}
	row, err := q.First(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	return row[projectionKey(col)], nil
}

// ScalarAll returns the matching rows collapsed to scalars when the
// projection holds exactly one field; with more than one field the rows
// pass through unchanged. The asymmetry is long-standing behavior callers
// rely on.
func (q *Queryable) ScalarAll(ctx context.Context) ([]interface{}, error) {
	q.AsArray()
	rows, err := q.execute(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(rows))
	if len(q.q.Selects) == 1 {
		key := projectionKey(q.q.Selects[0])
		for _, r := range rows {
			out = append(out, r[key])
		}
		return out, nil
	}
	for _, r := range rows {
		out = append(out, r)
	}
	return out, nil
}

// GetItem returns the first matching record converted to its display
// shape, or nil.
func (q *Queryable) GetItem(ctx context.Context) (map[string]interface{}, error) {
	row, err := q.First(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	return q.model.Convert(row), nil
}

// GetItems returns every matching record converted to its display shape.
func (q *Queryable) GetItems(ctx context.Context) ([]map[string]interface{}, error) {
	rows, err := q.execute(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		out[i] = q.model.Convert(r)
	}
	return out, nil
}

// GetTypedItem scans the first matching record into dest, a pointer to a
// struct. ErrRecordNotFound is returned when nothing matches.
func (q *Queryable) GetTypedItem(ctx context.Context, dest interface{}) error {
	row, err := q.GetItem(ctx)
	if err != nil {
		return err
	}
	if row == nil {
		return ErrRecordNotFound
	}
	return scanRow(row, dest)
}

// GetTypedItems scans every matching record into dest, a pointer to a
// slice of structs.
func (q *Queryable) GetTypedItems(ctx context.Context, dest interface{}) error {
	rows, err := q.GetItems(ctx)
	if err != nil {
		return err
	}
	return scanRows(rows, dest)
}

// GetTypedList pages like List and scans the records into dest. The
// returned result set carries total/skip plus the converted records.
func (q *Queryable) GetTypedList(ctx context.Context, dest interface{}) (*ResultSet, error) {
	rs, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	converted := make([]map[string]interface{}, len(rs.Records))
	for i, r := range rs.Records {
		converted[i] = q.model.Convert(r)
	}
	rs.Records = converted
	if err := scanRows(converted, dest); err != nil {
		return nil, err
	}
	return rs, nil
}

// projectionKey is the column name a projected expression surfaces under.
func projectionKey(e query.Expression) string {
	switch v := e.(type) {
	case query.Column:
		if v.Alias != "" {
			return v.Alias
		}
		return v.Name
	case query.Func:
		if v.Alias != "" {
			return v.Alias
		}
		return v.Name
	}
	return ""
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: cannot read count from %T", ErrInvalidQuery, v)
}

func firstScalar(row map[string]interface{}) (int, error) {
	for _, v := range row {
		return toInt(v)
	}
	return 0, nil
}

package modelq

import (
	"context"
	"fmt"

	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// execute runs the pipeline for one terminal operation:
// migrate -> expand-resolution -> view merge -> before hooks -> dispatch
// -> after hooks -> association expansion. Any step's error
// short-circuits to the caller; no retries happen here.
func (q *Queryable) execute(ctx context.Context) ([]map[string]interface{}, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.Prepare()

	if err := q.model.Migrate(ctx); err != nil {
		return nil, err
	}

	if !q.flatten {
		q.resolveExpandables()
	}
	q.applyDefaultProjection()

	if err := q.mergeView(); err != nil {
		return nil, err
	}

	hs := q.model.db.hookSet(q.model.def.Name)
	ev := &ExecuteEvent{Model: q.model, Query: q.q, Type: "select", Silent: q.silent}

	if err := hs.emitBeforeExecute(ctx, ev); err != nil {
		return nil, err
	}

	rows, ok := ev.Result()
	if !ok {
		var err error
		rows, err = q.model.db.adapter.Execute(ctx, q.q, nil)
		if err != nil {
			return nil, err
		}
		ev.SetResult(rows)
	}

	if err := hs.emitAfterExecute(ctx, ev); err != nil {
		return nil, err
	}
	rows, _ = ev.Result()

	if len(q.expands) > 0 && !q.flatten {
		if err := q.expandRows(ctx, rows); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

// resolveExpandables registers every projected expandable field in the
// expand list, de-duplicated by mapping identity. Mapping inference
// failures are deferred: the entry stays with a nil mapping and the
// expander's soft-fail policy decides its fate.
func (q *Queryable) resolveExpandables() {
	for _, f := range q.projectedFields() {
		if !q.model.def.Expandable(f) {
			continue
		}
		mapping, err := q.model.def.InferMapping(f)
		if err != nil {
			q.pushExpandByIdentity(&Expand{Name: f.Name})
			continue
		}
		q.pushExpandByIdentity(&Expand{Name: f.Name, Mapping: mapping})
	}
}

func (q *Queryable) pushExpandByIdentity(e *Expand) {
	for _, existing := range q.expands {
		if existing.Name != "" && existing.Name == e.Name {
			return
		}
		if existing.Mapping != nil && e.Mapping != nil &&
			existing.Mapping.Identity() == e.Mapping.Identity() {
			return
		}
	}
	q.expands = append(q.expands, e)
}

// projectedFields returns the model fields the query projects: the full
// attribute list when no explicit projection was set, otherwise the
// fields behind plain column selections.
func (q *Queryable) projectedFields() []*schema.Field {
	if len(q.q.Selects) == 0 {
		return q.model.def.Attributes()
	}
	var fields []*schema.Field
	for _, s := range q.q.Selects {
		col, ok := s.(query.Column)
		if !ok || (col.Entity != "" && col.Entity != q.entityKey()) {
			continue
		}
		if f := q.model.def.LookUpField(col.Name); f != nil {
			fields = append(fields, f)
		}
	}
	return fields
}

// applyDefaultProjection materializes the implicit projection when the
// model carries hidden or many fields: hidden fields are stripped and
// many fields have no flat column.
func (q *Queryable) applyDefaultProjection() {
	if len(q.q.Selects) > 0 {
		return
	}
	needed := false
	for _, f := range q.model.def.Attributes() {
		if f.Hidden || q.model.def.FieldMany(f) {
			needed = true
			break
		}
	}
	if !needed {
		return
	}
	for _, f := range q.model.def.Attributes() {
		if f.Hidden || q.model.def.FieldMany(f) {
			continue
		}
		q.q.Selects = append(q.q.Selects, query.Column{Entity: q.entityKey(), Name: f.Name})
	}
}

// mergeView folds the originating view's defaults into the live query:
// the existing filter is prepared and ANDed with the view filter, order
// lists concatenate, group is replaced.
func (q *Queryable) mergeView() error {
	if q.view == nil {
		return nil
	}
	v := q.view
	q.view = nil

	if v.Filter != "" {
		expr, err := q.parseFilterExpression(v.Filter)
		if err != nil {
			return fmt.Errorf("view %s of model %s: %w", v.Name, q.model.def.Name, err)
		}
		q.Prepare()
		q.current = expr
		q.Prepare()
	}
	if v.Order != "" {
		if err := q.applyOrderSpec(v.Order, false); err != nil {
			return fmt.Errorf("view %s of model %s: %w", v.Name, q.model.def.Name, err)
		}
	}
	if v.Group != "" {
		q.q.Groups = nil
		if err := q.applyGroupSpec(v.Group); err != nil {
			return fmt.Errorf("view %s of model %s: %w", v.Name, q.model.def.Name, err)
		}
	}
	return nil
}

package modelq

import (
	"context"
	"sync"

	"github.com/modelkit/modelq/query"
)

// Save states carried by SaveEvent.
const (
	StateInsert = 1
	StateUpdate = 2
	StateDelete = 4
)

// ExecuteEvent is threaded through before/after-execute handlers. A
// before handler may call SetResult to short-circuit the dispatch to the
// adapter; an after handler may replace the result, and the replaced
// value is what flows downstream.
type ExecuteEvent struct {
	Model *Model
	Query *query.Query
	// Type is the statement kind, always "select" for query execution.
	Type string
	// Silent marks a chain that opted out of permission filtering.
	Silent bool

	mu        sync.Mutex
	result    []map[string]interface{}
	hasResult bool
}

// SetResult records a computed result, short-circuiting any remaining
// dispatch.
func (e *ExecuteEvent) SetResult(rows []map[string]interface{}) {
	e.mu.Lock()
	e.result = rows
	e.hasResult = true
	e.mu.Unlock()
}

// Result returns the recorded result, if any handler set one.
func (e *ExecuteEvent) Result() ([]map[string]interface{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.hasResult
}

// SaveEvent is threaded through before/after-save handlers.
type SaveEvent struct {
	Model *Model
	// State is StateInsert or StateUpdate.
	State  int
	Target map[string]interface{}
	// Previous holds the stored row on update, nil on insert.
	Previous map[string]interface{}
}

// RemoveEvent is threaded through before/after-remove handlers.
type RemoveEvent struct {
	Model  *Model
	Target map[string]interface{}
}

// UpgradeEvent is emitted after a model migration completes.
type UpgradeEvent struct {
	Model     *Model
	Migration *Migration
}

// Handler interfaces. Handlers registered on a model run in series in
// registration order; a handler error aborts the remainder of the chain
// and the operation.
type (
	BeforeExecuteHandler interface {
		BeforeExecute(ctx context.Context, e *ExecuteEvent) error
	}
	AfterExecuteHandler interface {
		AfterExecute(ctx context.Context, e *ExecuteEvent) error
	}
	BeforeSaveHandler interface {
		BeforeSave(ctx context.Context, e *SaveEvent) error
	}
	AfterSaveHandler interface {
		AfterSave(ctx context.Context, e *SaveEvent) error
	}
	BeforeRemoveHandler interface {
		BeforeRemove(ctx context.Context, e *RemoveEvent) error
	}
	AfterRemoveHandler interface {
		AfterRemove(ctx context.Context, e *RemoveEvent) error
	}
	AfterUpgradeHandler interface {
		AfterUpgrade(ctx context.Context, e *UpgradeEvent) error
	}
)

// Func adapters for single-event handlers.
type (
	BeforeExecuteFunc func(ctx context.Context, e *ExecuteEvent) error
	AfterExecuteFunc  func(ctx context.Context, e *ExecuteEvent) error
	BeforeSaveFunc    func(ctx context.Context, e *SaveEvent) error
	AfterSaveFunc     func(ctx context.Context, e *SaveEvent) error
	BeforeRemoveFunc  func(ctx context.Context, e *RemoveEvent) error
	AfterRemoveFunc   func(ctx context.Context, e *RemoveEvent) error
	AfterUpgradeFunc  func(ctx context.Context, e *UpgradeEvent) error
)

func (f BeforeExecuteFunc) BeforeExecute(ctx context.Context, e *ExecuteEvent) error {
	return f(ctx, e)
}
func (f AfterExecuteFunc) AfterExecute(ctx context.Context, e *ExecuteEvent) error {
	return f(ctx, e)
}
func (f BeforeSaveFunc) BeforeSave(ctx context.Context, e *SaveEvent) error { return f(ctx, e) }
func (f AfterSaveFunc) AfterSave(ctx context.Context, e *SaveEvent) error   { return f(ctx, e) }
func (f BeforeRemoveFunc) BeforeRemove(ctx context.Context, e *RemoveEvent) error {
	return f(ctx, e)
}
func (f AfterRemoveFunc) AfterRemove(ctx context.Context, e *RemoveEvent) error {
	return f(ctx, e)
}
func (f AfterUpgradeFunc) AfterUpgrade(ctx context.Context, e *UpgradeEvent) error {
	return f(ctx, e)
}

// hookSet holds the ordered handler lists of one model.
type hookSet struct {
	mu            sync.Mutex
	beforeExecute []BeforeExecuteHandler
	afterExecute  []AfterExecuteHandler
	beforeSave    []BeforeSaveHandler
	afterSave     []AfterSaveHandler
	beforeRemove  []BeforeRemoveHandler
	afterRemove   []AfterRemoveHandler
	afterUpgrade  []AfterUpgradeHandler
}

// register appends the handler to the list of every event interface it
// implements and reports whether it matched at least one.
func (hs *hookSet) register(h interface{}) bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	matched := false
	if v, ok := h.(BeforeExecuteHandler); ok {
		hs.beforeExecute = append(hs.beforeExecute, v)
		matched = true
	}
	if v, ok := h.(AfterExecuteHandler); ok {
		hs.afterExecute = append(hs.afterExecute, v)
		matched = true
	}
	if v, ok := h.(BeforeSaveHandler); ok {
		hs.beforeSave = append(hs.beforeSave, v)
		matched = true
	}
	if v, ok := h.(AfterSaveHandler); ok {
		hs.afterSave = append(hs.afterSave, v)
		matched = true
	}
	if v, ok := h.(BeforeRemoveHandler); ok {
		hs.beforeRemove = append(hs.beforeRemove, v)
		matched = true
	}
	if v, ok := h.(AfterRemoveHandler); ok {
		hs.afterRemove = append(hs.afterRemove, v)
		matched = true
	}
	if v, ok := h.(AfterUpgradeHandler); ok {
		hs.afterUpgrade = append(hs.afterUpgrade, v)
		matched = true
	}
	return matched
}

func (hs *hookSet) emitBeforeExecute(ctx context.Context, e *ExecuteEvent) error {
	hs.mu.Lock()
	handlers := append([]BeforeExecuteHandler(nil), hs.beforeExecute...)
	hs.mu.Unlock()
	for _, h := range handlers {
		if err := h.BeforeExecute(ctx, e); err != nil {
			return err
		}
		// a handler that computed the result short-circuits the rest of
		// the chain
		if _, ok := e.Result(); ok {
			return nil
		}
	}
	return nil
}

func (hs *hookSet) emitAfterExecute(ctx context.Context, e *ExecuteEvent) error {
	hs.mu.Lock()
	handlers := append([]AfterExecuteHandler(nil), hs.afterExecute...)
	hs.mu.Unlock()
	for _, h := range handlers {
		if err := h.AfterExecute(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (hs *hookSet) emitBeforeSave(ctx context.Context, e *SaveEvent) error {
	hs.mu.Lock()
	handlers := append([]BeforeSaveHandler(nil), hs.beforeSave...)
	hs.mu.Unlock()
	for _, h := range handlers {
		if err := h.BeforeSave(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (hs *hookSet) emitAfterSave(ctx context.Context, e *SaveEvent) error {
	hs.mu.Lock()
	handlers := append([]AfterSaveHandler(nil), hs.afterSave...)
	hs.mu.Unlock()
	for _, h := range handlers {
		if err := h.AfterSave(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (hs *hookSet) emitBeforeRemove(ctx context.Context, e *RemoveEvent) error {
	hs.mu.Lock()
	handlers := append([]BeforeRemoveHandler(nil), hs.beforeRemove...)
	hs.mu.Unlock()
	for _, h := range handlers {
		if err := h.BeforeRemove(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (hs *hookSet) emitAfterRemove(ctx context.Context, e *RemoveEvent) error {
	hs.mu.Lock()
	handlers := append([]AfterRemoveHandler(nil), hs.afterRemove...)
	hs.mu.Unlock()
	for _, h := range handlers {
		if err := h.AfterRemove(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (hs *hookSet) emitAfterUpgrade(ctx context.Context, e *UpgradeEvent) error {
	hs.mu.Lock()
	handlers := append([]AfterUpgradeHandler(nil), hs.afterUpgrade...)
	hs.mu.Unlock()
	for _, h := range handlers {
		if err := h.AfterUpgrade(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Package sqlite is the reference storage adapter, backed by the pure-Go
// SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/modelkit/modelq"
	"github.com/modelkit/modelq/logger"
	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// Adapter executes statements against a SQLite database.
type Adapter struct {
	db     *sql.DB
	logger logger.Interface
}

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Open opens (or creates) a SQLite database. Pass ":memory:" for an
// in-memory database.
func Open(dsn string, log ...logger.Interface) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	// the driver serializes access per connection; a single connection
	// keeps in-memory databases visible across statements
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	a := &Adapter{db: db, logger: logger.Default}
	if len(log) > 0 && log[0] != nil {
		a.logger = log[0]
	}
	return a, nil
}

// New wraps an existing database handle.
func New(db *sql.DB, log logger.Interface) *Adapter {
	if log == nil {
		log = logger.Default
	}
	return &Adapter{db: db, logger: log}
}

// Close releases the underlying handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Execute renders and runs one statement.
func (a *Adapter) Execute(ctx context.Context, stmt query.Statement, params []interface{}) ([]map[string]interface{}, error) {
	return executeOn(ctx, a.db, a.logger, stmt, params)
}

// ExecuteInTransaction runs fn with an adapter bound to one transaction.
// Any error rolls the transaction back.
func (a *Adapter) ExecuteInTransaction(ctx context.Context, fn func(tx modelq.Adapter) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(&txAdapter{tx: tx, parent: a}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// LastIdentity returns the key generated by the most recent insert.
func (a *Adapter) LastIdentity(ctx context.Context) (interface{}, error) {
	return lastIdentityOn(ctx, a.db)
}

// NextIdentity reserves the next sequential value of a column.
func (a *Adapter) NextIdentity(ctx context.Context, adapter, field string) (interface{}, error) {
	row := a.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s", quote(field), quote(adapter)))
	var next int64
	if err := row.Scan(&next); err != nil {
		return nil, fmt.Errorf("sqlite: next identity of %s.%s: %w", adapter, field, err)
	}
	return next, nil
}

// txAdapter routes statements through an open transaction.
type txAdapter struct {
	tx     *sql.Tx
	parent *Adapter
}

func (t *txAdapter) Execute(ctx context.Context, stmt query.Statement, params []interface{}) ([]map[string]interface{}, error) {
	return executeOn(ctx, t.tx, t.parent.logger, stmt, params)
}

// ExecuteInTransaction reuses the open transaction; SQLite has no nested
// transactions.
func (t *txAdapter) ExecuteInTransaction(ctx context.Context, fn func(tx modelq.Adapter) error) error {
	return fn(t)
}

func (t *txAdapter) Migrate(ctx context.Context, m *modelq.Migration) error {
	return t.parent.Migrate(ctx, m)
}

func (t *txAdapter) LastIdentity(ctx context.Context) (interface{}, error) {
	return lastIdentityOn(ctx, t.tx)
}

func (t *txAdapter) NextIdentity(ctx context.Context, adapter, field string) (interface{}, error) {
	return t.parent.NextIdentity(ctx, adapter, field)
}

func executeOn(ctx context.Context, on executor, log logger.Interface, stmt query.Statement, params []interface{}) ([]map[string]interface{}, error) {
	text, args, err := render(stmt)
	if err != nil {
		return nil, err
	}
	args = append(args, params...)
	begin := time.Now()

	if _, ok := stmt.(*query.Query); !ok {
		res, err := on.ExecContext(ctx, text, args...)
		var affected int64
		if err == nil {
			affected, _ = res.RowsAffected()
		}
		log.Trace(ctx, begin, func() (string, int64) { return text, affected }, err)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return nil, nil
	}

	rows, err := on.QueryContext(ctx, text, args...)
	if err != nil {
		log.Trace(ctx, begin, func() (string, int64) { return text, 0 }, err)
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	log.Trace(ctx, begin, func() (string, int64) { return text, int64(len(out)) }, err)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return out, nil
}

func lastIdentityOn(ctx context.Context, on executor) (interface{}, error) {
	rows, err := on.QueryContext(ctx, "SELECT last_insert_rowid()")
	if err != nil {
		return nil, fmt.Errorf("sqlite: last identity: %w", err)
	}
	defer rows.Close()
	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: last identity: %w", err)
		}
	}
	return id, rows.Err()
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Migrate creates or extends the storage object described by m: the
// backing table, any missing columns, indexes and the read view.
func (a *Adapter) Migrate(ctx context.Context, m *modelq.Migration) error {
	if err := a.createTable(ctx, m); err != nil {
		return err
	}
	if err := a.addMissingColumns(ctx, m); err != nil {
		return err
	}
	for _, field := range m.Indexes {
		name := fmt.Sprintf("idx_%s_%s", m.AppliesTo, field)
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quote(name), quote(m.AppliesTo), quote(field))
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: index %s: %w", name, err)
		}
	}
	if m.View != "" && m.View != m.AppliesTo {
		if _, err := a.db.ExecContext(ctx, "DROP VIEW IF EXISTS "+quote(m.View)); err != nil {
			return fmt.Errorf("sqlite: view %s: %w", m.View, err)
		}
		stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s", quote(m.View), quote(m.AppliesTo))
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: view %s: %w", m.View, err)
		}
	}
	return nil
}

func (a *Adapter) createTable(ctx context.Context, m *modelq.Migration) error {
	defs := make([]string, 0, len(m.Add)+len(m.Constraints))
	for _, f := range m.Add {
		defs = append(defs, columnDef(f))
	}
	for _, c := range m.Constraints {
		if strings.EqualFold(c.Type, "unique") && len(c.Fields) > 0 {
			quoted := make([]string, len(c.Fields))
			for i, f := range c.Fields {
				quoted[i] = quote(f)
			}
			defs = append(defs, "UNIQUE ("+strings.Join(quoted, ", ")+")")
		}
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(m.AppliesTo), strings.Join(defs, ", "))
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: table %s: %w", m.AppliesTo, err)
	}
	return nil
}

// addMissingColumns reconciles an existing table against the descriptor.
// SQLite only supports additive changes here.
func (a *Adapter) addMissingColumns(ctx context.Context, m *modelq.Migration) error {
	rows, err := a.db.QueryContext(ctx, "PRAGMA table_info("+quote(m.AppliesTo)+")")
	if err != nil {
		return fmt.Errorf("sqlite: table_info %s: %w", m.AppliesTo, err)
	}
	existing := map[string]bool{}
	info, err := scanRows(rows)
	if err != nil {
		return fmt.Errorf("sqlite: table_info %s: %w", m.AppliesTo, err)
	}
	for _, row := range info {
		if name, ok := row["name"].(string); ok {
			existing[name] = true
		}
	}
	for _, f := range m.Add {
		if existing[f.Name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(m.AppliesTo), columnDef(f))
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: add column %s.%s: %w", m.AppliesTo, f.Name, err)
		}
	}
	return nil
}

func columnDef(f *schema.Field) string {
	var b strings.Builder
	b.WriteString(quote(f.Name))
	b.WriteByte(' ')
	b.WriteString(columnType(f))
	if f.Primary {
		b.WriteString(" PRIMARY KEY")
		if f.Type == schema.TypeCounter {
			b.WriteString(" AUTOINCREMENT")
		}
	} else if !f.Nullable {
		b.WriteString(" NOT NULL")
	}
	if f.Size > 0 && f.Type == schema.TypeText {
		// size is advisory in SQLite; kept for schema readability
		return strings.Replace(b.String(), "TEXT", fmt.Sprintf("TEXT(%d)", f.Size), 1)
	}
	return b.String()
}

func columnType(f *schema.Field) string {
	switch f.Type {
	case schema.TypeInteger, schema.TypeCounter, schema.TypeBoolean:
		return "INTEGER"
	case schema.TypeNumber:
		return "REAL"
	case schema.TypeDate, schema.TypeDateTime:
		return "TEXT"
	default:
		return "TEXT"
	}
}

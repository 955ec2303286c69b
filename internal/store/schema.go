package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ticketops/reconcile-api/internal/reconcile"
)

const catalogColumnsSQL = `SELECT a.attname, format_type(a.atttypid, a.atttypmod), NOT a.attnotnull
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`

const informationSchemaColumnsSQL = `SELECT column_name, data_type, is_nullable = 'YES'
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// Introspector reads a table's live column list. The catalog query is tried
// first; roles without pg_catalog access fall back to information_schema.
type Introspector struct {
	db     *sql.DB
	schema string
	logger *slog.Logger
}

var _ reconcile.SchemaIntrospector = (*Introspector)(nil)

func NewIntrospector(db *sql.DB, schema string, logger *slog.Logger) *Introspector {
	if schema == "" {
		schema = DefaultSchema
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Introspector{db: db, schema: schema, logger: logger}
}

// Columns returns the table's columns in position order. An empty result
// with a nil error means the table has no discoverable columns.
func (i *Introspector) Columns(ctx context.Context, table string) ([]reconcile.Column, error) {
	cols, err := queryColumns(ctx, i.db, catalogColumnsSQL, i.schema, table)
	if err == nil && len(cols) > 0 {
		return cols, nil
	}
	i.logger.Warn("schema_introspection_fallback", "schema", i.schema, "table", table, "error", err)

	cols, err = queryColumns(ctx, i.db, informationSchemaColumnsSQL, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("introspect %s.%s: %w", i.schema, table, err)
	}
	return cols, nil
}

func queryColumns(ctx context.Context, db *sql.DB, query, schema, table string) ([]reconcile.Column, error) {
	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []reconcile.Column
	for rows.Next() {
		var col reconcile.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

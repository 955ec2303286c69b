package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/ticketops/reconcile-api/internal/reconcile"
)

var errEmptyBatch = errors.New("batch has no columns to write")

// WriteBatch inserts records with a single multi-row INSERT and returns the
// generated ids in record order. Any failure fails the whole batch.
func WriteBatch(ctx context.Context, q Querier, table string, schema reconcile.Schema, records []reconcile.Record) ([]int64, error) {
	query, args, err := buildInsertSQL(table, schema, records)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, batchError(err)
	}
	defer rows.Close()

	ids := make([]int64, 0, len(records))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan inserted id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, batchError(err)
	}
	if len(ids) != len(records) {
		return nil, fmt.Errorf("inserted %d rows, expected %d", len(ids), len(records))
	}
	return ids, nil
}

func batchError(err error) error {
	if isUniqueConstraint(err, "") {
		return fmt.Errorf("duplicate canonical record: %w", err)
	}
	return err
}

// buildInsertSQL renders one INSERT for all records. The column list is the
// union of record keys in schema order; a record missing a column gets
// DEFAULT so every row lines up.
//
// Constraints:
//   - records must be non-empty and only use column names from schema.
//   - the table must have an "id" column.
func buildInsertSQL(table string, schema reconcile.Schema, records []reconcile.Record) (string, []any, error) {
	columns := make([]reconcile.Column, 0, schema.Len())
	for _, col := range schema.Columns() {
		for _, rec := range records {
			if _, ok := rec[col.Name]; ok {
				columns = append(columns, col)
				break
			}
		}
	}
	if len(records) == 0 || len(columns) == 0 {
		return "", nil, errEmptyBatch
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{col.Name}.Sanitize())
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(columns))
	p := 1
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			value, ok := rec[col.Name]
			if !ok {
				b.WriteString("DEFAULT")
				continue
			}
			arg, err := columnValue(col, value)
			if err != nil {
				return "", nil, fmt.Errorf("row %d column %s: %w", i, col.Name, err)
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, arg)
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(" RETURNING id")
	return b.String(), args, nil
}

func columnValue(col reconcile.Column, value any) (any, error) {
	if !col.IsJSON() || value == nil {
		return value, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

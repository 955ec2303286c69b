// Package store persists import records in Postgres and writes the canonical
// delivery_tickets and service_jobs rows produced on accept.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ticketops/reconcile-api/internal/reconcile"
)

const DefaultSchema = "public"

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db     *sql.DB
	schema string
	logger *slog.Logger
}

var _ reconcile.Store = (*Store)(nil)

func New(db *sql.DB, schema string, logger *slog.Logger) *Store {
	if schema == "" {
		schema = DefaultSchema
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, schema: schema, logger: logger}
}

func (s *Store) qualify(table string) string {
	return pgx.Identifier{s.schema, table}.Sanitize()
}

func isUniqueConstraint(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if constraint == "" || pgErr.ConstraintName == constraint {
			return true
		}
	}
	return false
}

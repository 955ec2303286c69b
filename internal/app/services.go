package app

import (
	"database/sql"
	"log/slog"

	"github.com/ticketops/reconcile-api/internal/audit"
	"github.com/ticketops/reconcile-api/internal/config"
	"github.com/ticketops/reconcile-api/internal/reconcile"
	"github.com/ticketops/reconcile-api/internal/store"
)

// Services is the database-backed object graph shared by the HTTP server
// and the operator CLI.
type Services struct {
	Store        *store.Store
	Introspector *store.Introspector
	Imports      *reconcile.Controller
	Audit        *audit.Logger
}

func NewServices(cfg config.Config, db *sql.DB, logger *slog.Logger) Services {
	st := store.New(db, cfg.SchemaName, logger)
	introspector := store.NewIntrospector(db, cfg.SchemaName, logger)
	tables := reconcile.Tables{Delivery: cfg.DeliveryTable, Service: cfg.ServiceTable}
	return Services{
		Store:        st,
		Introspector: introspector,
		Imports:      reconcile.NewController(st, introspector, tables, logger),
		Audit:        audit.NewLogger(db),
	}
}

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ticketops/reconcile-api/internal/attachments"
	"github.com/ticketops/reconcile-api/internal/audit"
	"github.com/ticketops/reconcile-api/internal/httpx"
	"github.com/ticketops/reconcile-api/internal/middleware"
	"github.com/ticketops/reconcile-api/internal/reconcile"
)

type ImportService interface {
	Accept(ctx context.Context, req reconcile.AcceptRequest) (reconcile.AcceptResult, error)
	SaveDraft(ctx context.Context, id int64, in reconcile.DraftInput) (reconcile.ImportRecord, error)
	Reject(ctx context.Context, id int64, reason string) (reconcile.ImportRecord, error)
	Detect(ctx context.Context, id int64) (reconcile.Detection, error)
	Get(ctx context.Context, id int64) (reconcile.ImportRecord, error)
	List(ctx context.Context, filter reconcile.ListFilter) ([]reconcile.ImportRecord, error)
}

type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) error
}

type FileSigner interface {
	SignedURLs(ctx context.Context, files []reconcile.AttachedFile) ([]attachments.SignedFile, error)
}

type Server struct {
	Imports ImportService
	Audit   AuditLogger
	// Files is nil when object storage is not configured.
	Files  FileSigner
	Logger *slog.Logger
}

func NewServer(imports ImportService, auditLogger AuditLogger, files FileSigner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Imports: imports, Audit: auditLogger, Files: files, Logger: logger}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) audit(r *http.Request, importID int64, action string, metadata map[string]any) {
	if s.Audit == nil {
		return
	}
	entry := audit.Entry{
		ImportID:  importID,
		Action:    action,
		RequestID: middleware.RequestIDFromContext(r.Context()),
		Metadata:  metadata,
	}
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		entry.Actor = actor.KeyFingerprint
	}
	_ = s.Audit.Log(r.Context(), entry)
}

func importIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "importId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeImportError maps lifecycle and pipeline errors onto the API's error
// codes. Store and schema failures surface their raw text for operators.
func (s *Server) writeImportError(w http.ResponseWriter, r *http.Request, err error) {
	var schemaErr *reconcile.SchemaNotFoundError
	var writeErr *reconcile.WriteError

	switch {
	case errors.Is(err, reconcile.ErrNoRowsSelected):
		httpx.WriteError(w, r, http.StatusBadRequest, "no_rows_selected", "No rows selected", nil)
	case errors.Is(err, reconcile.ErrInvalidSelection):
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_selection", err.Error(), nil)
	case errors.Is(err, reconcile.ErrImportNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "import_not_found", "Import not found", nil)
	case errors.Is(err, reconcile.ErrAlreadyAccepted):
		httpx.WriteError(w, r, http.StatusBadRequest, "already_accepted", "Already accepted", nil)
	case errors.Is(err, reconcile.ErrAlreadyRejected):
		httpx.WriteError(w, r, http.StatusBadRequest, "already_rejected", "Import was rejected", nil)
	case errors.Is(err, reconcile.ErrNotProcessed):
		httpx.WriteError(w, r, http.StatusBadRequest, "not_processed", "Import has not been processed yet", nil)
	case errors.Is(err, reconcile.ErrEmptyDraft):
		httpx.WriteError(w, r, http.StatusBadRequest, "empty_draft", "Draft must contain at least one row", nil)
	case errors.Is(err, reconcile.ErrInvalidImportType):
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_import_type", "importType must be delivery or service", nil)
	case errors.Is(err, reconcile.ErrImmutable):
		httpx.WriteError(w, r, http.StatusConflict, "import_locked", "Accepted imports can no longer be edited", nil)
	case errors.Is(err, reconcile.ErrInvalidTransition):
		httpx.WriteError(w, r, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.As(err, &schemaErr):
		httpx.WriteError(w, r, http.StatusInternalServerError, "schema_not_found", schemaErr.Error(), map[string]any{
			"table":           schemaErr.Table,
			"expectedColumns": schemaErr.Expected,
		})
	case errors.As(err, &writeErr):
		httpx.WriteError(w, r, http.StatusInternalServerError, "write_failed", writeErr.Error(), nil)
	default:
		s.Logger.Error("import_request_failed", "path", r.URL.Path, "error", err, "request_id", middleware.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to process import", nil)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ticketops/reconcile-api/internal/audit"
	"github.com/ticketops/reconcile-api/internal/httpx"
	"github.com/ticketops/reconcile-api/internal/reconcile"
)

type acceptRequest struct {
	ImportID     *int64 `json:"importId"`
	SelectedRows []int  `json:"selectedRows"`
}

type acceptResponse struct {
	Success    bool                  `json:"success"`
	ImportID   int64                 `json:"importId"`
	Created    map[string][]int64    `json:"created"`
	Inserted   int                   `json:"inserted"`
	Failed     int                   `json:"failed"`
	FailedRows []reconcile.FailedRow `json:"failedRows"`
	Message    string                `json:"message"`
	Detection  reconcile.Detection   `json:"detection"`
}

func (s *Server) PostImportsAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}
	if req.ImportID == nil || *req.ImportID <= 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "missing_import_id", "importId is required", nil)
		return
	}

	result, err := s.Imports.Accept(r.Context(), reconcile.AcceptRequest{
		ImportID:     *req.ImportID,
		SelectedRows: req.SelectedRows,
	})
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}

	createdKey := "deliveryTickets"
	if result.Kind == reconcile.KindService {
		createdKey = "serviceJobs"
	}
	s.audit(r, result.ImportID, audit.ActionAccepted, map[string]any{
		"kind":     result.Kind,
		"inserted": result.Inserted(),
		"failed":   result.Failed(),
	})

	httpx.WriteJSON(w, http.StatusOK, acceptResponse{
		Success:    true,
		ImportID:   result.ImportID,
		Created:    map[string][]int64{createdKey: result.IDs},
		Inserted:   result.Inserted(),
		Failed:     result.Failed(),
		FailedRows: result.FailedRows,
		Message:    result.Message,
		Detection:  result.Detection,
	})
}

type importSummary struct {
	ID         int64                `json:"id"`
	Status     reconcile.Status     `json:"status"`
	Src        string               `json:"src"`
	SrcEmail   string               `json:"srcEmail,omitempty"`
	Confidence float64              `json:"confidence"`
	ImportType reconcile.TargetKind `json:"importType,omitempty"`
	Summary    reconcile.Summary    `json:"summary"`
	Accepted   int                  `json:"acceptedCount"`
	Failed     int                  `json:"failedCount"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

func toImportSummary(rec reconcile.ImportRecord) importSummary {
	return importSummary{
		ID:         rec.ID,
		Status:     rec.Status,
		Src:        rec.Src,
		SrcEmail:   rec.SrcEmail,
		Confidence: rec.Confidence,
		ImportType: rec.Meta.ImportType,
		Summary:    rec.Parsed.Summary,
		Accepted:   len(rec.Parsed.AcceptedIDs),
		Failed:     len(rec.Parsed.FailedRows),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func (s *Server) GetImports(w http.ResponseWriter, r *http.Request) {
	filter := reconcile.ListFilter{Status: reconcile.Status(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_status", "Unknown import status", nil)
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
			return
		}
		filter.Limit = limit
	}

	recs, err := s.Imports.List(r.Context(), filter)
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}
	items := make([]importSummary, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toImportSummary(rec))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"imports": items})
}

func (s *Server) GetImport(w http.ResponseWriter, r *http.Request) {
	id, ok := importIDParam(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_import_id", "Import id must be a positive integer", nil)
		return
	}
	rec, err := s.Imports.Get(r.Context(), id)
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

type draftRequest struct {
	Rows       []reconcile.Row   `json:"rows"`
	Headers    []string          `json:"headers"`
	ColumnMap  map[string]string `json:"columnMap"`
	ImportType string            `json:"importType"`
}

func (s *Server) PutImportDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := importIDParam(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_import_id", "Import id must be a positive integer", nil)
		return
	}
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}

	rec, err := s.Imports.SaveDraft(r.Context(), id, reconcile.DraftInput{
		Rows:       req.Rows,
		Headers:    req.Headers,
		ColumnMap:  req.ColumnMap,
		ImportType: req.ImportType,
	})
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}
	s.audit(r, id, audit.ActionDraftSaved, map[string]any{"rows": len(req.Rows)})
	httpx.WriteJSON(w, http.StatusOK, rec)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) PostImportReject(w http.ResponseWriter, r *http.Request) {
	id, ok := importIDParam(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_import_id", "Import id must be a positive integer", nil)
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}

	rec, err := s.Imports.Reject(r.Context(), id, req.Reason)
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}
	s.audit(r, id, audit.ActionRejected, map[string]any{"reason": req.Reason})
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) GetImportDetection(w http.ResponseWriter, r *http.Request) {
	id, ok := importIDParam(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_import_id", "Import id must be a positive integer", nil)
		return
	}
	detection, err := s.Imports.Detect(r.Context(), id)
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, detection)
}

func (s *Server) GetImportFiles(w http.ResponseWriter, r *http.Request) {
	if s.Files == nil {
		httpx.WriteError(w, r, http.StatusServiceUnavailable, "storage_unavailable", "Attachment storage is not configured", nil)
		return
	}
	id, ok := importIDParam(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_import_id", "Import id must be a positive integer", nil)
		return
	}
	rec, err := s.Imports.Get(r.Context(), id)
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}
	files, err := s.Files.SignedURLs(r.Context(), rec.AttachedFiles)
	if err != nil {
		s.Logger.Error("sign_attachments_failed", "import_id", id, "error", err)
		httpx.WriteError(w, r, http.StatusBadGateway, "storage_error", "Failed to sign attachment links", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"files": files})
}

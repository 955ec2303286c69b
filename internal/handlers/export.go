package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ticketops/reconcile-api/internal/httpx"
)

// GetImportFailedRowsCsv streams the rows an accept left behind so they can
// be fixed offline and re-imported.
func (s *Server) GetImportFailedRowsCsv(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"import-%d-failed-rows.csv\"", id))
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"row_index", "reason", "row"})
	for _, failed := range rec.Parsed.FailedRows {
		raw, err := json.Marshal(failed.Row)
		if err != nil {
			raw = []byte("{}")
		}
		_ = writer.Write([]string{strconv.Itoa(failed.Index), failed.Reason, string(raw)})
	}
	writer.Flush()
	if writer.Error() != nil {
		s.Logger.Error("failed_rows_csv_stream_failed", "import_id", id, "error", writer.Error())
	}
}

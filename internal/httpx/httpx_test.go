package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ticketops/reconcile-api/internal/middleware"
)

func TestWriteErrorEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/imports/accept", nil)
	req = req.WithContext(middleware.WithRequestID(req.Context(), "req-9"))
	rr := httptest.NewRecorder()

	WriteError(rr, req, http.StatusBadRequest, "already_accepted", "Already accepted", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":"already_accepted","message":"Already accepted","requestId":"req-9"}`, rr.Body.String())
}

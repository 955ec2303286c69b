package httpx

import (
	"net/http"

	"github.com/ticketops/reconcile-api/internal/middleware"
)

type ErrorEnvelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorEnvelope{
		Success:   false,
		Error:     code,
		Message:   message,
		Details:   details,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

package middleware

import (
	"encoding/json"
	"net/http"
)

type errorEnvelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Success:   false,
		Error:     code,
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketops/reconcile-api/internal/auth"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORSWildcardWithMethodOverride(t *testing.T) {
	h := CORS([]string{"*"}, []CORSMethodOverride{
		{PathPrefix: "/api/imports/accept", Methods: "POST, OPTIONS"},
	})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/imports/accept", nil)
	req.Header.Set("Origin", "https://review.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodGet, "/api/imports", nil)
	req.Header.Set("Origin", "https://review.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultCORSMethods, rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSListedOrigins(t *testing.T) {
	h := CORS([]string{"https://ops.example.com"}, nil)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://ops.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://ops.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireAPIKey(t *testing.T) {
	encoded, err := auth.HashKey("reviewer-key")
	require.NoError(t, err)

	var seen Actor
	h := RequestID(RequireAPIKey(auth.NewKeyVerifier([]string{encoded}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error":"unauthorized"`)
	assert.Contains(t, rr.Body.String(), `"requestId"`)

	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.Header.Set("Authorization", "Bearer reviewer-key")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, auth.Fingerprint("reviewer-key"), seen.KeyFingerprint)
}

func TestRequireAPIKeyDisabled(t *testing.T) {
	h := RequireAPIKey(auth.NewKeyVerifier(nil))(okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestIDAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/imports/accept", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", rr.Header().Get("X-Request-Id"))
	line := buf.String()
	assert.Contains(t, line, `"level":"ERROR"`)
	assert.Contains(t, line, `"request_id":"req-42"`)
	assert.Contains(t, line, `"bytes":4`)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("x", maxRequestIDLength+1))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Len(t, rr.Header().Get("X-Request-Id"), 36)
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders("prod")(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
}

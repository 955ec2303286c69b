package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ticketops/reconcile-api/internal/auth"
	"github.com/ticketops/reconcile-api/internal/config"
	"github.com/ticketops/reconcile-api/internal/handlers"
	"github.com/ticketops/reconcile-api/internal/reconcile"
)

type fakeImports struct {
	accepted []reconcile.AcceptRequest
}

func (f *fakeImports) Accept(_ context.Context, req reconcile.AcceptRequest) (reconcile.AcceptResult, error) {
	f.accepted = append(f.accepted, req)
	return reconcile.AcceptResult{ImportID: req.ImportID, Kind: reconcile.KindDelivery, IDs: []int64{1}}, nil
}

func (f *fakeImports) SaveDraft(context.Context, int64, reconcile.DraftInput) (reconcile.ImportRecord, error) {
	return reconcile.ImportRecord{}, reconcile.ErrImportNotFound
}

func (f *fakeImports) Reject(context.Context, int64, string) (reconcile.ImportRecord, error) {
	return reconcile.ImportRecord{}, reconcile.ErrImportNotFound
}

func (f *fakeImports) Detect(context.Context, int64) (reconcile.Detection, error) {
	return reconcile.Detection{}, reconcile.ErrImportNotFound
}

func (f *fakeImports) Get(context.Context, int64) (reconcile.ImportRecord, error) {
	return reconcile.ImportRecord{}, reconcile.ErrImportNotFound
}

func (f *fakeImports) List(context.Context, reconcile.ListFilter) ([]reconcile.ImportRecord, error) {
	return nil, nil
}

func testConfig() config.Config {
	return config.Config{
		Addr:               ":0",
		Env:                "test",
		CORSAllowedOrigins: []string{"*"},
		APIMaxBodyBytes:    1 << 20,
		AcceptMaxBodyBytes: 64 << 10,
		RateLimitPerMinute: 1000,
		RateLimitMaxIPs:    100,
	}
}

func newTestHandler(t *testing.T, cfg config.Config) (http.Handler, *fakeImports) {
	t.Helper()
	imports := &fakeImports{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router, err := NewRouter(cfg, handlers.NewServer(imports, nil, nil, logger), logger)
	if err != nil {
		t.Fatalf("create router: %v", err)
	}
	return router, imports
}

func send(t *testing.T, router http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:12345"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestLoadSpec(t *testing.T) {
	doc, err := LoadSpec()
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if doc.Paths.Find("/api/imports/accept") == nil {
		t.Fatalf("expected accept path in document")
	}
}

func TestHealthIsPublic(t *testing.T) {
	cfg := testConfig()
	hash, err := auth.HashKey("ops-key")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	cfg.APIKeyHashes = []string{hash}
	router, _ := newTestHandler(t, cfg)

	rec := send(t, router, http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}
}

func TestAcceptRequiresAPIKeyWhenConfigured(t *testing.T) {
	cfg := testConfig()
	hash, err := auth.HashKey("ops-key")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	cfg.APIKeyHashes = []string{hash}
	router, imports := newTestHandler(t, cfg)
	body := []byte(`{"importId": 7}`)

	rec := send(t, router, http.MethodPost, "/api/imports/accept", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	rec = send(t, router, http.MethodPost, "/api/imports/accept", body, map[string]string{"X-API-Key": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", rec.Code)
	}

	rec = send(t, router, http.MethodPost, "/api/imports/accept", body, map[string]string{"Authorization": "Bearer ops-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(imports.accepted) != 1 || imports.accepted[0].ImportID != 7 {
		t.Fatalf("expected accept for import 7, got %+v", imports.accepted)
	}
}

func TestAcceptBodyIsValidated(t *testing.T) {
	router, imports := newTestHandler(t, testConfig())

	rec := send(t, router, http.MethodPost, "/api/imports/accept", []byte(`{"importId": "seven"}`), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeEnvelope(t, rec)["error"]; code != "validation_error" {
		t.Fatalf("expected validation_error, got %v", code)
	}
	if len(imports.accepted) != 0 {
		t.Fatalf("handler should not run for invalid body")
	}
}

func TestAcceptMissingImportID(t *testing.T) {
	router, _ := newTestHandler(t, testConfig())

	rec := send(t, router, http.MethodPost, "/api/imports/accept", []byte(`{"selectedRows": [0]}`), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeEnvelope(t, rec)["error"]; code != "missing_import_id" {
		t.Fatalf("expected missing_import_id, got %v", code)
	}
}

func TestAcceptPreflightAdvertisesPostOnly(t *testing.T) {
	router, _ := newTestHandler(t, testConfig())

	rec := send(t, router, http.MethodOptions, "/api/imports/accept", nil, map[string]string{
		"Origin":                        "https://office.example.com",
		"Access-Control-Request-Method": "POST",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Fatalf("unexpected allow methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestImportNotFoundMapsTo404(t *testing.T) {
	router, _ := newTestHandler(t, testConfig())

	rec := send(t, router, http.MethodGet, "/api/imports/41", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := decodeEnvelope(t, rec)["error"]; code != "import_not_found" {
		t.Fatalf("expected import_not_found, got %v", code)
	}
}

package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/ticketops/reconcile-api/api"
	"github.com/ticketops/reconcile-api/internal/auth"
	"github.com/ticketops/reconcile-api/internal/config"
	"github.com/ticketops/reconcile-api/internal/handlers"
	"github.com/ticketops/reconcile-api/internal/httpx"
	"github.com/ticketops/reconcile-api/internal/middleware"
)

func LoadSpec() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.Spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}
	return doc, nil
}

func NewRouter(cfg config.Config, h *handlers.Server, logger *slog.Logger) (http.Handler, error) {
	doc, err := LoadSpec()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins, []middleware.CORSMethodOverride{
		{PathPrefix: "/api/imports/accept", Methods: "POST, OPTIONS"},
	}))
	r.Use(middleware.LimitBodyBytesWithOverrides(cfg.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		{Method: http.MethodPost, PathPrefix: "/imports/accept", MaxBytes: cfg.AcceptMaxBodyBytes},
	}))

	apiRouter := chi.NewRouter()
	apiRouter.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Success:   false,
				Error:     "validation_error",
				Message:   message,
				RequestID: w.Header().Get("X-Request-Id"),
			})
		},
	}))

	limiter := middleware.NewIPRateLimiterWithMaxEntries(cfg.RateLimitPerMinute, time.Minute, cfg.RateLimitMaxIPs)
	verifier := auth.NewKeyVerifier(cfg.APIKeyHashes)

	apiRouter.Get("/health", h.GetHealth)

	apiRouter.Group(func(protected chi.Router) {
		protected.Use(limiter.Middleware("Too many requests"))
		protected.Use(middleware.RequireAPIKey(verifier))

		protected.Post("/imports/accept", h.PostImportsAccept)
		protected.Get("/imports", h.GetImports)
		protected.Get("/imports/{importId}", h.GetImport)
		protected.Put("/imports/{importId}/draft", h.PutImportDraft)
		protected.Post("/imports/{importId}/reject", h.PostImportReject)
		protected.Get("/imports/{importId}/detection", h.GetImportDetection)
		protected.Get("/imports/{importId}/files", h.GetImportFiles)
		protected.Get("/imports/{importId}/failed-rows.csv", h.GetImportFailedRowsCsv)
	})

	r.Mount("/api", apiRouter)
	return r, nil
}

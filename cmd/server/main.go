package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ticketops/reconcile-api/internal/app"
	"github.com/ticketops/reconcile-api/internal/attachments"
	"github.com/ticketops/reconcile-api/internal/config"
	"github.com/ticketops/reconcile-api/internal/db"
	"github.com/ticketops/reconcile-api/internal/handlers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	sqlDB := db.OpenSQL(pool)
	defer sqlDB.Close()

	services := app.NewServices(cfg, sqlDB, logger)

	var files handlers.FileSigner
	if cfg.S3.Enabled() {
		presigner, err := attachments.New(ctx, cfg.S3)
		if err != nil {
			logger.Error("configure attachment storage", "error", err)
			os.Exit(1)
		}
		files = presigner
	} else {
		logger.Warn("attachment_storage_disabled", "reason", "S3_BUCKET is not set")
	}

	server := handlers.NewServer(services.Imports, services.Audit, files, logger)
	router, err := app.NewRouter(cfg, server, logger)
	if err != nil {
		logger.Error("build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		logger.Info("api_started", "addr", cfg.Addr, "env", cfg.Env, "auth", len(cfg.APIKeyHashes) > 0)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

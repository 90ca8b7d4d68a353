// cmd/main.go is the application entry point.
// It wires together all layers, loads saved events and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/event-manager/internal/config"
	"github.com/Shivanand-hulikatti/event-manager/internal/handler"
	"github.com/Shivanand-hulikatti/event-manager/internal/logging"
	"github.com/Shivanand-hulikatti/event-manager/internal/repository"
	"github.com/Shivanand-hulikatti/event-manager/internal/service"
	"go.uber.org/zap"
)

func main() {
	// ── 1. Configuration and logging ────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(cfg)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// ── 2. Wire up layers and load saved state ─────────────────────────
	repo := repository.NewSnapshotRepository(log)
	mgr := service.NewEventManager(
		service.WithLogger(log),
		service.WithRepository(repo),
	)
	if err := mgr.Load(cfg.Data.File); err != nil {
		log.Fatal("load events", zap.String("path", cfg.Data.File), zap.Error(err))
	}
	eventHandler := handler.NewEventHandler(mgr, handler.Persistence{
		File:     cfg.Data.File,
		Autosave: cfg.Data.Autosave,
	}, log)

	// ── 3. Start server with graceful shutdown ──────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.NewRouter(eventHandler, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("data_file", cfg.Data.File))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	if err := eventHandler.SaveNow(); err != nil {
		log.Error("save on shutdown failed", zap.Error(err))
		return
	}
	log.Info("server stopped")
}

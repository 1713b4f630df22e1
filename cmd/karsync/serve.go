package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"karsync/internal/api"

	"github.com/gorilla/mux"
)

func runServe(a *app) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := mux.NewRouter()
	handlers := api.NewHandlers(a.transfers, a.auth, a.cfg)
	handlers.RegisterRoutes(router)

	serverConfig := a.cfg.GetServer()
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// previews and auth starts hold the request open
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Watch for configuration changes
	go func() {
		configChanges := a.cfg.WatchForChanges()
		for {
			select {
			case <-ctx.Done():
				return
			case <-configChanges:
				slog.Info("configuration changed, updating logging")
				setupLogging(a.cfg.GetLogging(), true)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		slog.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// A download still running is cut off with the daemon
	if err := a.transfers.StopDaemon(shutdownCtx); err != nil {
		slog.Warn("failed to stop rclone daemon", "error", err)
	}

	slog.Info("shutdown completed")
	return nil
}

// Package main is the entry point for the techclock service.
// It records technician work sessions, turns them into time entries,
// computes monthly metrics, and runs the cutoff and escalation sweeps
// on an in-process cron.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/techclock/internal/config"
	"github.com/aristath/techclock/internal/di"
	"github.com/aristath/techclock/internal/server"
	"github.com/aristath/techclock/pkg/logger"
)

// main is the application entry point. It orchestrates the startup sequence:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires all dependencies via DI container (databases, repositories, services, jobs)
// 4. Starts the HTTP server and the scheduler
// 5. Waits for shutdown signal and performs graceful shutdown
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("timezone", cfg.Location.String()).
		Str("cutoff", cfg.CutoffTime).
		Msg("Starting techclock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire all dependencies using DI container.
	// Settings stored in the database override the environment from here on.
	container, jobs, err := di.Wire(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Both databases must be closed so WAL checkpoints are written
	defer container.Close()

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		DevMode:   cfg.DevMode,
		Container: container,
	})
	srv.SetJobs(jobs.ByName())

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.Scheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Let a running sweep finish before the databases close
	container.Scheduler.Stop()

	// The HTTP server is given up to 10 seconds to finish in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

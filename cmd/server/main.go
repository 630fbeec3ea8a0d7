package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicholasgriffintn/threatjam.com/internal/api"
	"github.com/nicholasgriffintn/threatjam.com/internal/config"
	"github.com/nicholasgriffintn/threatjam.com/internal/room"
	"github.com/nicholasgriffintn/threatjam.com/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Pick the room store backend: Postgres, then Redis, then SQLite.
	var (
		roomStore store.RoomStore
		backend   string
		err       error
	)
	switch {
	case cfg.DatabaseURL != "":
		roomStore, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		backend = "postgres"
	case cfg.RedisURL != "":
		roomStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		backend = "redis"
	default:
		roomStore, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
		backend = "sqlite"
	}
	if err != nil {
		logger.Fatal().Err(err).Str("backend", backend).Msg("store connection failed")
	}
	defer roomStore.Close()
	logger.Info().Str("backend", backend).Msg("connected to room store")

	// Room hub: one coordinator per active room
	hub := room.NewHub(roomStore, logger, cfg.StoreTimeout)

	// Create router
	router := api.NewRouter(logger, hub, roomStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting ThreatJam server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/assessly/proctor/internal/config"
	"github.com/assessly/proctor/internal/logger"
	"github.com/assessly/proctor/internal/stubserver"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Dur("attempt_duration", cfg.AttemptDuration).
		Int("violation_limit", cfg.ViolationLimit).
		Msg("Starting assessment stub backend")

	// ─── Setup Server ──────────────────────────────────────────────────
	server := stubserver.NewServer(cfg, log)
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: server.Router(),
	}

	// ─── Start Background Sweeper ──────────────────────────────────────
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := stubserver.NewSweeper(server.Store(), cfg.TickInterval, log)
	go sweeper.Start(sweepCtx)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

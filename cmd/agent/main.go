package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parikshasetu/portal-agent/internal/api"
	"github.com/parikshasetu/portal-agent/internal/auth"
	"github.com/parikshasetu/portal-agent/internal/backoff"
	"github.com/parikshasetu/portal-agent/internal/clock"
	"github.com/parikshasetu/portal-agent/internal/config"
	"github.com/parikshasetu/portal-agent/internal/logger"
	"github.com/parikshasetu/portal-agent/internal/notification"
	"github.com/parikshasetu/portal-agent/internal/statusapi"
	"github.com/parikshasetu/portal-agent/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("api", cfg.APIBaseURL).
		Str("status_port", cfg.StatusPort).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ParikshaSetu Portal Agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Resolve User Identity ─────────────────────────────────────────
	if cfg.AuthToken == "" {
		log.Fatal().Msg("AUTH_TOKEN is required")
	}
	userID, err := auth.UserIDFromToken(cfg.AuthToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot resolve user id from token")
	}

	// ─── Initialize API Client ─────────────────────────────────────────
	client, err := api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.AuthToken,
		Timeout: cfg.HTTPTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid API configuration")
	}

	// ─── Initialize Notification Store & Channel ───────────────────────
	clk := clock.System()
	store := notification.NewStore(clk, log)
	channel := notification.NewChannel(notification.ChannelConfig{
		WSBaseURL: cfg.WSBaseURL,
		Token:     cfg.AuthToken,
		UserID:    userID,
		Policy: backoff.Policy{
			Base:   cfg.BackoffBase,
			Cap:    cfg.BackoffCap,
			Jitter: true,
		},
		SnapshotInterval: cfg.SnapshotInterval,
	}, store, client, log)

	channelCtx, channelCancel := context.WithCancel(context.Background())
	go channel.Run(channelCtx)

	// ─── Setup Status API ──────────────────────────────────────────────
	server := statusapi.NewServer(cfg, clk, store, channel, client, client, log)

	srv := &http.Server{
		Addr:    "127.0.0.1:" + cfg.StatusPort,
		Handler: server.Router(),
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Status API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Status API error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new status API requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Status API shutdown error")
	}

	// 2. Tear down the session, the channel, and freeze the store.
	// Order matters: no store mutation may happen after teardown.
	server.CloseSession()
	channelCancel()
	store.Close()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

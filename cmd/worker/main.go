// Package main provides the entrypoint for the station warm-up worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/app"
	"github.com/velibadvisor/velibadvisor/internal/config"
	"github.com/velibadvisor/velibadvisor/internal/telemetry"
	"github.com/velibadvisor/velibadvisor/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "velibadvisor-worker"

	if err := config.LoadDotEnv(); err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := cfg.Log.NewLogger(serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Vélib advisor worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = serviceName
	telemetryCfg.ServiceVersion = Version
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	services := app.New(cfg, log)

	warmup := worker.NewWarmupJob(worker.WarmupJobConfig{
		Config:   cfg.Worker.Warmup,
		Stations: services.Stations,
		Logger:   log,
	})
	runner := worker.NewRunner(worker.RunnerConfig{
		Warmup:   warmup,
		Registry: services.Registry,
		Logger:   log,
	})

	// Health endpoint for the container platform.
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      healthRouter(warmup),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.Worker.Subscription != "" {
		runPubSub(ctx, cfg.Worker, runner, log)
	} else {
		runScheduled(ctx, cfg.Worker.Warmup.Interval, runner, log)
	}

	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func runPubSub(ctx context.Context, cfg worker.Config, runner *worker.Runner, log zerolog.Logger) {
	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.ProjectID,
		SubscriptionName: cfg.Subscription,
		MaxOutstanding:   cfg.MaxOutstanding,
		Runner:           runner,
		Logger:           log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub handler")
		return
	}
	defer func() {
		if err := handler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pubsub receive stopped")
	}
}

func runScheduled(ctx context.Context, interval time.Duration, runner *worker.Runner, log zerolog.Logger) {
	log.Info().Dur("interval", interval).Msg("no subscription configured, running scheduled warm-ups")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runner.StationWarmup(ctx, nil); err != nil {
			log.Warn().Err(err).Msg("scheduled warm-up failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func healthRouter(warmup *worker.WarmupJob) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"warmup":  warmup.MetricsSnapshot(),
		})
	})
	return r
}

// Package main provides the entrypoint for the Vélib advisor API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/api"
	"github.com/velibadvisor/velibadvisor/internal/api/middleware"
	"github.com/velibadvisor/velibadvisor/internal/app"
	"github.com/velibadvisor/velibadvisor/internal/auth"
	"github.com/velibadvisor/velibadvisor/internal/config"
	"github.com/velibadvisor/velibadvisor/internal/database"
	"github.com/velibadvisor/velibadvisor/internal/journey"
	"github.com/velibadvisor/velibadvisor/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "velibadvisor-api"

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
		Msg("starting Vélib advisor API")

	ctx := context.Background()

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

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	services := app.New(cfg, log)

	routerCfg := api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		ServiceName:     serviceName,
		Logger:          log,
		Metrics:         metrics,
		RequireTLS:      cfg.Server.RequireTLS,
		RateLimits:      cfg.RateLimits,
		Analyzer:        services.Engine,
		Stations:        services.Stations,
		Addresses:       services.Geocoder,
		StationRadius:   cfg.Stations.DefaultRadius,
		ProviderTimeout: cfg.Decision.CallTimeout,
		Cache:           services.Cache,
		Registry:        services.Registry,
	}

	var history journey.Repository = journey.NewInMemoryRepository()
	if cfg.Database.Enabled() {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		repo := journey.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create journey history schema")
		}
		history = repo
		routerCfg.Database = pool

		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	} else {
		log.Warn().Msg("no database configured, journey history is kept in memory")
	}

	routerCfg.Planner = journey.NewPlanner(journey.PlannerConfig{
		Geocoder:       services.Geocoder,
		Analyzer:       services.Engine,
		History:        history,
		GeocodeTimeout: cfg.Decision.CallTimeout,
		Logger:         log,
	})

	if cfg.Auth.SigningKey != "" {
		routerCfg.TokenValidator = auth.NewJWTService(cfg.Auth)
	} else {
		log.Warn().Msg("no signing key configured, admin endpoints disabled")
	}

	router := api.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

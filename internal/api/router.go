// Package api provides the HTTP API of the Vélib advisor.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/api/handler"
	"github.com/velibadvisor/velibadvisor/internal/api/middleware"
	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
)

// Cache is the provider cache exposed to ops and admin endpoints.
type Cache interface {
	handler.CacheStatter
	handler.CachePurger
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	// RequireTLS rejects plain HTTP requests forwarded by the load balancer.
	RequireTLS bool
	// RateLimits per endpoint category; unset categories use the presets.
	RateLimits middleware.RateLimits

	Analyzer  handler.JourneyAnalyzer
	Planner   handler.JourneyPlanner
	Stations  handler.StationFinder
	Addresses handler.AddressSearcher

	// StationRadius is the default radius of station lookups.
	StationRadius float64
	// ProviderTimeout bounds direct provider calls made by handlers.
	ProviderTimeout time.Duration

	Cache    Cache
	Registry *resilience.Registry
	Database handler.Pinger

	// TokenValidator guards /v1/admin. Admin routes are not mounted when nil.
	TokenValidator middleware.TokenValidator
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "velibadvisor-api"
	}
	limits := cfg.RateLimits.WithDefaults()

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.RequireJSON)                // Reject non-JSON bodies
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Database:  cfg.Database,
		Cache:     cfg.Cache,
		Logger:    cfg.Logger,
	})
	journeyHandler := handler.NewJourneyHandler(cfg.Analyzer, cfg.Planner, cfg.Logger)
	stationsHandler := handler.NewStationsHandler(handler.StationsConfig{
		Finder:        cfg.Stations,
		DefaultRadius: cfg.StationRadius,
		Timeout:       cfg.ProviderTimeout,
		Logger:        cfg.Logger,
	})
	addressHandler := handler.NewAddressHandler(cfg.Addresses, cfg.Logger)

	analysisRateLimit := middleware.RateLimitByIP(limits.Analysis)
	searchRateLimit := middleware.RateLimitByIP(limits.Search)
	standardRateLimit := middleware.RateLimitByIP(limits.Standard)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		// Journey analysis fans out to every provider - strict rate limiting
		r.With(analysisRateLimit).Post("/journeys:analyze", journeyHandler.Analyze)
		r.With(analysisRateLimit).Post("/journeys:plan", journeyHandler.Plan)
		r.Route("/journeys/history", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", journeyHandler.ListHistory)
			r.Get("/{entryId}", journeyHandler.GetHistoryEntry)
		})

		r.With(standardRateLimit).Get("/stations/nearby", stationsHandler.Nearby)

		// Autocomplete is called per keystroke
		r.With(searchRateLimit).Get("/addresses:search", addressHandler.Search)
		r.With(standardRateLimit).Get("/addresses:reverse", addressHandler.Reverse)

		// Admin endpoints (operator token)
		if cfg.TokenValidator != nil && cfg.Cache != nil {
			adminHandler := handler.NewAdminHandler(cfg.Cache, cfg.Logger)
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.Auth(cfg.TokenValidator))
				r.Use(middleware.RateLimitByOperator(limits.Admin))
				r.Post("/cache:purge", adminHandler.PurgeCache)
			})
		}
	})

	return r
}

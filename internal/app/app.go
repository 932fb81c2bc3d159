// Package app assembles the provider clients, caches and services shared by
// the API server, the worker and the operator CLI.
package app

import (
	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/alternative"
	"github.com/velibadvisor/velibadvisor/internal/cache"
	"github.com/velibadvisor/velibadvisor/internal/config"
	"github.com/velibadvisor/velibadvisor/internal/decision"
	"github.com/velibadvisor/velibadvisor/internal/geocoding"
	"github.com/velibadvisor/velibadvisor/internal/geocoding/nominatim"
	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/internal/routing"
	"github.com/velibadvisor/velibadvisor/internal/routing/openrouteservice"
	"github.com/velibadvisor/velibadvisor/internal/telemetry"
	"github.com/velibadvisor/velibadvisor/internal/velib"
	"github.com/velibadvisor/velibadvisor/internal/velib/opendata"
)

// Services holds the assembled domain services.
type Services struct {
	Registry     *resilience.Registry
	Cache        *cache.GStore
	Stations     *velib.Service
	Routes       *routing.Service
	Geocoder     *geocoding.Service
	Alternatives *alternative.Estimator
	Engine       *decision.Engine
}

// New builds the services described by cfg. Provider metrics are recorded on
// the global meter provider, so telemetry must be initialized first.
func New(cfg *config.Config, logger zerolog.Logger) *Services {
	registry := resilience.NewRegistry()
	store := cache.NewStore(cfg.Cache.Size)

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to create provider metrics")
	}

	stationClient := opendata.NewClient(opendata.ClientConfig{
		BaseURL:  cfg.Providers.OpenData.BaseURL,
		Rows:     cfg.Providers.OpenData.Rows,
		Timeout:  cfg.Providers.Timeout,
		Registry: registry,
		Logger:   logger,
	})
	stations := velib.NewService(velib.ServiceConfig{
		Provider:     stationClient,
		Cache:        store,
		CacheTTL:     cfg.Cache.StationTTL,
		MaxRadius:    cfg.Stations.MaxRadius,
		WalkingSpeed: cfg.Decision.WalkingSpeed,
		Metrics:      providerMetrics,
		Logger:       logger,
	})

	if cfg.Providers.ORS.APIKey == "" {
		logger.Warn().Msg("no OpenRouteService API key, bike routes will be estimated")
	}
	routeClient := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:           cfg.Providers.ORS.APIKey,
		BaseURL:          cfg.Providers.ORS.BaseURL,
		Language:         cfg.Providers.ORS.Language,
		DisableElevation: cfg.Providers.ORS.DisableElevation,
		Timeout:          cfg.Providers.Timeout,
		Registry:         registry,
		Logger:           logger,
	})
	routes := routing.NewService(routing.ServiceConfig{
		Provider: routeClient,
		Cache:    store,
		CacheTTL: cfg.Cache.RouteTTL,
		Metrics:  providerMetrics,
		Logger:   logger,
	})

	geocodeClient := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:   cfg.Providers.Nominatim.BaseURL,
		UserAgent: cfg.Providers.Nominatim.UserAgent,
		Language:  cfg.Providers.Nominatim.Language,
		Timeout:   cfg.Providers.Timeout,
		Registry:  registry,
		Logger:    logger,
	})
	geocoder := geocoding.NewService(geocoding.ServiceConfig{
		Provider: geocodeClient,
		Cache:    store,
		CacheTTL: cfg.Cache.GeocodeTTL,
		Metrics:  providerMetrics,
		Logger:   logger,
	})

	alternatives := alternative.NewEstimator(alternative.Config{
		WalkingSpeed: cfg.Decision.WalkingSpeed,
	})

	engine := decision.NewEngine(decision.EngineConfig{
		Stations:     stations,
		Routes:       routes,
		Alternatives: alternatives,
		Policy:       cfg.Decision,
		Logger:       logger,
	})

	return &Services{
		Registry:     registry,
		Cache:        store,
		Stations:     stations,
		Routes:       routes,
		Geocoder:     geocoder,
		Alternatives: alternatives,
		Engine:       engine,
	}
}

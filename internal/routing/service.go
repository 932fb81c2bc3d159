package routing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/cache"
	"github.com/velibadvisor/velibadvisor/internal/telemetry"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

const (
	// DefaultEstimateSpeed is the average cycling speed (m/s) of estimated routes.
	DefaultEstimateSpeed = 5.56
	// DefaultDetourFactor converts direct distance into estimated road distance.
	DefaultDetourFactor = 1.2
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the routing data provider.
	Provider Provider

	// Cache stores provider responses. Optional.
	Cache cache.Store

	// CacheTTL is how long to cache routes (default: 24 hours).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.0001, ~11m).
	// Points within the same grid cell share cached routes.
	CacheGridSize float64

	// EstimateSpeed is the speed in m/s used for estimated routes (default: 5.56).
	EstimateSpeed float64

	// DetourFactor scales direct distance for estimated routes (default: 1.2).
	DetourFactor float64

	// Metrics records provider calls. Optional.
	Metrics *telemetry.ProviderMetrics

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service provides routes with caching and an estimated fallback.
type Service struct {
	provider      Provider
	cache         cache.Store
	cacheTTL      time.Duration
	cacheGridSize float64
	estimateSpeed float64
	detourFactor  float64
	metrics       *telemetry.ProviderMetrics
	logger        zerolog.Logger
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.0001
	}

	estimateSpeed := cfg.EstimateSpeed
	if estimateSpeed <= 0 {
		estimateSpeed = DefaultEstimateSpeed
	}

	detourFactor := cfg.DetourFactor
	if detourFactor <= 0 {
		detourFactor = DefaultDetourFactor
	}

	return &Service{
		provider:      cfg.Provider,
		cache:         cfg.Cache,
		cacheTTL:      cacheTTL,
		cacheGridSize: cacheGridSize,
		estimateSpeed: estimateSpeed,
		detourFactor:  detourFactor,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// GetDirections returns route directions between two points.
// Uses cached data if available and not expired.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	if req.Profile == "" {
		req.Profile = ProfileBike
	}

	key := s.cacheKey(req)
	resp, hit, err := cache.Fetch(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) (*DirectionsResponse, error) {
		s.logger.Debug().
			Str("origin", req.Origin.String()).
			Str("destination", req.Destination.String()).
			Str("profile", string(req.Profile)).
			Str("provider", s.provider.Name()).
			Msg("fetching directions from provider")

		start := time.Now()
		resp, err := s.provider.GetDirections(ctx, req)
		s.metrics.RecordRequest(s.provider.Name(), "directions", time.Since(start), err)
		if err != nil {
			return nil, err
		}
		if len(resp.Routes) == 0 {
			return nil, &Error{
				Provider: s.provider.Name(),
				Code:     "NO_ROUTE",
				Message:  "provider returned no routes",
				Err:      ErrNoRouteFound,
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCache(s.provider.Name(), "directions", hit)
	if hit {
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for directions")
	}
	return resp, nil
}

// ComputeRoute returns the best route between origin and destination. It
// never fails: provider errors and empty answers yield an estimated route
// derived from the direct distance.
func (s *Service) ComputeRoute(ctx context.Context, origin, destination geo.Coordinate, profile RouteProfile) RouteResult {
	if profile == "" {
		profile = ProfileBike
	}

	resp, err := s.GetDirections(ctx, DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Profile:     profile,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("origin", origin.String()).
			Str("destination", destination.String()).
			Str("profile", string(profile)).
			Msg("routing failed, using estimated route")
		s.metrics.RecordFallback(s.provider.Name(), "directions")
		return s.estimate(origin, destination, profile)
	}

	route := resp.Routes[0]
	path := route.Path
	if path == nil {
		path = []geo.Coordinate{}
	}
	return RouteResult{
		Profile:         profile,
		DistanceMeters:  math.Max(route.DistanceMeters, 0),
		DurationSeconds: math.Max(route.DurationSeconds, 0),
		AscentMeters:    math.Max(route.AscentMeters, 0),
		DescentMeters:   math.Max(route.DescentMeters, 0),
		Path:            path,
	}
}

// Estimate builds a synthetic cycling route from the direct distance.
func (s *Service) Estimate(origin, destination geo.Coordinate) RouteResult {
	return s.estimate(origin, destination, ProfileBike)
}

func (s *Service) estimate(origin, destination geo.Coordinate, profile RouteProfile) RouteResult {
	return EstimateRoute(origin, destination, profile, s.estimateSpeed, s.detourFactor)
}

// EstimateRoute builds a synthetic route: duration is the direct distance at
// speed, distance is the direct distance scaled by detour.
func EstimateRoute(origin, destination geo.Coordinate, profile RouteProfile, speed, detour float64) RouteResult {
	direct := geo.Distance(origin, destination)
	if math.IsNaN(direct) {
		direct = 0
	}
	return RouteResult{
		Profile:         profile,
		DistanceMeters:  direct * detour,
		DurationSeconds: math.Round(direct / speed),
		IsEstimated:     true,
		Path:            []geo.Coordinate{},
	}
}

// cacheKey quantizes both endpoints to the cache grid.
// Format: route_{profile}_{originLat},{originLng}_{destLat},{destLng}.
func (s *Service) cacheKey(req DirectionsRequest) string {
	q := func(v float64) float64 {
		return math.Round(v/s.cacheGridSize) * s.cacheGridSize
	}
	return fmt.Sprintf("route_%s_%.5f,%.5f_%.5f,%.5f",
		req.Profile,
		q(req.Origin.Lat), q(req.Origin.Lng),
		q(req.Destination.Lat), q(req.Destination.Lng),
	)
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

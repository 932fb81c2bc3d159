package velib

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/cache"
	"github.com/velibadvisor/velibadvisor/internal/telemetry"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// ParisCenter is the reference point for the outskirts radius rule.
var ParisCenter = geo.Coordinate{Lat: 48.856614, Lng: 2.3522219}

// ServiceConfig holds configuration for the station service.
type ServiceConfig struct {
	// Provider is the station availability provider.
	Provider Provider

	// Cache stores provider results. Optional.
	Cache cache.Store

	// CacheTTL is how long station data stays fresh (default: 2 minutes).
	CacheTTL time.Duration

	// MaxRadius is the ceiling of the radius auto-expansion (default: 2000m).
	MaxRadius float64

	// OutskirtsDistance is the distance from ParisCenter beyond which the
	// search radius is raised to MaxRadius (default: 3000m).
	OutskirtsDistance float64

	// WalkingSpeed in m/s used for walk durations (default: 1.2).
	WalkingSpeed float64

	// Metrics records provider calls. Optional.
	Metrics *telemetry.ProviderMetrics

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service looks up nearby stations with caching and radius expansion.
type Service struct {
	provider          Provider
	cache             cache.Store
	cacheTTL          time.Duration
	maxRadius         float64
	outskirtsDistance float64
	walkingSpeed      float64
	metrics           *telemetry.ProviderMetrics
	logger            zerolog.Logger
}

// NewService creates a new station service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 2 * time.Minute
	}

	maxRadius := cfg.MaxRadius
	if maxRadius <= 0 {
		maxRadius = 2000
	}

	outskirts := cfg.OutskirtsDistance
	if outskirts <= 0 {
		outskirts = 3000
	}

	walkingSpeed := cfg.WalkingSpeed
	if walkingSpeed <= 0 {
		walkingSpeed = 1.2
	}

	return &Service{
		provider:          cfg.Provider,
		cache:             cfg.Cache,
		cacheTTL:          cacheTTL,
		maxRadius:         maxRadius,
		outskirtsDistance: outskirts,
		walkingSpeed:      walkingSpeed,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
	}
}

// NearbyStations returns stations around point ordered by distance.
// When nothing is found the radius is doubled up to the configured ceiling.
// An empty result is not an error.
func (s *Service) NearbyStations(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]Station, error) {
	if err := point.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_POINT",
			Message:  "invalid station search point",
			Err:      ErrInvalidCoordinates,
		}
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_RADIUS",
			Message:  fmt.Sprintf("radius %.0f must be positive", radiusMeters),
			Err:      ErrInvalidRadius,
		}
	}

	radius := radiusMeters
	if radius < s.maxRadius && geo.Distance(point, ParisCenter) > s.outskirtsDistance {
		s.logger.Debug().
			Float64("radius", radius).
			Float64("raised_to", s.maxRadius).
			Msg("query point far from Paris center, widening search radius")
		radius = s.maxRadius
	}

	for {
		stations, err := s.fetch(ctx, point, radius)
		if err != nil {
			return nil, err
		}
		if len(stations) > 0 || radius >= s.maxRadius {
			return stations, nil
		}

		next := math.Min(radius*2, s.maxRadius)
		s.logger.Debug().
			Float64("radius", radius).
			Float64("next_radius", next).
			Msg("no stations found, expanding search radius")
		radius = next
	}
}

// Refresh reloads the stations around point for exactly radiusMeters,
// replacing any cached copy.
func (s *Service) Refresh(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]Station, error) {
	if err := point.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_POINT",
			Message:  "invalid station search point",
			Err:      ErrInvalidCoordinates,
		}
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_RADIUS",
			Message:  fmt.Sprintf("radius %.0f must be positive", radiusMeters),
			Err:      ErrInvalidRadius,
		}
	}

	if s.cache != nil {
		s.cache.Delete(stationsKey(point, radiusMeters))
	}
	return s.fetch(ctx, point, radiusMeters)
}

func stationsKey(point geo.Coordinate, radius float64) string {
	return fmt.Sprintf("stations_%.5f_%.5f_%.0f", point.Lat, point.Lng, radius)
}

func (s *Service) fetch(ctx context.Context, point geo.Coordinate, radius float64) ([]Station, error) {
	key := stationsKey(point, radius)

	stations, hit, err := cache.Fetch(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]Station, error) {
		start := time.Now()
		raw, err := s.provider.NearbyStations(ctx, point, radius)
		s.metrics.RecordRequest(s.provider.Name(), "nearby_stations", time.Since(start), err)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("point", point.String()).
				Float64("radius", radius).
				Msg("failed to fetch nearby stations")
			return nil, err
		}
		return s.normalize(point, raw), nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCache(s.provider.Name(), "nearby_stations", hit)
	if hit {
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for nearby stations")
	}

	// Callers may reorder; never hand out the cached backing array.
	out := make([]Station, len(stations))
	copy(out, stations)
	return out, nil
}

// normalize fills distance and walking time, clamps counts and sorts by
// distance (station ID breaks ties).
func (s *Service) normalize(point geo.Coordinate, raw []Station) []Station {
	stations := make([]Station, 0, len(raw))
	for _, st := range raw {
		if st.DistanceMeters <= 0 {
			st.DistanceMeters = geo.Distance(point, st.Coordinate)
		}
		if st.WalkDurationSeconds <= 0 {
			st.WalkDurationSeconds = int(math.Round(st.DistanceMeters / s.walkingSpeed))
		}
		st.BikesAvailable = max(st.BikesAvailable, 0)
		st.DocksAvailable = max(st.DocksAvailable, 0)
		stations = append(stations, st)
	}

	sort.SliceStable(stations, func(i, j int) bool {
		if stations[i].DistanceMeters != stations[j].DistanceMeters {
			return stations[i].DistanceMeters < stations[j].DistanceMeters
		}
		return stations[i].ID < stations[j].ID
	})
	return stations
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

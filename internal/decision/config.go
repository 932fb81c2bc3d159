package decision

import (
	"errors"
	"fmt"
	"time"
)

// Config is the recommendation policy. See WithDefaults for how unset
// fields are filled.
type Config struct {
	// MinDistanceMeters is the direct distance below which walking wins.
	MinDistanceMeters float64 `koanf:"min_distance_meters"`
	// MaxDistanceMeters is the direct distance above which transit wins.
	MaxDistanceMeters float64 `koanf:"max_distance_meters"`
	// SearchRadiusMeters is the station search radius around each end.
	SearchRadiusMeters float64 `koanf:"search_radius_meters"`
	// WalkingSpeed in meters per second.
	WalkingSpeed float64 `koanf:"walking_speed"`

	// BufferSeconds covers unlocking and docking the bike.
	BufferSeconds int `koanf:"buffer_seconds"`
	// ShortTripBufferSeconds replaces BufferSeconds on routes shorter than ShortTripMeters.
	ShortTripBufferSeconds int     `koanf:"short_trip_buffer_seconds"`
	ShortTripMeters        float64 `koanf:"short_trip_meters"`
	// MaxWalkSeconds caps the walk counted on each side.
	MaxWalkSeconds int `koanf:"max_walk_seconds"`

	// Stations with fewer than ScarcityThreshold bikes or docks are
	// ranked as if ScarcityPenaltySeconds further away.
	ScarcityThreshold      int `koanf:"scarcity_threshold"`
	ScarcityPenaltySeconds int `koanf:"scarcity_penalty_seconds"`
	// PreferredStationMeters limits ranked candidates when any station is that close.
	PreferredStationMeters float64 `koanf:"preferred_station_meters"`
	// StationCount is the number of stations kept per side.
	StationCount int `koanf:"station_count"`

	// HillAscentMeters is the ascent above which the reason mentions the climb.
	HillAscentMeters float64 `koanf:"hill_ascent_meters"`

	// CallTimeout bounds each provider lookup.
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		MinDistanceMeters:      500,
		MaxDistanceMeters:      10000,
		SearchRadiusMeters:     800,
		WalkingSpeed:           1.2,
		BufferSeconds:          120,
		ShortTripBufferSeconds: 60,
		ShortTripMeters:        2000,
		MaxWalkSeconds:         300,
		ScarcityThreshold:      3,
		ScarcityPenaltySeconds: 300,
		PreferredStationMeters: 1000,
		StationCount:           3,
		HillAscentMeters:       100,
		CallTimeout:            5 * time.Second,
	}
}

// WithDefaults returns DefaultConfig for the zero Config. Otherwise only
// fields that cannot be zero are filled in; zero buffers, thresholds,
// penalties and bounds are kept as set.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c == (Config{}) {
		return d
	}
	if c.MaxDistanceMeters == 0 {
		c.MaxDistanceMeters = d.MaxDistanceMeters
	}
	if c.SearchRadiusMeters == 0 {
		c.SearchRadiusMeters = d.SearchRadiusMeters
	}
	if c.WalkingSpeed == 0 {
		c.WalkingSpeed = d.WalkingSpeed
	}
	if c.MaxWalkSeconds == 0 {
		c.MaxWalkSeconds = d.MaxWalkSeconds
	}
	if c.StationCount == 0 {
		c.StationCount = d.StationCount
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

// Validate rejects inconsistent policies.
func (c Config) Validate() error {
	var errs []error
	if c.MinDistanceMeters < 0 {
		errs = append(errs, errors.New("min_distance_meters must not be negative"))
	}
	if c.MaxDistanceMeters <= c.MinDistanceMeters {
		errs = append(errs, fmt.Errorf("max_distance_meters (%g) must exceed min_distance_meters (%g)",
			c.MaxDistanceMeters, c.MinDistanceMeters))
	}
	if c.SearchRadiusMeters <= 0 {
		errs = append(errs, errors.New("search_radius_meters must be positive"))
	}
	if c.WalkingSpeed <= 0 {
		errs = append(errs, errors.New("walking_speed must be positive"))
	}
	if c.BufferSeconds < 0 || c.ShortTripBufferSeconds < 0 {
		errs = append(errs, errors.New("buffers must not be negative"))
	}
	if c.ShortTripBufferSeconds > c.BufferSeconds {
		errs = append(errs, errors.New("short_trip_buffer_seconds must not exceed buffer_seconds"))
	}
	if c.MaxWalkSeconds <= 0 {
		errs = append(errs, errors.New("max_walk_seconds must be positive"))
	}
	if c.StationCount <= 0 {
		errs = append(errs, errors.New("station_count must be positive"))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("call_timeout must be positive"))
	}
	return errors.Join(errs...)
}

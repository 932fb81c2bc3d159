// Package worker provides background jobs that keep the station cache warm.
package worker

import (
	"sort"
	"time"

	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// Hub is a busy place whose nearby stations are refreshed ahead of requests.
type Hub struct {
	// Name is the human-readable name of the hub.
	Name string `koanf:"name"`

	Lat float64 `koanf:"lat"`
	Lng float64 `koanf:"lng"`

	// Priority determines refresh order (lower = higher priority).
	Priority int `koanf:"priority"`
}

// Point returns the hub coordinate.
func (h Hub) Point() geo.Coordinate {
	return geo.Coordinate{Lat: h.Lat, Lng: h.Lng}
}

// WarmupConfig holds configuration for the station warm-up job.
type WarmupConfig struct {
	// Hubs are the places to refresh. If empty, uses DefaultHubs.
	Hubs []Hub `koanf:"hubs"`

	// RadiusMeters is the station search radius around each hub.
	// Default: 800
	RadiusMeters float64 `koanf:"radius_meters"`

	// Concurrency is the number of hubs refreshed in parallel.
	// Default: 4
	Concurrency int `koanf:"concurrency"`

	// Timeout bounds the refresh of a single hub.
	// Default: 10 seconds
	Timeout time.Duration `koanf:"timeout"`

	// Interval schedules warm-ups when no subscription is configured.
	// Default: 1 minute
	Interval time.Duration `koanf:"interval"`
}

// Config holds the worker process configuration.
type Config struct {
	// ProjectID and Subscription select the Pub/Sub job feed. Without a
	// subscription the worker runs warm-ups on Warmup.Interval.
	ProjectID    string `koanf:"project_id"`
	Subscription string `koanf:"subscription"`

	// MaxOutstanding caps unacknowledged messages in flight.
	MaxOutstanding int `koanf:"max_outstanding"`

	Warmup WarmupConfig `koanf:"warmup"`
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		MaxOutstanding: 10,
		Warmup:         DefaultWarmupConfig(),
	}
}

// DefaultWarmupConfig returns the default warm-up configuration.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Hubs:         DefaultHubs(),
		RadiusMeters: 800,
		Concurrency:  4,
		Timeout:      10 * time.Second,
		Interval:     time.Minute,
	}
}

// WithDefaults returns c with unset fields taken from DefaultWarmupConfig.
func (c WarmupConfig) WithDefaults() WarmupConfig {
	d := DefaultWarmupConfig()
	if len(c.Hubs) == 0 {
		c.Hubs = d.Hubs
	}
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = d.RadiusMeters
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	return c
}

// DefaultHubs returns the main Paris stations and squares, where availability
// changes fastest.
func DefaultHubs() []Hub {
	return []Hub{
		{Name: "Châtelet", Lat: 48.8584, Lng: 2.3470, Priority: 1},
		{Name: "Gare du Nord", Lat: 48.8809, Lng: 2.3553, Priority: 1},
		{Name: "Gare de Lyon", Lat: 48.8443, Lng: 2.3744, Priority: 1},
		{Name: "Gare Saint-Lazare", Lat: 48.8763, Lng: 2.3254, Priority: 1},
		{Name: "Gare Montparnasse", Lat: 48.8412, Lng: 2.3200, Priority: 1},
		{Name: "République", Lat: 48.8674, Lng: 2.3636, Priority: 2},
		{Name: "Bastille", Lat: 48.8532, Lng: 2.3692, Priority: 2},
		{Name: "Nation", Lat: 48.8483, Lng: 2.3959, Priority: 2},
		{Name: "Place d'Italie", Lat: 48.8310, Lng: 2.3555, Priority: 2},
		{Name: "Trocadéro", Lat: 48.8629, Lng: 2.2873, Priority: 3},
		{Name: "Opéra", Lat: 48.8709, Lng: 2.3319, Priority: 3},
		{Name: "Bibliothèque François Mitterrand", Lat: 48.8299, Lng: 2.3764, Priority: 3},
	}
}

// OrderedHubs returns the hubs sorted by priority, keeping configured order
// within a priority.
func (c WarmupConfig) OrderedHubs() []Hub {
	hubs := make([]Hub, len(c.Hubs))
	copy(hubs, c.Hubs)
	sort.SliceStable(hubs, func(i, j int) bool {
		return hubs[i].Priority < hubs[j].Priority
	})
	return hubs
}

// Select returns the hubs whose names are listed, or all hubs when names is
// empty.
func (c WarmupConfig) Select(names []string) []Hub {
	if len(names) == 0 {
		return c.Hubs
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var hubs []Hub
	for _, h := range c.Hubs {
		if wanted[h.Name] {
			hubs = append(hubs, h)
		}
	}
	return hubs
}

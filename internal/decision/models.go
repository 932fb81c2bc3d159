// Package decision decides whether a Vélib trip beats walking or public
// transit between two points, from station availability, a cycling route
// and an alternative-transport estimate.
package decision

import (
	"context"
	"errors"
	"time"

	"github.com/velibadvisor/velibadvisor/internal/alternative"
	"github.com/velibadvisor/velibadvisor/internal/routing"
	"github.com/velibadvisor/velibadvisor/internal/velib"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// ErrInvalidInput indicates malformed origin or destination coordinates.
var ErrInvalidInput = errors.New("invalid input")

// StationFinder returns the stations around a point, nearest first.
// No station is an empty slice, not an error.
type StationFinder interface {
	NearbyStations(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]velib.Station, error)
}

// RouteComputer computes a route. It never fails; degraded results are
// flagged with IsEstimated.
type RouteComputer interface {
	ComputeRoute(ctx context.Context, origin, destination geo.Coordinate, profile routing.RouteProfile) routing.RouteResult
}

// AlternativeEstimator estimates the best non-bike option for a trip.
// A nil transport means no estimate is available.
type AlternativeEstimator interface {
	Estimate(ctx context.Context, origin, destination geo.Coordinate) (*alternative.Transport, error)
}

// ReasonCode is the machine-readable outcome of an analysis.
type ReasonCode string

const (
	ReasonTooShort           ReasonCode = "too_short"
	ReasonTooLong            ReasonCode = "too_long"
	ReasonNoDepartureStation ReasonCode = "no_departure_station"
	ReasonNoArrivalStation   ReasonCode = "no_arrival_station"
	ReasonNoBikes            ReasonCode = "no_bikes"
	ReasonNoDocks            ReasonCode = "no_docks"
	ReasonVelibFaster        ReasonCode = "velib_faster"
	ReasonAlternativeFaster  ReasonCode = "alternative_faster"
	ReasonNoAlternative      ReasonCode = "no_alternative"
	ReasonFailure            ReasonCode = "analysis_failed"
)

// Names of the concurrent lookups, reported in Decision.Degraded.
const (
	TaskDepartureStations = "departure_stations"
	TaskArrivalStations   = "arrival_stations"
	TaskRoute             = "route"
	TaskAlternative       = "alternative"
)

// Breakdown splits the Vélib door-to-door time into its parts.
type Breakdown struct {
	CyclingSeconds       int `json:"cyclingSeconds"`
	DepartureWalkSeconds int `json:"departureWalkSeconds"`
	ArrivalWalkSeconds   int `json:"arrivalWalkSeconds"`
	BufferSeconds        int `json:"bufferSeconds"`
}

// Total returns the door-to-door Vélib time in seconds.
func (b Breakdown) Total() int {
	return b.CyclingSeconds + b.DepartureWalkSeconds + b.ArrivalWalkSeconds + b.BufferSeconds
}

// WalkSeconds returns the walking time on both ends.
func (b Breakdown) WalkSeconds() int {
	return b.DepartureWalkSeconds + b.ArrivalWalkSeconds
}

// Decision is the result of one journey analysis.
type Decision struct {
	ID         string     `json:"id"`
	Recommend  bool       `json:"recommend"`
	Reason     string     `json:"reason"`
	ReasonCode ReasonCode `json:"reasonCode"`

	// Error is set when the analysis itself failed.
	Error bool `json:"error,omitempty"`

	Origin               geo.Coordinate `json:"origin"`
	Destination          geo.Coordinate `json:"destination"`
	DirectDistanceMeters float64        `json:"directDistanceMeters"`

	// DepartureStations all have bikes, ArrivalStations all have docks.
	DepartureStations []velib.Station `json:"departureStations"`
	ArrivalStations   []velib.Station `json:"arrivalStations"`

	Route        *routing.RouteResult   `json:"route,omitempty"`
	VelibSeconds *int                   `json:"velibSeconds,omitempty"`
	Breakdown    *Breakdown             `json:"breakdown,omitempty"`
	Alternative  *alternative.Transport `json:"alternative,omitempty"`

	// Degraded lists the lookups that failed or timed out.
	Degraded []string `json:"degraded,omitempty"`

	AnalyzedAt time.Time `json:"analyzedAt"`
}

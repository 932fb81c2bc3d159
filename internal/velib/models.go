// Package velib provides nearby bike-share station lookups with live bike
// and dock availability.
package velib

import (
	"context"
	"errors"

	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// Sentinel errors for station lookups.
var (
	// ErrProviderUnavailable indicates the availability provider could not be reached.
	ErrProviderUnavailable = errors.New("station provider unavailable")
	// ErrInvalidCoordinates indicates the query point is out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidRadius indicates a non-positive search radius.
	ErrInvalidRadius = errors.New("invalid search radius")
)

// Provider fetches live station data around a point.
type Provider interface {
	// NearbyStations returns the stations within radiusMeters of point.
	// No stations is an empty slice, not an error.
	NearbyStations(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]Station, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Station is a bike-share dock location with its availability at query time.
type Station struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Coordinate geo.Coordinate `json:"coordinate"`

	BikesAvailable  int `json:"bikesAvailable"`
	MechanicalBikes int `json:"mechanicalBikes"`
	EBikes          int `json:"ebikes"`
	DocksAvailable  int `json:"docksAvailable"`
	Capacity        int `json:"capacity,omitempty"`

	// DistanceMeters is the direct distance from the query point.
	DistanceMeters float64 `json:"distanceMeters"`
	// WalkDurationSeconds is the walking time from the query point.
	WalkDurationSeconds int `json:"walkDurationSeconds"`
}

// Resource selects which availability count of a station matters.
type Resource int

const (
	// Bikes is the resource checked at the departure side.
	Bikes Resource = iota
	// Docks is the resource checked at the arrival side.
	Docks
)

func (r Resource) String() string {
	if r == Docks {
		return "docks"
	}
	return "bikes"
}

// Available returns the station's count of the given resource.
func (s Station) Available(r Resource) int {
	if r == Docks {
		return s.DocksAvailable
	}
	return s.BikesAvailable
}

// Error provides detailed error information from the station provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Package routing computes cycling and walking routes between two points.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// GetDirections retrieves route directions between two points.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// RouteProfile represents a routing profile (mode of transport).
type RouteProfile string

const (
	// ProfileWalk is the foot-walking profile for pedestrian routing.
	ProfileWalk RouteProfile = "foot-walking"
	// ProfileBike is the cycling-regular profile for bike routing.
	ProfileBike RouteProfile = "cycling-regular"
	// ProfileEBike is the cycling-electric profile for e-bike routing.
	ProfileEBike RouteProfile = "cycling-electric"
)

// Valid reports whether p is a known profile.
func (p RouteProfile) Valid() bool {
	switch p {
	case ProfileWalk, ProfileBike, ProfileEBike:
		return true
	}
	return false
}

// DirectionsRequest is the request for computing routes.
type DirectionsRequest struct {
	Origin          geo.Coordinate
	Destination     geo.Coordinate
	Profile         RouteProfile
	MaxAlternatives int // Maximum number of alternative routes to return (default: 0)
}

// DirectionsResponse is the response containing route alternatives.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route represents a single route option returned by a provider.
type Route struct {
	GeometryPolyline string           // Encoded polyline as returned by the provider
	Path             []geo.Coordinate // Decoded geometry
	DistanceMeters   float64
	DurationSeconds  float64
	AscentMeters     float64
	DescentMeters    float64
	Summary          string
	BoundingBox      *BoundingBox
	Instructions     []Instruction
}

// BoundingBox represents a geographic bounding box.
type BoundingBox struct {
	MinLng float64
	MinLat float64
	MaxLng float64
	MaxLat float64
}

// Instruction represents a turn-by-turn instruction.
type Instruction struct {
	Text           string
	DistanceMeters int
	DurationSecs   int
	Type           int // ORS instruction type code
}

// RouteResult is the route used by the decision engine. IsEstimated marks a
// synthetic result built from the direct distance when no provider route was
// available.
type RouteResult struct {
	Profile         RouteProfile     `json:"profile"`
	DistanceMeters  float64          `json:"distanceMeters"`
	DurationSeconds float64          `json:"durationSeconds"`
	AscentMeters    float64          `json:"ascentMeters"`
	DescentMeters   float64          `json:"descentMeters"`
	IsEstimated     bool             `json:"isEstimated"`
	Path            []geo.Coordinate `json:"path"`
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
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

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// Package alternative estimates the non bike-share option (walking or public
// transit) a journey is compared against. Estimates are deterministic and
// depend only on the direct distance.
package alternative

import (
	"context"
	"fmt"
	"math"

	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// Mode is the kind of alternative transport.
type Mode string

const (
	ModeWalk        Mode = "walk"
	ModeTransit     Mode = "transit"
	ModeFastTransit Mode = "fast_transit"
)

// Breakdown splits a transit duration into its components, in seconds.
type Breakdown struct {
	WalkSeconds      int `json:"walkSeconds"`
	WaitSeconds      int `json:"waitSeconds"`
	InVehicleSeconds int `json:"inVehicleSeconds"`
}

// String renders the walk and wait share, e.g. "including ~8min walking and 5min waiting".
func (b Breakdown) String() string {
	return fmt.Sprintf("including ~%s walking and %s waiting",
		geo.FormatDuration(float64(b.WalkSeconds)), geo.FormatDuration(float64(b.WaitSeconds)))
}

// Transport is an estimated alternative to bike-share.
type Transport struct {
	Mode            Mode       `json:"mode"`
	DurationSeconds int        `json:"durationSeconds"`
	DistanceMeters  float64    `json:"distanceMeters"`
	Description     string     `json:"description"`
	Breakdown       *Breakdown `json:"breakdown,omitempty"`
	// Details is the human-readable form of Breakdown.
	Details string `json:"details,omitempty"`
}

// Config holds the banded model parameters. Zero fields take defaults.
type Config struct {
	// WalkingSpeed in m/s (default: 1.2).
	WalkingSpeed float64
	// WalkBand is the distance below which walking is the alternative (default: 1500m).
	WalkBand float64
	// FastBand is the distance from which fast transit is assumed (default: 8000m).
	FastBand float64
	// TransitSpeedKmh is the in-vehicle speed of regular transit (default: 20).
	TransitSpeedKmh float64
	// FastTransitSpeedKmh is the in-vehicle speed of fast transit (default: 30).
	FastTransitSpeedKmh float64
}

// Estimator produces alternative transport estimates.
type Estimator struct {
	walkingSpeed     float64
	walkBand         float64
	fastBand         float64
	transitSpeed     float64
	fastTransitSpeed float64
}

const (
	transitWaitSeconds     = 300
	transitMinWalkSeconds  = 180
	transitMaxWalkSeconds  = 360
	// transitWalkScaleMeters scales the walk to and from stops with distance.
	transitWalkScaleMeters = 8000
	fastTransitWaitSeconds = 480
	fastTransitWalkSeconds = 420
)

// NewEstimator creates an estimator.
func NewEstimator(cfg Config) *Estimator {
	e := &Estimator{
		walkingSpeed:     cfg.WalkingSpeed,
		walkBand:         cfg.WalkBand,
		fastBand:         cfg.FastBand,
		transitSpeed:     cfg.TransitSpeedKmh * 1000 / 3600,
		fastTransitSpeed: cfg.FastTransitSpeedKmh * 1000 / 3600,
	}
	if e.walkingSpeed <= 0 {
		e.walkingSpeed = 1.2
	}
	if e.walkBand <= 0 {
		e.walkBand = 1500
	}
	if e.fastBand <= 0 {
		e.fastBand = 8000
	}
	if e.transitSpeed <= 0 {
		e.transitSpeed = 20000.0 / 3600
	}
	if e.fastTransitSpeed <= 0 {
		e.fastTransitSpeed = 30000.0 / 3600
	}
	return e
}

// Estimate returns the alternative between two points. It returns nil when
// either point is not a valid coordinate.
func (e *Estimator) Estimate(_ context.Context, origin, destination geo.Coordinate) (*Transport, error) {
	if origin.Validate() != nil || destination.Validate() != nil {
		return nil, nil
	}
	return e.ForDistance(geo.Distance(origin, destination)), nil
}

// ForDistance applies the banded model to a direct distance in meters.
func (e *Estimator) ForDistance(d float64) *Transport {
	d = math.Max(d, 0)

	switch {
	case d < e.walkBand:
		return e.Walk(d)

	case d < e.fastBand:
		walk := int(math.Round(d / transitWalkScaleMeters * transitMaxWalkSeconds))
		walk = min(max(walk, transitMinWalkSeconds), transitMaxWalkSeconds)
		inVehicle := int(math.Round(d / e.transitSpeed))
		return transit(ModeTransit, d, Breakdown{
			WalkSeconds:      2 * walk,
			WaitSeconds:      transitWaitSeconds,
			InVehicleSeconds: inVehicle,
		}, fmt.Sprintf("Public transit is recommended for this %s trip.", geo.FormatDistance(d)))

	default:
		inVehicle := int(math.Round(d / e.fastTransitSpeed))
		return transit(ModeFastTransit, d, Breakdown{
			WalkSeconds:      2 * fastTransitWalkSeconds,
			WaitSeconds:      fastTransitWaitSeconds,
			InVehicleSeconds: inVehicle,
		}, fmt.Sprintf("For this %s trip, prefer fast public transit (RER, metro).", geo.FormatDistance(d)))
	}
}

// Walk returns a walking alternative for the distance at the configured speed.
func (e *Estimator) Walk(d float64) *Transport {
	return WalkAt(d, e.walkingSpeed)
}

// WalkAt returns a walking alternative for the distance at speed m/s.
func WalkAt(d, speed float64) *Transport {
	d = math.Max(d, 0)
	return &Transport{
		Mode:            ModeWalk,
		DurationSeconds: int(math.Round(d / speed)),
		DistanceMeters:  d,
		Description:     fmt.Sprintf("Walking is a good option for this %s trip.", geo.FormatDistance(d)),
	}
}

func transit(mode Mode, d float64, b Breakdown, description string) *Transport {
	return &Transport{
		Mode:            mode,
		DurationSeconds: b.InVehicleSeconds + b.WaitSeconds + b.WalkSeconds,
		DistanceMeters:  d,
		Description:     description,
		Breakdown:       &b,
		Details:         b.String(),
	}
}

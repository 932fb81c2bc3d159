package alternative_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velibadvisor/velibadvisor/internal/alternative"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

func TestEstimator_ForDistance_Bands(t *testing.T) {
	e := alternative.NewEstimator(alternative.Config{})

	tests := []struct {
		name      string
		distance  float64
		mode      alternative.Mode
		duration  int
		breakdown *alternative.Breakdown
	}{
		{"zero", 0, alternative.ModeWalk, 0, nil},
		{"short walk", 600, alternative.ModeWalk, 500, nil},
		{"just below walk band", 1499, alternative.ModeWalk, 1249, nil},
		{
			// walk clamp(round(1500/8000*360)=68 -> 180), in-vehicle round(270)=270
			name: "walk band edge", distance: 1500, mode: alternative.ModeTransit, duration: 270 + 300 + 360,
			breakdown: &alternative.Breakdown{WalkSeconds: 360, WaitSeconds: 300, InVehicleSeconds: 270},
		},
		{
			// walk round(3000/8000*360)=135 -> 180, in-vehicle 540
			name: "mid transit", distance: 3000, mode: alternative.ModeTransit, duration: 540 + 300 + 360,
			breakdown: &alternative.Breakdown{WalkSeconds: 360, WaitSeconds: 300, InVehicleSeconds: 540},
		},
		{
			// walk round(6000/8000*360)=270, in-vehicle 1080
			name: "long transit", distance: 6000, mode: alternative.ModeTransit, duration: 1080 + 300 + 540,
			breakdown: &alternative.Breakdown{WalkSeconds: 540, WaitSeconds: 300, InVehicleSeconds: 1080},
		},
		{
			// in-vehicle round(12000/(30000/3600)) = 1440
			name: "fast transit", distance: 12000, mode: alternative.ModeFastTransit, duration: 1440 + 480 + 840,
			breakdown: &alternative.Breakdown{WalkSeconds: 840, WaitSeconds: 480, InVehicleSeconds: 1440},
		},
		{
			name: "fast band edge", distance: 8000, mode: alternative.ModeFastTransit, duration: 960 + 480 + 840,
			breakdown: &alternative.Breakdown{WalkSeconds: 840, WaitSeconds: 480, InVehicleSeconds: 960},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ForDistance(tt.distance)
			require.NotNil(t, got)
			assert.Equal(t, tt.mode, got.Mode)
			assert.Equal(t, tt.duration, got.DurationSeconds)
			assert.Equal(t, tt.breakdown, got.Breakdown)
			assert.NotEmpty(t, got.Description)
			if tt.breakdown != nil {
				assert.Contains(t, got.Details, "walking")
				assert.Contains(t, got.Details, "waiting")
			}
		})
	}
}

func TestEstimator_TransitWalkIsClampedToSixMinutes(t *testing.T) {
	e := alternative.NewEstimator(alternative.Config{})

	// 7999m: round(7999/8000*360)=360 -> stays at the 360s ceiling
	got := e.ForDistance(7999)
	require.NotNil(t, got.Breakdown)
	assert.Equal(t, 720, got.Breakdown.WalkSeconds)
}

func TestEstimator_IsDeterministic(t *testing.T) {
	e := alternative.NewEstimator(alternative.Config{})
	origin := geo.Coordinate{Lat: 48.8584, Lng: 2.3470}
	dest := geo.Coordinate{Lat: 48.8809, Lng: 2.3553}

	first, err := e.Estimate(context.Background(), origin, dest)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Estimate(context.Background(), origin, dest)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEstimator_InvalidCoordinatesYieldNil(t *testing.T) {
	e := alternative.NewEstimator(alternative.Config{})

	got, err := e.Estimate(context.Background(), geo.Coordinate{Lat: math.NaN(), Lng: 2.3}, geo.Coordinate{Lat: 48.8, Lng: 2.3})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestWalkAt(t *testing.T) {
	got := alternative.WalkAt(420, 1.4)
	assert.Equal(t, alternative.ModeWalk, got.Mode)
	assert.Equal(t, 300, got.DurationSeconds)
	assert.Nil(t, got.Breakdown)
	assert.Contains(t, got.Description, "420m")
}

func TestEstimator_CustomConfig(t *testing.T) {
	e := alternative.NewEstimator(alternative.Config{WalkingSpeed: 1.4, WalkBand: 1000})

	walk := e.ForDistance(700)
	assert.Equal(t, alternative.ModeWalk, walk.Mode)
	assert.Equal(t, 500, walk.DurationSeconds)

	assert.Equal(t, alternative.ModeTransit, e.ForDistance(1200).Mode)
}

func TestEstimator_TransitWalkIgnoresFastBand(t *testing.T) {
	standard := alternative.NewEstimator(alternative.Config{})
	wide := alternative.NewEstimator(alternative.Config{FastBand: 12000})

	// round(6000/8000*360)=270 each way, whatever the fast band.
	for _, e := range []*alternative.Estimator{standard, wide} {
		got := e.ForDistance(6000)
		assert.Equal(t, alternative.ModeTransit, got.Mode)
		require.NotNil(t, got.Breakdown)
		assert.Equal(t, 540, got.Breakdown.WalkSeconds)
	}

	got := wide.ForDistance(10000)
	assert.Equal(t, alternative.ModeTransit, got.Mode)
	assert.Equal(t, 720, got.Breakdown.WalkSeconds)
}

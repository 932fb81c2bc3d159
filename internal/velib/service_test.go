package velib_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velibadvisor/velibadvisor/internal/cache"
	"github.com/velibadvisor/velibadvisor/internal/velib"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

var chatelet = geo.Coordinate{Lat: 48.8584, Lng: 2.3470}

// mockProvider returns stations only once the radius reaches minRadius.
type mockProvider struct {
	stations  []velib.Station
	minRadius float64
	err       error
	callCount atomic.Int32

	mu       sync.Mutex
	radiuses []float64
}

func (m *mockProvider) NearbyStations(_ context.Context, _ geo.Coordinate, radius float64) ([]velib.Station, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.radiuses = append(m.radiuses, radius)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if radius < m.minRadius {
		return []velib.Station{}, nil
	}
	out := make([]velib.Station, len(m.stations))
	copy(out, m.stations)
	return out, nil
}

func (m *mockProvider) Name() string { return "mock" }

func newService(p velib.Provider, store cache.Store) *velib.Service {
	return velib.NewService(velib.ServiceConfig{
		Provider: p,
		Cache:    store,
		Logger:   zerolog.Nop(),
	})
}

func TestService_NearbyStations_SortsAndFillsWalkTime(t *testing.T) {
	provider := &mockProvider{stations: []velib.Station{
		{ID: "b", Coordinate: geo.Coordinate{Lat: 48.8600, Lng: 2.3470}, BikesAvailable: 2, DistanceMeters: 300},
		{ID: "a", Coordinate: geo.Coordinate{Lat: 48.8590, Lng: 2.3470}, BikesAvailable: 5},
		{ID: "c", Coordinate: geo.Coordinate{Lat: 48.8600, Lng: 2.3480}, BikesAvailable: -1, DistanceMeters: 300},
	}}

	stations, err := newService(provider, nil).NearbyStations(context.Background(), chatelet, 800)
	require.NoError(t, err)
	require.Len(t, stations, 3)

	assert.Equal(t, "a", stations[0].ID)
	assert.InDelta(t, 66.7, stations[0].DistanceMeters, 1)
	assert.Equal(t, 56, stations[0].WalkDurationSeconds)

	// equal distances break ties on ID
	assert.Equal(t, "b", stations[1].ID)
	assert.Equal(t, "c", stations[2].ID)
	assert.Equal(t, 250, stations[1].WalkDurationSeconds)
	assert.Equal(t, 0, stations[2].BikesAvailable, "negative counts are clamped")
}

func TestService_NearbyStations_ExpandsRadius(t *testing.T) {
	provider := &mockProvider{
		minRadius: 1600,
		stations:  []velib.Station{{ID: "far", DistanceMeters: 1500, BikesAvailable: 3}},
	}

	stations, err := newService(provider, nil).NearbyStations(context.Background(), chatelet, 400)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, []float64{400, 800, 1600}, provider.radiuses)
}

func TestService_NearbyStations_EmptyAtCeilingIsNotAnError(t *testing.T) {
	provider := &mockProvider{minRadius: 1e9}

	stations, err := newService(provider, nil).NearbyStations(context.Background(), chatelet, 800)
	require.NoError(t, err)
	assert.Empty(t, stations)
	assert.Equal(t, []float64{800, 1600, 2000}, provider.radiuses)
}

func TestService_NearbyStations_OutskirtsUseCeilingRadius(t *testing.T) {
	provider := &mockProvider{stations: []velib.Station{{ID: "x", DistanceMeters: 100}}}
	vincennes := geo.Coordinate{Lat: 48.8474, Lng: 2.4394}

	_, err := newService(provider, nil).NearbyStations(context.Background(), vincennes, 800)
	require.NoError(t, err)
	assert.Equal(t, []float64{2000}, provider.radiuses)
}

func TestService_NearbyStations_UsesCache(t *testing.T) {
	provider := &mockProvider{stations: []velib.Station{{ID: "a", DistanceMeters: 100, BikesAvailable: 4}}}
	svc := newService(provider, cache.NewStore(100))

	first, err := svc.NearbyStations(context.Background(), chatelet, 800)
	require.NoError(t, err)
	first[0].BikesAvailable = 99

	second, err := svc.NearbyStations(context.Background(), chatelet, 800)
	require.NoError(t, err)

	assert.Equal(t, int32(1), provider.callCount.Load())
	assert.Equal(t, 4, second[0].BikesAvailable, "cached slice is not shared with callers")
}

func TestService_Refresh_BypassesCache(t *testing.T) {
	provider := &mockProvider{stations: []velib.Station{{ID: "a", DistanceMeters: 100, BikesAvailable: 4}}}
	store := cache.NewStore(100)
	svc := newService(provider, store)

	_, err := svc.NearbyStations(context.Background(), chatelet, 800)
	require.NoError(t, err)

	provider.mu.Lock()
	provider.stations[0].BikesAvailable = 1
	provider.mu.Unlock()

	refreshed, err := svc.Refresh(context.Background(), chatelet, 800)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed[0].BikesAvailable)
	assert.Equal(t, int32(2), provider.callCount.Load())

	cached, err := svc.NearbyStations(context.Background(), chatelet, 800)
	require.NoError(t, err)
	assert.Equal(t, 1, cached[0].BikesAvailable)
	assert.Equal(t, int32(2), provider.callCount.Load())
}

func TestService_Refresh_Validation(t *testing.T) {
	svc := newService(&mockProvider{}, nil)

	_, err := svc.Refresh(context.Background(), geo.Coordinate{Lat: 91}, 800)
	assert.ErrorIs(t, err, velib.ErrInvalidCoordinates)

	_, err = svc.Refresh(context.Background(), chatelet, 0)
	assert.ErrorIs(t, err, velib.ErrInvalidRadius)
}

func TestService_NearbyStations_ProviderError(t *testing.T) {
	providerErr := &velib.Error{Provider: "mock", Code: "HTTP_503", Message: "down", Err: velib.ErrProviderUnavailable}
	provider := &mockProvider{err: providerErr}
	svc := newService(provider, cache.NewStore(100))

	_, err := svc.NearbyStations(context.Background(), chatelet, 800)
	assert.ErrorIs(t, err, velib.ErrProviderUnavailable)

	// failures are not cached
	_, _ = svc.NearbyStations(context.Background(), chatelet, 800)
	assert.Equal(t, int32(2), provider.callCount.Load())
}

func TestService_NearbyStations_Validation(t *testing.T) {
	svc := newService(&mockProvider{}, nil)

	_, err := svc.NearbyStations(context.Background(), geo.Coordinate{Lat: 91, Lng: 2}, 800)
	assert.True(t, errors.Is(err, velib.ErrInvalidCoordinates))

	_, err = svc.NearbyStations(context.Background(), chatelet, 0)
	assert.True(t, errors.Is(err, velib.ErrInvalidRadius))
}

func TestStation_Available(t *testing.T) {
	st := velib.Station{BikesAvailable: 3, DocksAvailable: 7}
	assert.Equal(t, 3, st.Available(velib.Bikes))
	assert.Equal(t, 7, st.Available(velib.Docks))
	assert.Equal(t, "docks", velib.Docks.String())
}

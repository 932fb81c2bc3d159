package routing

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/cache"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

var (
	chatelet   = geo.Coordinate{Lat: 48.8584, Lng: 2.3470}
	gareDuNord = geo.Coordinate{Lat: 48.8809, Lng: 2.3553}
)

// mockProvider is a mock routing provider for testing.
type mockProvider struct {
	name      string
	response  *DirectionsResponse
	err       error
	callCount atomic.Int32
}

func (m *mockProvider) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func newTestProvider() *mockProvider {
	return &mockProvider{
		name: "test-provider",
		response: &DirectionsResponse{
			Routes: []Route{
				{
					GeometryPolyline: "_teiHwkiMwb@iP{gBqa@",
					Path:             []geo.Coordinate{chatelet, gareDuNord},
					DistanceMeters:   2810,
					DurationSeconds:  703,
					AscentMeters:     27,
					DescentMeters:    2,
				},
			},
			Provider:  "test-provider",
			FetchedAt: time.Now(),
		},
	}
}

func TestService_GetDirections_CachesResponses(t *testing.T) {
	provider := newTestProvider()
	service := NewService(ServiceConfig{
		Provider: provider,
		Cache:    cache.NewStore(100),
		Logger:   zerolog.Nop(),
	})

	req := DirectionsRequest{Origin: chatelet, Destination: gareDuNord, Profile: ProfileBike}
	for i := 0; i < 3; i++ {
		resp, err := service.GetDirections(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Routes) != 1 {
			t.Fatalf("expected 1 route, got %d", len(resp.Routes))
		}
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_ProfilesAreCachedSeparately(t *testing.T) {
	provider := newTestProvider()
	service := NewService(ServiceConfig{
		Provider: provider,
		Cache:    cache.NewStore(100),
		Logger:   zerolog.Nop(),
	})

	_, _ = service.GetDirections(context.Background(), DirectionsRequest{Origin: chatelet, Destination: gareDuNord, Profile: ProfileBike})
	_, _ = service.GetDirections(context.Background(), DirectionsRequest{Origin: chatelet, Destination: gareDuNord, Profile: ProfileWalk})

	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls, got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_NearbyPointsShareCacheCell(t *testing.T) {
	provider := newTestProvider()
	service := NewService(ServiceConfig{
		Provider: provider,
		Cache:    cache.NewStore(100),
		Logger:   zerolog.Nop(),
	})

	nudged := geo.Coordinate{Lat: chatelet.Lat + 0.00001, Lng: chatelet.Lng}
	_, _ = service.GetDirections(context.Background(), DirectionsRequest{Origin: chatelet, Destination: gareDuNord, Profile: ProfileBike})
	_, _ = service.GetDirections(context.Background(), DirectionsRequest{Origin: nudged, Destination: gareDuNord, Profile: ProfileBike})

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_InvalidCoordinates(t *testing.T) {
	service := NewService(ServiceConfig{Provider: newTestProvider(), Logger: zerolog.Nop()})

	_, err := service.GetDirections(context.Background(), DirectionsRequest{
		Origin:      geo.Coordinate{Lat: 95, Lng: 2.3},
		Destination: gareDuNord,
	})

	var routingErr *Error
	if !errors.As(err, &routingErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
	if routingErr.Code != "INVALID_ORIGIN" {
		t.Errorf("expected INVALID_ORIGIN, got %s", routingErr.Code)
	}
}

func TestService_ComputeRoute_UsesProviderRoute(t *testing.T) {
	service := NewService(ServiceConfig{Provider: newTestProvider(), Logger: zerolog.Nop()})

	route := service.ComputeRoute(context.Background(), chatelet, gareDuNord, ProfileBike)

	if route.IsEstimated {
		t.Error("expected provider route, got estimate")
	}
	if route.DurationSeconds != 703 || route.DistanceMeters != 2810 {
		t.Errorf("unexpected route %+v", route)
	}
	if route.AscentMeters != 27 || route.DescentMeters != 2 {
		t.Errorf("expected elevation to be carried, got %+v", route)
	}
	if len(route.Path) != 2 {
		t.Errorf("expected 2 path points, got %d", len(route.Path))
	}
}

func TestService_ComputeRoute_FallsBackToEstimate(t *testing.T) {
	tests := []struct {
		name     string
		provider *mockProvider
	}{
		{
			name:     "provider error",
			provider: &mockProvider{name: "p", err: &Error{Err: ErrProviderUnavailable, Message: "down"}},
		},
		{
			name:     "empty route list",
			provider: &mockProvider{name: "p", response: &DirectionsResponse{}},
		},
	}

	direct := geo.Distance(chatelet, gareDuNord)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(ServiceConfig{Provider: tt.provider, Logger: zerolog.Nop()})

			route := service.ComputeRoute(context.Background(), chatelet, gareDuNord, "")

			if !route.IsEstimated {
				t.Fatal("expected estimated route")
			}
			if route.Profile != ProfileBike {
				t.Errorf("expected default bike profile, got %s", route.Profile)
			}
			if want := math.Round(direct / 5.56); route.DurationSeconds != want {
				t.Errorf("expected duration %v, got %v", want, route.DurationSeconds)
			}
			if math.Abs(route.DistanceMeters-direct*1.2) > 1e-6 {
				t.Errorf("expected distance %v, got %v", direct*1.2, route.DistanceMeters)
			}
			if route.Path == nil || len(route.Path) != 0 {
				t.Errorf("expected empty non-nil path, got %v", route.Path)
			}
		})
	}
}

func TestService_ComputeRoute_InvalidInputStillReturnsRoute(t *testing.T) {
	service := NewService(ServiceConfig{Provider: newTestProvider(), Logger: zerolog.Nop()})

	route := service.ComputeRoute(context.Background(), geo.Coordinate{Lat: math.NaN()}, gareDuNord, ProfileBike)
	if !route.IsEstimated {
		t.Error("expected estimated route")
	}
	if route.DurationSeconds != 0 || route.DistanceMeters != 0 {
		t.Errorf("expected zero estimate for unusable input, got %+v", route)
	}
}

func TestEstimateRoute(t *testing.T) {
	origin := geo.Coordinate{Lat: 48.85, Lng: 2.35}
	dest := geo.Coordinate{Lat: 48.86, Lng: 2.35}
	direct := geo.Distance(origin, dest)

	route := EstimateRoute(origin, dest, ProfileWalk, 1.2, 1.3)
	if route.Profile != ProfileWalk {
		t.Errorf("expected walk profile, got %s", route.Profile)
	}
	if route.DurationSeconds != math.Round(direct/1.2) {
		t.Errorf("unexpected duration %v", route.DurationSeconds)
	}
	if math.Abs(route.DistanceMeters-direct*1.3) > 1e-6 {
		t.Errorf("unexpected distance %v", route.DistanceMeters)
	}
}

func TestRouteProfile_Valid(t *testing.T) {
	for _, p := range []RouteProfile{ProfileWalk, ProfileBike, ProfileEBike} {
		if !p.Valid() {
			t.Errorf("expected %s to be valid", p)
		}
	}
	if RouteProfile("driving-car").Valid() {
		t.Error("expected driving-car to be invalid")
	}
}

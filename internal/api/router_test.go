package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velibadvisor/velibadvisor/internal/alternative"
	"github.com/velibadvisor/velibadvisor/internal/api"
	"github.com/velibadvisor/velibadvisor/internal/api/models"
	"github.com/velibadvisor/velibadvisor/internal/auth"
	"github.com/velibadvisor/velibadvisor/internal/cache"
	"github.com/velibadvisor/velibadvisor/internal/decision"
	"github.com/velibadvisor/velibadvisor/internal/geocoding"
	"github.com/velibadvisor/velibadvisor/internal/journey"
	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/internal/velib"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

var (
	chatelet   = geo.Coordinate{Lat: 48.8584, Lng: 2.3470}
	gareDuNord = geo.Coordinate{Lat: 48.8809, Lng: 2.3553}
)

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzeJourney(_ context.Context, origin, destination geo.Coordinate) (*decision.Decision, error) {
	if err := origin.Validate(); err != nil {
		return nil, errors.Join(decision.ErrInvalidInput, err)
	}
	velibSeconds := 1100
	return &decision.Decision{
		ID:           "dec_1",
		Recommend:    true,
		Reason:       "Vélib is the better option: 18min vs 22min by transit.",
		ReasonCode:   decision.ReasonVelibFaster,
		Origin:       origin,
		Destination:  destination,
		VelibSeconds: &velibSeconds,
		Alternative:  &alternative.Transport{Mode: alternative.ModeTransit, DurationSeconds: 1320},
		AnalyzedAt:   time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC),
	}, nil
}

type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, text string, here *geo.Coordinate) (geo.Coordinate, error) {
	switch {
	case geocoding.IsCurrentPosition(text):
		if here == nil {
			return geo.Coordinate{}, geocoding.ErrPositionUnavailable
		}
		return *here, nil
	case text == "Châtelet":
		return chatelet, nil
	case text == "Gare du Nord":
		return gareDuNord, nil
	case text == "offline":
		return geo.Coordinate{}, &geocoding.Error{Code: "HTTP_503", Message: "nominatim error", Err: geocoding.ErrProviderUnavailable}
	}
	return geo.Coordinate{}, geocoding.ErrAddressNotFound
}

type stubStations struct {
	err error
}

func (s stubStations) NearbyStations(_ context.Context, point geo.Coordinate, radius float64) ([]velib.Station, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []velib.Station{
		{ID: "16107", Name: "Benjamin Godard - Victor Hugo", Coordinate: point, BikesAvailable: 4, DocksAvailable: 20, DistanceMeters: radius / 10},
	}, nil
}

type stubAddresses struct{}

func (stubAddresses) Search(_ context.Context, query string) []geocoding.Place {
	if query == "nothing" {
		return []geocoding.Place{}
	}
	return []geocoding.Place{
		{DisplayName: "Gare du Nord, Paris, 75010", FullName: "Gare du Nord, Rue de Dunkerque, Paris", Coordinate: gareDuNord, Type: "station"},
	}
}

func (stubAddresses) Reverse(_ context.Context, point geo.Coordinate) (string, error) {
	if point == chatelet {
		return "Place du Châtelet, Paris", nil
	}
	return "", geocoding.ErrAddressNotFound
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

const testSigningKey = "test-secret-key-for-testing-only"

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: testSigningKey,
		Issuer:     "https://api.velibadvisor.fr",
		Audience:   "velibadvisor-admin",
	})
}

type testEnv struct {
	router   http.Handler
	cache    *cache.GStore
	registry *resilience.Registry
}

func newTestEnv(t *testing.T, mutate func(*api.RouterConfig)) *testEnv {
	t.Helper()

	store := cache.NewStore(100)
	registry := resilience.NewRegistry()
	cbConfig := resilience.DefaultCircuitBreakerConfig("opendata")
	resilience.NewClient(resilience.ClientConfig{Name: "opendata", CircuitBreaker: &cbConfig, Registry: registry})

	planner := journey.NewPlanner(journey.PlannerConfig{
		Geocoder: stubGeocoder{},
		Analyzer: stubAnalyzer{},
		History:  journey.NewInMemoryRepository(),
		Logger:   zerolog.Nop(),
	})

	cfg := api.RouterConfig{
		Version:        "test",
		BuildTime:      "2026-01-01T00:00:00Z",
		Logger:         zerolog.New(io.Discard),
		Analyzer:       stubAnalyzer{},
		Planner:        planner,
		Stations:       stubStations{},
		Addresses:      stubAddresses{},
		Cache:          store,
		Registry:       registry,
		TokenValidator: testJWTService(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &testEnv{router: api.NewRouter(cfg), cache: store, registry: registry}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ReadinessCheck_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, func(cfg *api.RouterConfig) { cfg.Database = failingPinger{} })

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusFail, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	env := newTestEnv(t, func(cfg *api.RouterConfig) { cfg.Database = failingPinger{} })
	env.cache.Set("stations_x", []velib.Station{}, time.Minute)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "postgres", status.Subsystems[0].Name)
	assert.Equal(t, models.HealthStatusFail, status.Subsystems[0].Status)

	require.Len(t, status.Providers, 1)
	assert.Equal(t, "opendata", status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
	assert.Equal(t, models.HealthStatusOK, status.Providers[0].Status)

	require.NotNil(t, status.Cache)
	assert.Equal(t, 1, status.Cache.Entries)
}

func TestRouter_AnalyzeJourney(t *testing.T) {
	env := newTestEnv(t, nil)

	req := jsonRequest(t, http.MethodPost, "/v1/journeys:analyze", models.AnalyzeRequest{
		Origin:      &models.Point{Lat: floatPtr(chatelet.Lat), Lng: floatPtr(chatelet.Lng)},
		Destination: &models.Point{Lat: floatPtr(gareDuNord.Lat), Lng: floatPtr(gareDuNord.Lng)},
	})
	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, true, d["recommend"])
	assert.Equal(t, "velib_faster", d["reasonCode"])
	assert.Equal(t, float64(1100), d["velibSeconds"])
}

func TestRouter_AnalyzeJourney_ValidationError(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		body       models.AnalyzeRequest
		wantFields []string
	}{
		{"missing destination", models.AnalyzeRequest{
			Origin: &models.Point{Lat: floatPtr(48.85), Lng: floatPtr(2.35)},
		}, []string{"destination"}},
		{"missing lng", models.AnalyzeRequest{
			Origin:      &models.Point{Lat: floatPtr(48.85)},
			Destination: &models.Point{Lat: floatPtr(48.88), Lng: floatPtr(2.35)},
		}, []string{"origin"}},
		{"latitude out of range", models.AnalyzeRequest{
			Origin:      &models.Point{Lat: floatPtr(95), Lng: floatPtr(2.35)},
			Destination: &models.Point{Lat: floatPtr(48.88), Lng: floatPtr(200)},
		}, []string{"origin", "destination"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(jsonRequest(t, http.MethodPost, "/v1/journeys:analyze", tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			problem := decodeProblem(t, w)
			var fields []string
			for _, fe := range problem.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestRouter_AnalyzeJourney_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/journeys:analyze", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_AnalyzeJourney_UnsupportedMediaType(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/journeys:analyze", bytes.NewBufferString("origin=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_PlanJourney_RecordsHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(jsonRequest(t, http.MethodPost, "/v1/journeys:plan", models.PlanRequest{From: "Châtelet", To: "Gare du Nord"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var plan journey.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, chatelet, plan.Origin)
	assert.Equal(t, gareDuNord, plan.Destination)
	require.NotNil(t, plan.Decision)
	assert.Equal(t, "dec_1", plan.Decision.ID)

	w = env.do(httptest.NewRequest(http.MethodGet, "/v1/journeys/history?limit=10", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items []journey.Entry          `json:"items"`
		Meta  models.PagedResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Châtelet", page.Items[0].From)
	assert.Equal(t, 10, page.Meta.Limit)
	assert.Nil(t, page.Meta.NextCursor)

	w = env.do(httptest.NewRequest(http.MethodGet, "/v1/journeys/history/"+page.Items[0].ID, http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	var entry journey.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "dec_1", entry.DecisionID)
}

func TestRouter_PlanJourney_CurrentPosition(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(jsonRequest(t, http.MethodPost, "/v1/journeys:plan", models.PlanRequest{
		From:            "Ma position",
		To:              "Gare du Nord",
		CurrentPosition: &models.Point{Lat: floatPtr(48.85), Lng: floatPtr(2.34)},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var plan journey.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, geo.Coordinate{Lat: 48.85, Lng: 2.34}, plan.Origin)
}

func TestRouter_PlanJourney_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       models.PlanRequest
		wantStatus int
		wantType   string
		wantField  string
	}{
		{"missing from", models.PlanRequest{To: "Gare du Nord"}, http.StatusBadRequest, models.ProblemTypeValidation, "from"},
		{"departure not found", models.PlanRequest{From: "Atlantis", To: "Gare du Nord"}, http.StatusUnprocessableEntity, models.ProblemTypeAddressNotFound, "from"},
		{"destination not found", models.PlanRequest{From: "Châtelet", To: "Atlantis"}, http.StatusUnprocessableEntity, models.ProblemTypeAddressNotFound, "to"},
		{"position unknown", models.PlanRequest{From: "Ma position", To: "Gare du Nord"}, http.StatusBadRequest, models.ProblemTypeValidation, "currentPosition"},
		{"geocoder down", models.PlanRequest{From: "offline", To: "Gare du Nord"}, http.StatusServiceUnavailable, models.ProblemTypeUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			w := env.do(jsonRequest(t, http.MethodPost, "/v1/journeys:plan", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			problem := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, problem.Type)
			if tt.wantField != "" {
				require.NotEmpty(t, problem.Errors)
				assert.Equal(t, tt.wantField, problem.Errors[0].Field)
			}
		})
	}
}

func TestRouter_History_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, limit := range []string{"0", "101", "ten"} {
		w := env.do(httptest.NewRequest(http.MethodGet, "/v1/journeys/history?limit="+limit, http.NoBody))
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestRouter_HistoryEntry_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/journeys/history/missing", http.NoBody))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_NearbyStations(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/stations/nearby?lat=48.8584&lng=2.3470", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		RadiusMeters float64         `json:"radiusMeters"`
		Items        []velib.Station `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(800), resp.RadiusMeters)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 4, resp.Items[0].BikesAvailable)
}

func TestRouter_NearbyStations_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		stationErr error
		wantStatus int
	}{
		{"missing lat", "lng=2.3", nil, http.StatusBadRequest},
		{"radius too large", "lat=48.85&lng=2.35&radius=50000", nil, http.StatusBadRequest},
		{"invalid point", "lat=91&lng=2.35", velib.ErrInvalidCoordinates, http.StatusBadRequest},
		{"provider down", "lat=48.85&lng=2.35", velib.ErrProviderUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(cfg *api.RouterConfig) { cfg.Stations = stubStations{err: tt.stationErr} })

			w := env.do(httptest.NewRequest(http.MethodGet, "/v1/stations/nearby?"+tt.query, http.NoBody))

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRouter_SearchAddresses(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/addresses:search?q=gare+du+nord", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AddressSuggestions
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "gare du nord", resp.Query)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Gare du Nord, Paris, 75010", resp.Items[0].DisplayName)

	w = env.do(httptest.NewRequest(http.MethodGet, "/v1/addresses:search?q=nothing", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)

	w = env.do(httptest.NewRequest(http.MethodGet, "/v1/addresses:search", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ReverseAddress(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/addresses:reverse?lat=48.8584&lng=2.347", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Place du Châtelet")

	w = env.do(httptest.NewRequest(http.MethodGet, "/v1/addresses:reverse?lat=10&lng=10", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/v1/addresses:reverse?lat=abc&lng=10", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_PurgeCache(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cache.Set("route_a", 1, time.Hour)
	env.cache.Set("route_b", 2, time.Hour)

	token, _, err := testJWTService().Issue("ops-alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/cache:purge", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.CachePurgeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Purged)
	assert.Equal(t, "ops-alice", result.PurgedBy)
	assert.Zero(t, env.cache.Len())
}

func TestRouter_PurgeCache_RequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cache.Set("route_a", 1, time.Hour)

	w := env.do(httptest.NewRequest(http.MethodPost, "/v1/admin/cache:purge", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, env.cache.Len())
}

func TestRouter_AdminNotMountedWithoutValidator(t *testing.T) {
	env := newTestEnv(t, func(cfg *api.RouterConfig) { cfg.TokenValidator = nil })

	w := env.do(httptest.NewRequest(http.MethodPost, "/v1/admin/cache:purge", http.NoBody))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RequireTLS(t *testing.T) {
	env := newTestEnv(t, func(cfg *api.RouterConfig) { cfg.RequireTLS = true })

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := env.do(req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_AnalysisRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *api.RouterConfig) {
		cfg.RateLimits.Analysis.RequestLimit = 1
		cfg.RateLimits.Analysis.WindowLength = time.Minute
	})

	body := models.AnalyzeRequest{
		Origin:      &models.Point{Lat: floatPtr(chatelet.Lat), Lng: floatPtr(chatelet.Lng)},
		Destination: &models.Point{Lat: floatPtr(gareDuNord.Lat), Lng: floatPtr(gareDuNord.Lng)},
	}
	assert.Equal(t, http.StatusOK, env.do(jsonRequest(t, http.MethodPost, "/v1/journeys:analyze", body)).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(jsonRequest(t, http.MethodPost, "/v1/journeys:analyze", body)).Code)

	// Other categories keep their own budget.
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/v1/addresses:search?q=gare", http.NoBody)).Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Contains(t, w.Header().Get("X-Request-Id"), "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := env.do(req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
)

// registeredClient creates a client that trips after one failure.
func registeredClient(registry *resilience.Registry, name string) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = registry
	cfg.MaxRetries = 1
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = time.Millisecond
	cfg.CircuitBreaker.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 1
	}
	return resilience.NewClient(cfg)
}

func call(t *testing.T, client *resilience.Client, url string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	if resp, _ := client.Do(req); resp != nil {
		resp.Body.Close()
	}
}

func unavailableServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRegistry_Register(t *testing.T) {
	registry := resilience.NewRegistry()
	client := registeredClient(registry, "opendata")

	assert.Equal(t, "opendata", client.Name())
	assert.Equal(t, 1, registry.ProviderCount())

	health := registry.GetHealth("opendata")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	assert.Nil(t, registry.GetHealth("citymapper"))
}

func TestRegistry_Record(t *testing.T) {
	registry := resilience.NewRegistry()
	registeredClient(registry, "ors")

	registry.Record("ors", nil)
	health := registry.GetHealth("ors")
	require.NotNil(t, health.LastSuccessAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
	assert.Empty(t, health.LastError)

	registry.Record("ors", errors.New("quota exceeded"))
	health = registry.GetHealth("ors")
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, "quota exceeded", health.LastError)
	assert.NotNil(t, health.LastSuccessAt, "success is kept after a failure")

	// Unknown providers are ignored.
	registry.Record("citymapper", nil)
	assert.Equal(t, 1, registry.ProviderCount())
}

func TestRegistry_GetAllHealth_SortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	registeredClient(registry, "ors")
	registeredClient(registry, "nominatim")
	registeredClient(registry, "opendata")

	var names []string
	for _, h := range registry.GetAllHealth() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"nominatim", "opendata", "ors"}, names)
}

func TestProviderHealth_Status(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  string
	}{
		{gobreaker.StateClosed, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded},
		{gobreaker.StateOpen, resilience.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.want, h.Status())
			assert.Equal(t, tt.state == gobreaker.StateClosed, h.IsHealthy())
			assert.Equal(t, tt.state == gobreaker.StateHalfOpen, h.IsDegraded())
			assert.Equal(t, tt.state == gobreaker.StateOpen, h.IsUnhealthy())
		})
	}
}

func TestRegistry_Status(t *testing.T) {
	server := unavailableServer(t)

	registry := resilience.NewRegistry()
	assert.Equal(t, resilience.StatusHealthy, registry.Status(), "empty registry")

	opendata := registeredClient(registry, "opendata")
	nominatim := registeredClient(registry, "nominatim")
	assert.Equal(t, resilience.StatusHealthy, registry.Status())

	call(t, opendata, server.URL)
	assert.Equal(t, gobreaker.StateOpen, opendata.CircuitBreakerState())
	assert.Equal(t, resilience.StatusDegraded, registry.Status())

	call(t, nominatim, server.URL)
	assert.Equal(t, resilience.StatusUnhealthy, registry.Status())
}

func TestClient_RecordsOutcomeInRegistry(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	registry := resilience.NewRegistry()
	client := registeredClient(registry, "nominatim")

	call(t, client, ok.URL)
	health := registry.GetHealth("nominatim")
	assert.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	call(t, client, unavailableServer(t).URL)
	health = registry.GetHealth("nominatim")
	assert.NotNil(t, health.LastFailureAt)
	assert.NotEmpty(t, health.LastError)
}

package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velibadvisor/velibadvisor/internal/api/middleware"
	"github.com/velibadvisor/velibadvisor/internal/api/models"
)

// sendFrom issues a GET from addr and returns the recorder.
func sendFrom(handler http.Handler, path, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 3,
		WindowLength: time.Minute,
	})(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, sendFrom(handler, "/v1/addresses:search", "10.0.0.1:5000").Code, "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(handler, "/v1/addresses:search", "10.0.0.1:5001").Code,
		"the port is not part of the key")

	// Each address has its own budget.
	assert.Equal(t, http.StatusOK, sendFrom(handler, "/v1/addresses:search", "10.0.0.2:5000").Code)
}

func TestRateLimitByOperator_KeysByOperator(t *testing.T) {
	cfg := middleware.RateLimitConfig{
		RequestLimit: 2,
		WindowLength: time.Minute,
	}

	handler := middleware.Auth(stubValidator{})(
		middleware.RateLimitByOperator(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	send := func(operator, ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/cache:purge", http.NoBody)
		req.RemoteAddr = ip
		req.Header.Set("Authorization", "Bearer "+operator)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// The same operator from two addresses shares one budget.
	assert.Equal(t, http.StatusOK, send("ops-alice", "192.168.1.1:12345"))
	assert.Equal(t, http.StatusOK, send("ops-alice", "192.168.1.2:12345"))
	assert.Equal(t, http.StatusTooManyRequests, send("ops-alice", "192.168.1.3:12345"))

	// Another operator from an already used address is not limited.
	assert.Equal(t, http.StatusOK, send("ops-bob", "192.168.1.1:12345"))
}

func TestRateLimitByOperator_FallsBackToIP(t *testing.T) {
	cfg := middleware.RateLimitConfig{
		RequestLimit: 1,
		WindowLength: time.Minute,
	}

	handler := middleware.RateLimitByOperator(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1:1000"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2:1000"))
}

func TestRateLimitExceeded_Problem(t *testing.T) {
	handler := middleware.RequestID(
		middleware.RateLimitByIP(middleware.RateLimitConfig{
			RequestLimit: 1,
			WindowLength: 30 * time.Second,
		})(okHandler()),
	)

	require.Equal(t, http.StatusOK, sendFrom(handler, "/v1/journeys:analyze", "203.0.113.1:1").Code)
	rec := sendFrom(handler, "/v1/journeys:analyze", "203.0.113.1:1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeTooManyRequests, problem.Type)
	assert.Equal(t, "/v1/journeys:analyze", problem.Instance)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), problem.TraceID)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 30, middleware.AnalysisRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.AnalysisRateLimit.WindowLength)

	assert.Equal(t, 120, middleware.SearchRateLimit.RequestLimit)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, 10, middleware.AdminRateLimit.RequestLimit)
}

func TestRateLimits_WithDefaults(t *testing.T) {
	limits := middleware.RateLimits{
		Search: middleware.RateLimitConfig{RequestLimit: 5, WindowLength: time.Second},
	}.WithDefaults()

	assert.Equal(t, middleware.AnalysisRateLimit, limits.Analysis)
	assert.Equal(t, 5, limits.Search.RequestLimit)
	assert.Equal(t, time.Second, limits.Search.WindowLength)
	assert.Equal(t, middleware.AdminRateLimit, limits.Admin)
}

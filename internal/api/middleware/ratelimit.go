package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/velibadvisor/velibadvisor/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per window.
	RequestLimit int `koanf:"request_limit"`
	// WindowLength is the window duration.
	WindowLength time.Duration `koanf:"window_length"`
}

// Default rate limit configurations.
var (
	// AnalysisRateLimit applies to journey analysis and planning (30 req/min).
	AnalysisRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// SearchRateLimit applies to address autocomplete, called per keystroke (120 req/min).
	SearchRateLimit = RateLimitConfig{
		RequestLimit: 120,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to other endpoints (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}

	// AdminRateLimit applies to admin endpoints (10 req/min).
	AdminRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}
)

// RateLimits groups the limits of each endpoint category.
type RateLimits struct {
	Analysis RateLimitConfig `koanf:"analysis"`
	Search   RateLimitConfig `koanf:"search"`
	Standard RateLimitConfig `koanf:"standard"`
	Admin    RateLimitConfig `koanf:"admin"`
}

// DefaultRateLimits returns the preset limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Analysis: AnalysisRateLimit,
		Search:   SearchRateLimit,
		Standard: StandardRateLimit,
		Admin:    AdminRateLimit,
	}
}

// WithDefaults fills unset categories from the presets.
func (l RateLimits) WithDefaults() RateLimits {
	d := DefaultRateLimits()
	for _, pair := range []struct{ set, def *RateLimitConfig }{
		{&l.Analysis, &d.Analysis},
		{&l.Search, &d.Search},
		{&l.Standard, &d.Standard},
		{&l.Admin, &d.Admin},
	} {
		if pair.set.RequestLimit <= 0 || pair.set.WindowLength <= 0 {
			*pair.set = *pair.def
		}
	}
	return l
}

// RateLimitByIP creates a rate limiter middleware keyed by client IP.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

// RateLimitByOperator creates a rate limiter keyed by the authenticated
// operator, falling back to the client IP.
func RateLimitByOperator(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByOperatorOrIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

func keyByOperatorOrIP(r *http.Request) (string, error) {
	if operator := GetOperator(r.Context()); operator != "" {
		return "operator:" + operator, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitExceeded writes an RFC7807 problem with a Retry-After of one window.
func limitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path

		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}

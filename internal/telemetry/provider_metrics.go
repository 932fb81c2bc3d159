package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const providerMeterName = "github.com/velibadvisor/velibadvisor/internal/telemetry"

// ProviderMetrics records latency and cache outcomes of external provider
// calls. A nil *ProviderMetrics records nothing.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	fallbacks       metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on the global meter
// returned by Meter.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := Meter(providerMeterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	fallbacks, err := meter.Int64Counter(
		"provider.fallback.total",
		metric.WithDescription("Number of degraded results served instead of provider data"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		fallbacks:       fallbacks,
	}, nil
}

func providerAttrs(provider, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}

// RecordRequest records one provider request.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := providerAttrs(provider, operation)
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detached from the request context so cancellation does not drop samples.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCache records a cache hit or miss.
func (m *ProviderMetrics) RecordCache(provider, operation string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(providerAttrs(provider, operation)...)
	if hit {
		m.cacheHits.Add(context.Background(), 1, attrs)
		return
	}
	m.cacheMisses.Add(context.Background(), 1, attrs)
}

// RecordFallback records that a degraded value replaced provider data.
func (m *ProviderMetrics) RecordFallback(provider, operation string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/velib"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// StationRefresher reloads the stations around a point into the cache.
type StationRefresher interface {
	Refresh(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]velib.Station, error)
}

// WarmupJob refreshes the station cache around the configured hubs.
type WarmupJob struct {
	config   WarmupConfig
	stations StationRefresher
	logger   zerolog.Logger

	metrics *WarmupMetrics
}

// WarmupMetrics tracks warm-up job statistics.
type WarmupMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns      int64
	SuccessfulHubs int64
	FailedHubs     int64
	Stations       int64
	EmptyHubs      int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WarmupJobConfig holds configuration for creating a WarmupJob.
type WarmupJobConfig struct {
	Config   WarmupConfig
	Stations StationRefresher
	Logger   zerolog.Logger
}

// NewWarmupJob creates a new warm-up job.
func NewWarmupJob(cfg WarmupJobConfig) *WarmupJob {
	return &WarmupJob{
		config:   cfg.Config.WithDefaults(),
		stations: cfg.Stations,
		logger:   cfg.Logger,
		metrics:  &WarmupMetrics{},
	}
}

// Config returns the effective configuration.
func (j *WarmupJob) Config() WarmupConfig {
	return j.config
}

// WarmupResult contains the result of a warm-up run.
type WarmupResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalHubs  int
	Successful int
	Failed     int
	Stations   int
	EmptyHubs  int
	Errors     []WarmupError
}

// Healthy reports whether at least half of the hubs were refreshed.
func (r *WarmupResult) Healthy() bool {
	return r.Failed <= r.Successful
}

// WarmupError represents a failed hub refresh.
type WarmupError struct {
	Hub   string
	Error string
}

// Run refreshes every configured hub.
func (j *WarmupJob) Run(ctx context.Context) *WarmupResult {
	return j.RunHubs(ctx, j.config.OrderedHubs())
}

// RunHubs refreshes the given hubs with the configured concurrency.
func (j *WarmupJob) RunHubs(ctx context.Context, hubs []Hub) *WarmupResult {
	startTime := time.Now()
	result := &WarmupResult{
		StartTime: startTime,
		TotalHubs: len(hubs),
	}

	j.logger.Info().
		Int("total_hubs", result.TotalHubs).
		Int("concurrency", j.config.Concurrency).
		Msg("starting station warm-up")

	hubsChan := make(chan Hub, len(hubs))
	resultsChan := make(chan hubResult, len(hubs))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.hubWorker(ctx, hubsChan, resultsChan)
		}()
	}

	for _, h := range hubs {
		hubsChan <- h
	}
	close(hubsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for hr := range resultsChan {
		if hr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, WarmupError{Hub: hr.hub.Name, Error: hr.err.Error()})
			continue
		}
		result.Successful++
		result.Stations += hr.stations
		if hr.stations == 0 {
			result.EmptyHubs++
		}
	}

	// Hubs never picked up because the context ended count as failures.
	if skipped := result.TotalHubs - result.Successful - result.Failed; skipped > 0 {
		reason := "not started"
		if err := context.Cause(ctx); err != nil {
			reason = err.Error()
		}
		result.Failed += skipped
		result.Errors = append(result.Errors, WarmupError{Hub: "*", Error: reason})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("stations", result.Stations).
		Int("empty_hubs", result.EmptyHubs).
		Msg("station warm-up completed")

	return result
}

type hubResult struct {
	hub      Hub
	stations int
	err      error
}

func (j *WarmupJob) hubWorker(ctx context.Context, hubs <-chan Hub, results chan<- hubResult) {
	for hub := range hubs {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.warmHub(ctx, hub)
		}
	}
}

func (j *WarmupJob) warmHub(ctx context.Context, hub Hub) hubResult {
	hubCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stations, err := j.stations.Refresh(hubCtx, hub.Point(), j.config.RadiusMeters)
	if err != nil {
		j.logger.Warn().Err(err).Str("hub", hub.Name).Msg("failed to refresh hub stations")
		return hubResult{hub: hub, err: err}
	}

	if len(stations) == 0 {
		j.logger.Warn().Str("hub", hub.Name).Msg("no stations around hub")
	}
	return hubResult{hub: hub, stations: len(stations)}
}

func (j *WarmupJob) updateMetrics(result *WarmupResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulHubs += int64(result.Successful)
	j.metrics.FailedHubs += int64(result.Failed)
	j.metrics.Stations += int64(result.Stations)
	j.metrics.EmptyHubs += int64(result.EmptyHubs)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmupJob) GetMetrics() WarmupMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmupMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		SuccessfulHubs:  j.metrics.SuccessfulHubs,
		FailedHubs:      j.metrics.FailedHubs,
		Stations:        j.metrics.Stations,
		EmptyHubs:       j.metrics.EmptyHubs,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *WarmupJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful_hubs":   m.SuccessfulHubs,
		"failed_hubs":       m.FailedHubs,
		"stations":          m.Stations,
		"empty_hubs":        m.EmptyHubs,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
)

// Job types carried by JobMessage.
const (
	JobStationWarmup = "station_warmup"
	JobHealthCheck   = "health_check"
)

var (
	// ErrUnknownJob is returned for messages with an unsupported job type.
	ErrUnknownJob = errors.New("unknown job type")

	// ErrMalformedMessage is returned for messages that are not valid JSON.
	ErrMalformedMessage = errors.New("malformed job message")
)

// JobMessage is the payload of a worker job message.
type JobMessage struct {
	JobType string `json:"job_type"`
	// Hubs restricts a warm-up to the named hubs.
	Hubs []string `json:"hubs,omitempty"`
	// CheckOnly makes a health check skip the station probe.
	CheckOnly bool `json:"check_only,omitempty"`
}

// Runner executes worker jobs.
type Runner struct {
	warmup   *WarmupJob
	registry *resilience.Registry
	logger   zerolog.Logger
}

// RunnerConfig holds configuration for creating a Runner.
type RunnerConfig struct {
	Warmup *WarmupJob
	// Registry is consulted by health checks. Optional.
	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// NewRunner creates a new job runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		warmup:   cfg.Warmup,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
}

// Handle decodes a raw message and runs its job.
func (r *Runner) Handle(ctx context.Context, data []byte) (string, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return msg.JobType, r.Dispatch(ctx, msg)
}

// Dispatch runs the job named by msg.
func (r *Runner) Dispatch(ctx context.Context, msg JobMessage) error {
	switch msg.JobType {
	case JobStationWarmup:
		return r.StationWarmup(ctx, msg.Hubs)
	case JobHealthCheck:
		return r.HealthCheck(ctx, msg.CheckOnly)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// StationWarmup refreshes the named hubs, or all of them. It fails when more
// hubs failed than succeeded.
func (r *Runner) StationWarmup(ctx context.Context, hubNames []string) error {
	hubs := r.warmup.Config().Select(hubNames)
	if len(hubs) == 0 {
		r.logger.Warn().Strs("hubs", hubNames).Msg("no matching hubs to warm up")
		return nil
	}

	result := r.warmup.RunHubs(ctx, hubs)
	if !result.Healthy() {
		return fmt.Errorf("too many warm-up failures: %d/%d", result.Failed, result.TotalHubs)
	}
	return nil
}

// HealthCheck probes the highest-priority hub and the provider registry.
func (r *Runner) HealthCheck(ctx context.Context, checkOnly bool) error {
	r.logger.Debug().Msg("running health check")

	if r.registry != nil && r.registry.Status() == resilience.StatusUnhealthy {
		return errors.New("health check failed: all providers unhealthy")
	}
	if checkOnly {
		return nil
	}

	hubs := r.warmup.Config().OrderedHubs()
	if len(hubs) == 0 {
		return nil
	}

	result := r.warmup.RunHubs(ctx, hubs[:1])
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}

	r.logger.Debug().Msg("health check passed")
	return nil
}

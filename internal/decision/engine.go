package decision

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/velibadvisor/velibadvisor/internal/alternative"
	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/internal/routing"
	"github.com/velibadvisor/velibadvisor/internal/telemetry"
	"github.com/velibadvisor/velibadvisor/internal/velib"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

const instrumentationName = "github.com/velibadvisor/velibadvisor/internal/decision"

// EngineConfig holds the collaborators and policy of an Engine.
type EngineConfig struct {
	Stations     StationFinder
	Routes       RouteComputer
	Alternatives AlternativeEstimator

	// Policy is the recommendation policy, completed by WithDefaults.
	Policy Config

	// Logger for analysis outcomes.
	Logger zerolog.Logger
}

// Engine analyzes journeys. It keeps no per-analysis state and is safe for
// concurrent use.
type Engine struct {
	stations     StationFinder
	routes       RouteComputer
	alternatives AlternativeEstimator
	policy       Config
	tracer       trace.Tracer
	analyses     metric.Int64Counter
	logger       zerolog.Logger
	now          func() time.Time
}

// NewEngine creates a new decision engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		stations:     cfg.Stations,
		routes:       cfg.Routes,
		alternatives: cfg.Alternatives,
		policy:       cfg.Policy.WithDefaults(),
		tracer:       telemetry.Tracer(instrumentationName),
		logger:       cfg.Logger,
		now:          time.Now,
	}

	analyses, err := telemetry.Meter(instrumentationName).Int64Counter(
		"decision.analysis.total",
		metric.WithDescription("Number of journey analyses by outcome"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create decision counter")
	} else {
		e.analyses = analyses
	}

	return e
}

// Policy returns the effective policy.
func (e *Engine) Policy() Config {
	return e.policy
}

// fetched holds the settled results of the concurrent lookups.
type fetched struct {
	departures  []velib.Station
	arrivals    []velib.Station
	route       routing.RouteResult
	alternative *alternative.Transport
	degraded    []string
}

// AnalyzeJourney decides whether to take a Vélib from origin to destination.
// Only malformed coordinates fail with ErrInvalidInput; provider failures,
// timeouts and panics all yield a non-recommended Decision.
func (e *Engine) AnalyzeJourney(ctx context.Context, origin, destination geo.Coordinate) (decision *Decision, err error) {
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("%w: origin: %w", ErrInvalidInput, err)
	}
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("%w: destination: %w", ErrInvalidInput, err)
	}

	ctx, span := e.tracer.Start(ctx, "decision.AnalyzeJourney",
		trace.WithAttributes(
			attribute.String("origin", origin.String()),
			attribute.String("destination", destination.String()),
		),
	)
	defer span.End()

	d := &Decision{
		ID:                   uuid.NewString(),
		Origin:               origin,
		Destination:          destination,
		DirectDistanceMeters: geo.Distance(origin, destination),
		DepartureStations:    []velib.Station{},
		ArrivalStations:      []velib.Station{},
		AnalyzedAt:           e.now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("decision_id", d.ID).
				Msg("journey analysis panicked")
			span.SetStatus(codes.Error, "panic")
			decision = &Decision{
				ID:                d.ID,
				Reason:            fmt.Sprintf("analysis failed: %v", r),
				ReasonCode:        ReasonFailure,
				Error:             true,
				Origin:            origin,
				Destination:       destination,
				DepartureStations: []velib.Station{},
				ArrivalStations:   []velib.Station{},
				AnalyzedAt:        d.AnalyzedAt,
			}
			err = nil
		}
		e.record(ctx, span, decision)
	}()

	e.analyze(ctx, d)
	return d, nil
}

func (e *Engine) analyze(ctx context.Context, d *Decision) {
	p := e.policy

	switch {
	case d.DirectDistanceMeters < p.MinDistanceMeters:
		d.conclude(ReasonTooShort, "too short, walk instead")
		d.Alternative = alternative.WalkAt(d.DirectDistanceMeters, p.WalkingSpeed)
		return

	case d.DirectDistanceMeters > p.MaxDistanceMeters:
		d.conclude(ReasonTooLong, "too long for bike-share")
		d.Alternative, _ = e.estimateAlternative(ctx, d.Origin, d.Destination)
		return
	}

	f := e.fetch(ctx, d.Origin, d.Destination)
	d.Alternative = f.alternative
	d.Degraded = f.degraded

	switch {
	case len(f.departures) == 0:
		d.conclude(ReasonNoDepartureStation, "no station near departure")
		return
	case len(f.arrivals) == 0:
		d.conclude(ReasonNoArrivalStation, "no station near arrival")
		return
	}

	d.DepartureStations = p.BestStations(f.departures, velib.Bikes)
	d.ArrivalStations = p.BestStations(f.arrivals, velib.Docks)

	switch {
	case len(d.DepartureStations) == 0:
		d.conclude(ReasonNoBikes, "no bikes available")
		return
	case len(d.ArrivalStations) == 0:
		d.conclude(ReasonNoDocks, "no docks available")
		return
	}

	route := f.route
	d.Route = &route

	departure, arrival := d.DepartureStations[0], d.ArrivalStations[0]
	breakdown := p.VelibTime(route, departure, arrival)
	total := breakdown.Total()
	d.Breakdown = &breakdown
	d.VelibSeconds = &total

	hill := ""
	if route.AscentMeters > p.HillAscentMeters {
		hill = fmt.Sprintf(" The climb is significant (+%dm).", int(math.Round(route.AscentMeters)))
	}

	if d.Alternative == nil {
		d.Recommend = true
		d.conclude(ReasonNoAlternative, fmt.Sprintf("Vélib is the only estimated option: %s.%s",
			describe(breakdown), hill))
		return
	}

	alt := d.Alternative
	d.Recommend = ShouldRecommend(float64(total), float64(alt.DurationSeconds),
		departure.BikesAvailable, arrival.DocksAvailable)

	if d.Recommend {
		d.conclude(ReasonVelibFaster, fmt.Sprintf("Vélib is the better option: %s vs %s by %s.%s",
			describe(breakdown), geo.FormatDuration(float64(alt.DurationSeconds)), alt.Mode, hill))
		return
	}
	d.conclude(ReasonAlternativeFaster, fmt.Sprintf("%s is the better option: %s vs %s by Vélib.%s",
		modeLabel(alt.Mode), geo.FormatDuration(float64(alt.DurationSeconds)), describe(breakdown), hill))
}

// fetch runs the four lookups concurrently. Each one is bounded by its own
// deadline and settles to an empty value on failure without cancelling the
// others.
func (e *Engine) fetch(ctx context.Context, origin, destination geo.Coordinate) fetched {
	var (
		f                                fetched
		g                                errgroup.Group
		depErr, arrErr, routeErr, altErr error
	)
	radius := e.policy.SearchRadiusMeters
	timeout := e.policy.CallTimeout

	g.Go(func() error {
		f.departures, depErr = traced(ctx, e.tracer, TaskDepartureStations, timeout, []velib.Station{},
			func(ctx context.Context) ([]velib.Station, error) {
				return e.stations.NearbyStations(ctx, origin, radius)
			})
		return nil
	})

	g.Go(func() error {
		f.arrivals, arrErr = traced(ctx, e.tracer, TaskArrivalStations, timeout, []velib.Station{},
			func(ctx context.Context) ([]velib.Station, error) {
				return e.stations.NearbyStations(ctx, destination, radius)
			})
		return nil
	})

	g.Go(func() error {
		estimate := routing.EstimateRoute(origin, destination, routing.ProfileBike,
			routing.DefaultEstimateSpeed, routing.DefaultDetourFactor)
		f.route, routeErr = traced(ctx, e.tracer, TaskRoute, timeout, estimate,
			func(ctx context.Context) (routing.RouteResult, error) {
				return e.routes.ComputeRoute(ctx, origin, destination, routing.ProfileBike), nil
			})
		return nil
	})

	g.Go(func() error {
		f.alternative, altErr = e.estimateAlternative(ctx, origin, destination)
		return nil
	})

	_ = g.Wait()

	for _, task := range []struct {
		name string
		err  error
	}{
		{TaskDepartureStations, depErr},
		{TaskArrivalStations, arrErr},
		{TaskRoute, routeErr},
		{TaskAlternative, altErr},
	} {
		if task.err != nil {
			e.logger.Warn().Err(task.err).Str("task", task.name).Msg("lookup failed, continuing without it")
			f.degraded = append(f.degraded, task.name)
		}
	}

	return f
}

func (e *Engine) estimateAlternative(ctx context.Context, origin, destination geo.Coordinate) (*alternative.Transport, error) {
	return traced(ctx, e.tracer, TaskAlternative, e.policy.CallTimeout, nil,
		func(ctx context.Context) (*alternative.Transport, error) {
			return e.alternatives.Estimate(ctx, origin, destination)
		})
}

// traced runs fn through resilience.Settle inside its own span.
func traced[T any](ctx context.Context, tracer trace.Tracer, name string, timeout time.Duration, fallback T, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "decision."+name)
	defer span.End()

	v, err := resilience.Settle(ctx, timeout, fallback, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

func (e *Engine) record(ctx context.Context, span trace.Span, d *Decision) {
	if d == nil {
		return
	}

	span.SetAttributes(
		attribute.String("decision.id", d.ID),
		attribute.Bool("decision.recommend", d.Recommend),
		attribute.String("decision.reason_code", string(d.ReasonCode)),
	)

	if e.analyses != nil {
		e.analyses.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("recommend", d.Recommend),
			attribute.String("reason_code", string(d.ReasonCode)),
		))
	}

	event := e.logger.Info().
		Str("decision_id", d.ID).
		Bool("recommend", d.Recommend).
		Str("reason_code", string(d.ReasonCode)).
		Float64("direct_distance_m", math.Round(d.DirectDistanceMeters))
	if d.VelibSeconds != nil {
		event = event.Int("velib_seconds", *d.VelibSeconds)
	}
	if d.Alternative != nil {
		event = event.Int("alternative_seconds", d.Alternative.DurationSeconds)
	}
	if len(d.Degraded) > 0 {
		event = event.Strs("degraded", d.Degraded)
	}
	event.Msg("journey analyzed")
}

func (d *Decision) conclude(code ReasonCode, reason string) {
	d.ReasonCode = code
	d.Reason = reason
}

// describe renders "27min (cycling 15min + walking 10min + buffer 2min)".
func describe(b Breakdown) string {
	return fmt.Sprintf("%s (cycling %s + walking %s + buffer %s)",
		geo.FormatDuration(float64(b.Total())),
		geo.FormatDuration(float64(b.CyclingSeconds)),
		geo.FormatDuration(float64(b.WalkSeconds())),
		geo.FormatDuration(float64(b.BufferSeconds)))
}

func modeLabel(m alternative.Mode) string {
	switch m {
	case alternative.ModeWalk:
		return "Walking"
	case alternative.ModeFastTransit:
		return "Fast transit"
	default:
		return "Public transit"
	}
}

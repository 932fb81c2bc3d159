package journey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/velibadvisor/velibadvisor/internal/decision"
	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// Geocoder resolves an address or a current-position sentinel.
type Geocoder interface {
	Geocode(ctx context.Context, text string, here *geo.Coordinate) (geo.Coordinate, error)
}

// Analyzer decides on a journey between two coordinates.
type Analyzer interface {
	AnalyzeJourney(ctx context.Context, origin, destination geo.Coordinate) (*decision.Decision, error)
}

// PlannerConfig holds configuration for the planner.
type PlannerConfig struct {
	Geocoder Geocoder
	Analyzer Analyzer

	// History records analyzed journeys. Optional.
	History Repository

	// GeocodeTimeout bounds each address resolution (default: 5s).
	GeocodeTimeout time.Duration

	// Logger for planner operations.
	Logger zerolog.Logger
}

// Planner turns two addresses into a decision.
type Planner struct {
	geocoder       Geocoder
	analyzer       Analyzer
	history        Repository
	geocodeTimeout time.Duration
	logger         zerolog.Logger
}

// NewPlanner creates a new journey planner.
func NewPlanner(cfg PlannerConfig) *Planner {
	timeout := cfg.GeocodeTimeout
	if timeout == 0 {
		timeout = resilience.DefaultCallTimeout
	}

	return &Planner{
		geocoder:       cfg.Geocoder,
		analyzer:       cfg.Analyzer,
		history:        cfg.History,
		geocodeTimeout: timeout,
		logger:         cfg.Logger,
	}
}

// Plan resolves both addresses concurrently and analyzes the journey.
// Resolution failures wrap ErrDepartureNotFound or ErrDestinationNotFound,
// departure first when both fail. Recording the history is best effort.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	var (
		origin, destination geo.Coordinate
		fromErr, toErr      error
		g                   errgroup.Group
	)

	g.Go(func() error {
		origin, fromErr = p.geocode(ctx, req.From, req.Here)
		return nil
	})
	g.Go(func() error {
		destination, toErr = p.geocode(ctx, req.To, req.Here)
		return nil
	})
	_ = g.Wait()

	if fromErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDepartureNotFound, fromErr)
	}
	if toErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDestinationNotFound, toErr)
	}

	d, err := p.analyzer.AnalyzeJourney(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		From:        req.From,
		To:          req.To,
		Origin:      origin,
		Destination: destination,
		Decision:    d,
	}

	p.record(ctx, plan)
	return plan, nil
}

func (p *Planner) geocode(ctx context.Context, text string, here *geo.Coordinate) (geo.Coordinate, error) {
	return resilience.Call(ctx, p.geocodeTimeout, func(ctx context.Context) (geo.Coordinate, error) {
		return p.geocoder.Geocode(ctx, text, here)
	})
}

func (p *Planner) record(ctx context.Context, plan *Plan) {
	if p.history == nil || plan.Decision.Error {
		return
	}

	entry := NewEntry(uuid.NewString(), plan)
	if err := p.history.Save(ctx, entry); err != nil {
		p.logger.Warn().Err(err).Str("decision_id", plan.Decision.ID).Msg("failed to record journey history")
	}
}

// History returns a page of analyzed journeys, newest first.
func (p *Planner) History(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if p.history == nil {
		return &ListResult{Items: []*Entry{}}, nil
	}
	return p.history.List(ctx, opts)
}

// HistoryEntry returns one analyzed journey.
func (p *Planner) HistoryEntry(ctx context.Context, id string) (*Entry, error) {
	if p.history == nil {
		return nil, ErrEntryNotFound
	}
	return p.history.Get(ctx, id)
}

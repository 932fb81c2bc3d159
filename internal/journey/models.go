// Package journey plans a trip from two free-text addresses and keeps a
// history of analyzed journeys.
package journey

import (
	"errors"
	"time"

	"github.com/velibadvisor/velibadvisor/internal/decision"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// Planner errors. Both wrap the underlying geocoding failure.
var (
	ErrDepartureNotFound   = errors.New("departure address not found")
	ErrDestinationNotFound = errors.New("destination address not found")
)

// ErrEntryNotFound is returned when a history entry does not exist.
var ErrEntryNotFound = errors.New("history entry not found")

// Request is a journey between two addresses. Either address may be a
// current-position sentinel, resolved to Here.
type Request struct {
	From string
	To   string
	Here *geo.Coordinate
}

// Plan is a resolved and analyzed journey.
type Plan struct {
	From        string             `json:"from"`
	To          string             `json:"to"`
	Origin      geo.Coordinate     `json:"origin"`
	Destination geo.Coordinate     `json:"destination"`
	Decision    *decision.Decision `json:"decision"`
}

// Entry is one analyzed journey in the history.
type Entry struct {
	ID                 string              `json:"id"`
	DecisionID         string              `json:"decisionId"`
	From               string              `json:"from"`
	To                 string              `json:"to"`
	Origin             geo.Coordinate      `json:"origin"`
	Destination        geo.Coordinate      `json:"destination"`
	Recommend          bool                `json:"recommend"`
	ReasonCode         decision.ReasonCode `json:"reasonCode"`
	VelibSeconds       *int                `json:"velibSeconds,omitempty"`
	AlternativeMode    string              `json:"alternativeMode,omitempty"`
	AlternativeSeconds *int                `json:"alternativeSeconds,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// NewEntry summarizes a decision for the history.
func NewEntry(id string, plan *Plan) *Entry {
	d := plan.Decision
	e := &Entry{
		ID:           id,
		DecisionID:   d.ID,
		From:         plan.From,
		To:           plan.To,
		Origin:       plan.Origin,
		Destination:  plan.Destination,
		Recommend:    d.Recommend,
		ReasonCode:   d.ReasonCode,
		VelibSeconds: d.VelibSeconds,
		CreatedAt:    d.AnalyzedAt,
	}
	if d.Alternative != nil {
		seconds := d.Alternative.DurationSeconds
		e.AlternativeMode = string(d.Alternative.Mode)
		e.AlternativeSeconds = &seconds
	}
	return e
}

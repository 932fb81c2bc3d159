package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/api/models"
	"github.com/velibadvisor/velibadvisor/internal/api/response"
	"github.com/velibadvisor/velibadvisor/internal/decision"
	"github.com/velibadvisor/velibadvisor/internal/geocoding"
	"github.com/velibadvisor/velibadvisor/internal/journey"
	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// maxHistoryLimit caps the history page size.
const maxHistoryLimit = 100

// JourneyAnalyzer decides on a journey between two coordinates.
type JourneyAnalyzer interface {
	AnalyzeJourney(ctx context.Context, origin, destination geo.Coordinate) (*decision.Decision, error)
}

// JourneyPlanner plans journeys between addresses and keeps their history.
type JourneyPlanner interface {
	Plan(ctx context.Context, req journey.Request) (*journey.Plan, error)
	History(ctx context.Context, opts journey.ListOptions) (*journey.ListResult, error)
	HistoryEntry(ctx context.Context, id string) (*journey.Entry, error)
}

// JourneyHandler handles journey analysis endpoints.
type JourneyHandler struct {
	analyzer JourneyAnalyzer
	planner  JourneyPlanner
	logger   zerolog.Logger
}

// NewJourneyHandler creates a new JourneyHandler.
func NewJourneyHandler(analyzer JourneyAnalyzer, planner JourneyPlanner, logger zerolog.Logger) *JourneyHandler {
	return &JourneyHandler{analyzer: analyzer, planner: planner, logger: logger}
}

// historyPage is the response of GET /v1/journeys/history.
type historyPage struct {
	Items []*journey.Entry         `json:"items"`
	Meta  models.PagedResponseMeta `json:"meta"`
}

// Analyze handles POST /v1/journeys:analyze - decide between two coordinates.
func (h *JourneyHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var input models.AnalyzeRequest
	if !response.DecodeJSON(w, r, &input) {
		return
	}

	origin, originErrs := coordinate("origin", input.Origin)
	destination, destErrs := coordinate("destination", input.Destination)
	if fieldErrs := append(originErrs, destErrs...); len(fieldErrs) > 0 {
		response.BadRequest(w, r, "origin and destination are required", fieldErrs)
		return
	}

	d, err := h.analyzer.AnalyzeJourney(r.Context(), origin, destination)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, d)
}

// Plan handles POST /v1/journeys:plan - decide between two addresses.
func (h *JourneyHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var input models.PlanRequest
	if !response.DecodeJSON(w, r, &input) {
		return
	}

	var fieldErrs []models.FieldError
	if input.From == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "from", Message: "is required"})
	}
	if input.To == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "to", Message: "is required"})
	}
	req := journey.Request{From: input.From, To: input.To}
	if input.CurrentPosition != nil {
		here, errs := coordinate("currentPosition", input.CurrentPosition)
		fieldErrs = append(fieldErrs, errs...)
		req.Here = &here
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid journey request", fieldErrs)
		return
	}

	plan, err := h.planner.Plan(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, plan)
}

// ListHistory handles GET /v1/journeys/history - recently analyzed journeys.
func (h *JourneyHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := journey.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be an integer between 1 and " + strconv.Itoa(maxHistoryLimit)},
			})
			return
		}
		limit = n
	}

	page, err := h.planner.History(r.Context(), journey.ListOptions{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := historyPage{
		Items: page.Items,
		Meta:  models.PagedResponseMeta{Limit: limit},
	}
	if resp.Items == nil {
		resp.Items = []*journey.Entry{}
	}
	if page.NextCursor != "" {
		resp.Meta.NextCursor = &page.NextCursor
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// GetHistoryEntry handles GET /v1/journeys/history/{entryId}.
func (h *JourneyHandler) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.planner.HistoryEntry(r.Context(), chi.URLParam(r, "entryId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, entry)
}

// writeError maps planner and engine errors to problems. Provider outages
// are checked first since they also surface as unresolved addresses.
func (h *JourneyHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, geocoding.ErrProviderUnavailable):
		h.logger.Warn().Err(err).Msg("geocoding provider unavailable")
		response.ServiceUnavailable(w, r, "address lookup is temporarily unavailable")
	case errors.Is(err, geocoding.ErrPositionUnavailable):
		response.BadRequest(w, r, "current position is required", []models.FieldError{
			{Field: "currentPosition", Message: "is required when an address is the current position"},
		})
	case errors.Is(err, journey.ErrDepartureNotFound):
		response.AddressNotFound(w, r, "from", "departure address not found")
	case errors.Is(err, journey.ErrDestinationNotFound):
		response.AddressNotFound(w, r, "to", "destination address not found")
	case errors.Is(err, decision.ErrInvalidInput):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, journey.ErrEntryNotFound):
		response.NotFound(w, r, "history entry not found")
	default:
		h.logger.Error().Err(err).Msg("journey request failed")
		response.InternalError(w, r, "journey request failed")
	}
}

// coordinate converts a request point, reporting missing or out-of-range values.
func coordinate(field string, p *models.Point) (geo.Coordinate, []models.FieldError) {
	if p == nil || p.Lat == nil || p.Lng == nil {
		return geo.Coordinate{}, []models.FieldError{{Field: field, Message: "lat and lng are required"}}
	}
	c := geo.Coordinate{Lat: *p.Lat, Lng: *p.Lng}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, []models.FieldError{{Field: field, Message: err.Error()}}
	}
	return c, nil
}

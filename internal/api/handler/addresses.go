package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/api/models"
	"github.com/velibadvisor/velibadvisor/internal/api/response"
	"github.com/velibadvisor/velibadvisor/internal/geocoding"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// AddressSearcher suggests and reverse-geocodes addresses.
type AddressSearcher interface {
	Search(ctx context.Context, query string) []geocoding.Place
	Reverse(ctx context.Context, point geo.Coordinate) (string, error)
}

// AddressHandler handles address endpoints.
type AddressHandler struct {
	searcher AddressSearcher
	logger   zerolog.Logger
}

// NewAddressHandler creates a new AddressHandler.
func NewAddressHandler(searcher AddressSearcher, logger zerolog.Logger) *AddressHandler {
	return &AddressHandler{searcher: searcher, logger: logger}
}

// reverseResult is the response of GET /v1/addresses:reverse.
type reverseResult struct {
	Point   geo.Coordinate `json:"point"`
	Address string         `json:"address"`
}

// Search handles GET /v1/addresses:search?q= - address autocomplete.
func (h *AddressHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, r, "missing query", []models.FieldError{
			{Field: "q", Message: "is required"},
		})
		return
	}

	places := h.searcher.Search(r.Context(), query)
	resp := models.AddressSuggestions{
		Query: query,
		Items: make([]models.AddressSuggestion, 0, len(places)),
	}
	for _, p := range places {
		resp.Items = append(resp.Items, models.AddressSuggestion{
			DisplayName: p.DisplayName,
			FullName:    p.FullName,
			Lat:         p.Coordinate.Lat,
			Lng:         p.Coordinate.Lng,
			Type:        p.Type,
		})
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Reverse handles GET /v1/addresses:reverse?lat=&lng= - address at a point.
func (h *AddressHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	point := geo.Coordinate{Lat: lat, Lng: lng}
	if latErr != nil || lngErr != nil || point.Validate() != nil {
		response.BadRequest(w, r, "invalid point", []models.FieldError{
			{Field: "lat", Message: "lat and lng must be valid coordinates"},
		})
		return
	}

	address, err := h.searcher.Reverse(r.Context(), point)
	if err != nil {
		if errors.Is(err, geocoding.ErrAddressNotFound) {
			response.NotFound(w, r, "no address at this point")
			return
		}
		h.logger.Warn().Err(err).Str("point", point.String()).Msg("reverse geocoding failed")
		response.ServiceUnavailable(w, r, "address lookup is temporarily unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, reverseResult{Point: point, Address: address})
}

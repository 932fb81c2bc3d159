package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/api/models"
	"github.com/velibadvisor/velibadvisor/internal/api/response"
	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/internal/velib"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// maxStationRadius caps the radius a client may ask for.
const maxStationRadius = 5000

// StationFinder looks up stations around a point.
type StationFinder interface {
	NearbyStations(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]velib.Station, error)
}

// StationsConfig holds configuration for the stations handler.
type StationsConfig struct {
	Finder StationFinder
	// DefaultRadius applies when the request has no radius (default: 800m).
	DefaultRadius float64
	// Timeout bounds the provider call (default: 5s).
	Timeout time.Duration
	Logger  zerolog.Logger
}

// StationsHandler handles station lookup endpoints.
type StationsHandler struct {
	finder        StationFinder
	defaultRadius float64
	timeout       time.Duration
	logger        zerolog.Logger
}

// NewStationsHandler creates a new StationsHandler.
func NewStationsHandler(cfg StationsConfig) *StationsHandler {
	radius := cfg.DefaultRadius
	if radius <= 0 {
		radius = 800
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = resilience.DefaultCallTimeout
	}
	return &StationsHandler{
		finder:        cfg.Finder,
		defaultRadius: radius,
		timeout:       timeout,
		logger:        cfg.Logger,
	}
}

// nearbyStations is the response of GET /v1/stations/nearby.
type nearbyStations struct {
	Point        geo.Coordinate  `json:"point"`
	RadiusMeters float64         `json:"radiusMeters"`
	Items        []velib.Station `json:"items"`
}

// Nearby handles GET /v1/stations/nearby?lat=&lng=&radius= - live availability around a point.
func (h *StationsHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fieldErrs []models.FieldError

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lat", Message: "must be a number"})
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lng", Message: "must be a number"})
	}
	radius := h.defaultRadius
	if raw := q.Get("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 || radius > maxStationRadius {
			fieldErrs = append(fieldErrs, models.FieldError{
				Field:   "radius",
				Message: "must be a positive number up to " + strconv.Itoa(maxStationRadius),
			})
		}
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid station query", fieldErrs)
		return
	}

	point := geo.Coordinate{Lat: lat, Lng: lng}
	stations, err := resilience.Call(r.Context(), h.timeout, func(ctx context.Context) ([]velib.Station, error) {
		return h.finder.NearbyStations(ctx, point, radius)
	})
	if err != nil {
		switch {
		case errors.Is(err, velib.ErrInvalidCoordinates), errors.Is(err, velib.ErrInvalidRadius):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			h.logger.Warn().Err(err).Str("point", point.String()).Msg("station lookup failed")
			response.ServiceUnavailable(w, r, "station availability is temporarily unavailable")
		}
		return
	}
	if stations == nil {
		stations = []velib.Station{}
	}

	response.JSON(w, r, http.StatusOK, nearbyStations{
		Point:        point,
		RadiusMeters: radius,
		Items:        stations,
	})
}

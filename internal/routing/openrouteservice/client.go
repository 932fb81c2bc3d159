// Package openrouteservice provides a client for the OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/internal/routing"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
	"github.com/velibadvisor/velibadvisor/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey  string
	BaseURL string

	// Language of turn-by-turn instructions. Default: "fr".
	Language string

	// DisableElevation skips the elevation profile (no ascent/descent).
	DisableElevation bool

	// HTTPClient defaults to a resilient client registered in Registry.
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry

	Logger zerolog.Logger
}

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	elevation  bool
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "fr"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = cfg.Timeout
		clientCfg.Registry = cfg.Registry
		cfg.HTTPClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		language:   cfg.Language,
		elevation:  !cfg.DisableElevation,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedProfiles returns the supported routing profiles.
func (c *Client) SupportedProfiles() []routing.RouteProfile {
	return []routing.RouteProfile{routing.ProfileWalk, routing.ProfileBike, routing.ProfileEBike}
}

func newError(code, message string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: err}
}

func validate(req routing.DirectionsRequest) error {
	switch {
	case req.Origin.Validate() != nil:
		return newError("INVALID_ORIGIN", "invalid origin coordinates", routing.ErrInvalidCoordinates)
	case req.Destination.Validate() != nil:
		return newError("INVALID_DESTINATION", "invalid destination coordinates", routing.ErrInvalidCoordinates)
	case !req.Profile.Valid():
		return newError("INVALID_PROFILE", fmt.Sprintf("unsupported profile %q", req.Profile), routing.ErrNoRouteFound)
	}
	return nil
}

// GetDirections retrieves route directions between two points.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.request(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, req.Profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().
		Str("profile", string(req.Profile)).
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Msg("requesting directions from ORS")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newError("REQUEST_FAILED", "failed to reach routing provider", routing.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := &routing.DirectionsResponse{
		Routes:    make([]routing.Route, 0, len(orsResp.Routes)),
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
	for i := range orsResp.Routes {
		result.Routes = append(result.Routes, c.toRoute(&orsResp.Routes[i]))
	}
	c.logger.Debug().Int("route_count", len(result.Routes)).Msg("received directions from ORS")
	return result, nil
}

func (c *Client) request(req routing.DirectionsRequest) orsRequest {
	r := orsRequest{
		// GeoJSON order: [lng, lat]
		Coordinates: [][]float64{
			{req.Origin.Lng, req.Origin.Lat},
			{req.Destination.Lng, req.Destination.Lat},
		},
		Instructions: true,
		Elevation:    c.elevation,
		Geometry:     true,
		Units:        "m",
		Language:     c.language,
	}
	if req.MaxAlternatives > 0 {
		// ORS counts the main route as a target.
		r.AlternativeRoutes = &alternativeRoutesOpts{TargetCount: req.MaxAlternatives + 1}
	}
	return r
}

// statusError maps a non-200 ORS response to a routing error. The status
// picks the sentinel; the body only refines the message.
func statusError(status int, body []byte) error {
	var orsErr orsErrorResponse
	_ = json.Unmarshal(body, &orsErr)
	message := orsErr.Error.Message
	if message == "" {
		message = fmt.Sprintf("routing provider returned status %d", status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return newError("RATE_LIMIT", "API rate limit exceeded, please try again later", routing.ErrRateLimitExceeded)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError("FORBIDDEN", "API access denied - check API key configuration", routing.ErrProviderUnavailable)
	case status == http.StatusNotFound:
		return newError("NO_ROUTE", "no route found between the given points", routing.ErrNoRouteFound)
	case status == http.StatusBadRequest && (orsErr.Error.Code == orsErrorCodeNotFound || orsErr.Error.Code == orsErrorCodePointNotFound):
		return newError("NO_ROUTE", message, routing.ErrNoRouteFound)
	case status == http.StatusBadRequest:
		return newError("BAD_REQUEST", message, routing.ErrInvalidCoordinates)
	case status >= http.StatusInternalServerError:
		return newError(fmt.Sprintf("SERVER_%d", status), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
	default:
		return newError(fmt.Sprintf("HTTP_%d", status), message, routing.ErrProviderUnavailable)
	}
}

func (c *Client) toRoute(r *orsRoute) routing.Route {
	route := routing.Route{
		GeometryPolyline: r.Geometry,
		Path:             c.decodeGeometry(r.Geometry),
		DistanceMeters:   r.Summary.Distance,
		DurationSeconds:  r.Summary.Duration,
		AscentMeters:     r.Summary.Ascent,
		DescentMeters:    r.Summary.Descent,
		BoundingBox:      boundingBox(r.BBox),
		Summary:          routeSummary(r.Segments),
	}
	for i := range r.Segments {
		for _, step := range r.Segments[i].Steps {
			route.Instructions = append(route.Instructions, routing.Instruction{
				Text:           step.Instruction,
				DistanceMeters: int(step.Distance),
				DurationSecs:   int(step.Duration),
				Type:           step.Type,
			})
		}
	}
	return route
}

// boundingBox reads a 2-D [minLng, minLat, maxLng, maxLat] or 3-D
// [minLng, minLat, minEle, maxLng, maxLat, maxEle] box.
func boundingBox(bbox []float64) *routing.BoundingBox {
	switch len(bbox) {
	case 4:
		return &routing.BoundingBox{MinLng: bbox[0], MinLat: bbox[1], MaxLng: bbox[2], MaxLat: bbox[3]}
	case 6:
		return &routing.BoundingBox{MinLng: bbox[0], MinLat: bbox[1], MaxLng: bbox[3], MaxLat: bbox[4]}
	default:
		return nil
	}
}

func (c *Client) decodeGeometry(encoded string) []geo.Coordinate {
	if c.elevation {
		path, _ := polyline.DecodeWithElevation(encoded)
		return path
	}
	return polyline.Decode(encoded)
}

// routeSummary names the longest street of the route.
func routeSummary(segments []orsSegment) string {
	var (
		name    string
		longest float64
	)
	for i := range segments {
		for _, step := range segments[i].Steps {
			if step.Name == "" || step.Name == "-" {
				continue
			}
			if step.Distance > longest {
				longest = step.Distance
				name = step.Name
			}
		}
	}
	return name
}

// Package nominatim provides a client for the OpenStreetMap Nominatim
// search and reverse geocoding API.
package nominatim

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/geocoding"
	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/internal/safe"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the application, as required by the usage policy.
	DefaultUserAgent = "VelibAdvisor/1.0"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional).
	BaseURL string

	// UserAgent sent with every request (optional).
	UserAgent string

	// Language of returned names (optional, defaults to "fr").
	Language string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 5s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Nominatim API client.
type Client struct {
	baseURL    string
	userAgent  string
	language   string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	language := cfg.Language
	if language == "" {
		language = "fr"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		language:   language,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search runs a forward geocoding query.
func (c *Client) Search(ctx context.Context, q geocoding.Query) ([]geocoding.Place, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 1
	}

	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("accept-language", c.language)
	if q.AddressDetails {
		params.Set("addressdetails", "1")
	}
	if q.CountryCodes != "" {
		params.Set("countrycodes", q.CountryCodes)
	}
	if q.ViewBox != nil {
		params.Set("viewbox", q.ViewBox.String())
		params.Set("bounded", "1")
	}

	c.logger.Debug().Str("query", q.Text).Int("limit", limit).Msg("searching Nominatim")

	doc, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	items, ok := doc.([]any)
	if !ok {
		return []geocoding.Place{}, nil
	}

	places := make([]geocoding.Place, 0, len(items))
	for _, item := range items {
		if p, ok := parsePlace(item); ok {
			places = append(places, p)
		}
	}
	return places, nil
}

// Reverse returns the place at point.
func (c *Client) Reverse(ctx context.Context, point geo.Coordinate) (*geocoding.Place, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(point.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(point.Lng, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("accept-language", c.language)

	doc, err := c.get(ctx, "/reverse", params)
	if err != nil {
		return nil, err
	}

	if msg, ok := safe.String(doc, "error"); ok {
		return nil, &geocoding.Error{
			Provider: ProviderName,
			Code:     "NOT_FOUND",
			Message:  msg,
			Err:      geocoding.ErrAddressNotFound,
		}
	}

	p, ok := parsePlace(doc)
	if !ok {
		return nil, &geocoding.Error{
			Provider: ProviderName,
			Code:     "NOT_FOUND",
			Message:  "no address at " + point.String(),
			Err:      geocoding.ErrAddressNotFound,
		}
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &geocoding.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach geocoding provider",
			Err:      geocoding.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &geocoding.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("geocoding provider returned status %d", resp.StatusCode),
			Err:      geocoding.ErrProviderUnavailable,
		}
	}

	doc, err := safe.Decode(body)
	if err != nil {
		return nil, &geocoding.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "malformed geocoding payload",
			Err:      err,
		}
	}
	return doc, nil
}

// parsePlace reads one Nominatim result. Results without coordinates are skipped.
func parsePlace(item any) (geocoding.Place, bool) {
	lat, okLat := safe.Float(item, "lat")
	lng, okLng := safe.Float(item, "lon")
	if !okLat || !okLng {
		return geocoding.Place{}, false
	}

	full := safe.StringOr(item, "", "display_name")
	p := geocoding.Place{
		DisplayName: full,
		FullName:    full,
		Coordinate:  geo.Coordinate{Lat: lat, Lng: lng},
		Type:        safe.StringOr(item, "", "type"),
		Importance:  safe.FloatOr(item, 0, "importance"),
	}

	if addr, ok := safe.Lookup(item, "address"); ok {
		p.Address = &geocoding.Address{
			HouseNumber: safe.StringOr(addr, "", "house_number"),
			Road:        safe.StringOr(addr, "", "road"),
			Pedestrian:  safe.StringOr(addr, "", "pedestrian"),
			Suburb:      safe.StringOr(addr, "", "suburb"),
			City:        safe.StringOr(addr, "", "city"),
			Town:        safe.StringOr(addr, "", "town"),
			Village:     safe.StringOr(addr, "", "village"),
			Postcode:    safe.StringOr(addr, "", "postcode"),
		}
	}
	return p, true
}

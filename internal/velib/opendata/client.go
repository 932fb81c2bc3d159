// Package opendata provides a client for the Paris Open Data real-time
// Vélib availability dataset.
package opendata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/provider/resilience"
	"github.com/velibadvisor/velibadvisor/internal/safe"
	"github.com/velibadvisor/velibadvisor/internal/velib"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

const (
	// ProviderName identifies this station provider.
	ProviderName = "opendata-paris"

	// DefaultBaseURL is the Paris Open Data portal.
	DefaultBaseURL = "https://opendata.paris.fr"

	// Dataset is the real-time availability dataset identifier.
	Dataset = "velib-disponibilite-en-temps-reel"

	// DefaultRows is the maximum number of records requested per search.
	DefaultRows = 30

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second

	searchPath = "/api/records/1.0/search/"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Open Data client.
type ClientConfig struct {
	// BaseURL is the portal base URL (optional).
	BaseURL string

	// Rows caps the number of stations returned (optional, default 30).
	Rows int

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

// Client queries station availability around a point.
type Client struct {
	baseURL    string
	rows       int
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Open Data client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rows := cfg.Rows
	if rows <= 0 {
		rows = DefaultRows
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
		rows:       rows,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// NearbyStations searches the dataset with a distance geofilter.
func (c *Client) NearbyStations(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]velib.Station, error) {
	params := url.Values{}
	params.Set("dataset", Dataset)
	params.Set("rows", strconv.Itoa(c.rows))
	params.Set("geofilter.distance", fmt.Sprintf("%f,%f,%.0f", point.Lat, point.Lng, radiusMeters))

	reqURL := c.baseURL + searchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Float64("lat", point.Lat).
		Float64("lng", point.Lng).
		Float64("radius", radiusMeters).
		Msg("requesting stations from Open Data")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &velib.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach station provider",
			Err:      velib.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &velib.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("station provider returned status %d", resp.StatusCode),
			Err:      velib.ErrProviderUnavailable,
		}
	}

	doc, err := safe.Decode(body)
	if err != nil {
		return nil, &velib.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "malformed station payload",
			Err:      err,
		}
	}

	stations := parseRecords(doc)

	c.logger.Debug().
		Int("station_count", len(stations)).
		Msg("received stations from Open Data")

	return stations, nil
}

// parseRecords converts dataset records into stations. Records without an
// identifier or coordinates are skipped; missing counts read as zero.
func parseRecords(doc any) []velib.Station {
	records, ok := safe.Lookup(doc, "records")
	if !ok {
		return []velib.Station{}
	}
	list, ok := records.([]any)
	if !ok {
		return []velib.Station{}
	}

	stations := make([]velib.Station, 0, len(list))
	for _, rec := range list {
		fields, ok := safe.Lookup(rec, "fields")
		if !ok {
			continue
		}

		id, ok := safe.String(fields, "stationcode")
		if !ok || id == "" {
			continue
		}
		lat, lng, ok := safe.FloatPair(fields, "coordonnees_geo")
		if !ok {
			continue
		}

		st := velib.Station{
			ID:              id,
			Name:            safe.StringOr(fields, id, "name"),
			Coordinate:      geo.Coordinate{Lat: lat, Lng: lng},
			BikesAvailable:  safe.IntOr(fields, 0, "numbikesavailable"),
			MechanicalBikes: safe.IntOr(fields, 0, "mechanical"),
			EBikes:          safe.IntOr(fields, 0, "ebike"),
			DocksAvailable:  safe.IntOr(fields, 0, "numdocksavailable"),
			Capacity:        safe.IntOr(fields, 0, "capacity"),
			DistanceMeters:  safe.FloatOr(fields, 0, "dist"),
		}

		// A station that is not renting has no usable bikes, one that is
		// not returning has no usable docks.
		if renting, ok := safe.Bool(fields, "is_renting"); ok && !renting {
			st.BikesAvailable, st.MechanicalBikes, st.EBikes = 0, 0, 0
		}
		if returning, ok := safe.Bool(fields, "is_returning"); ok && !returning {
			st.DocksAvailable = 0
		}

		stations = append(stations, st)
	}
	return stations
}

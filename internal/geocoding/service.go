package geocoding

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/cache"
	"github.com/velibadvisor/velibadvisor/internal/telemetry"
	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// MinSearchLength is the shortest query Search sends to the provider.
const MinSearchLength = 3

// parisAreaPostcodes maps inner-suburb city names to their postcode prefix.
var parisAreaPostcodes = map[string]string{
	"paris":         "75",
	"boulogne":      "92100",
	"neuilly":       "92200",
	"levallois":     "92300",
	"issy":          "92130",
	"vanves":        "92170",
	"malakoff":      "92240",
	"montrouge":     "92120",
	"gentilly":      "94250",
	"ivry":          "94200",
	"charenton":     "94220",
	"saint-mandé":   "94160",
	"saint-ouen":    "93400",
	"clichy":        "92110",
	"puteaux":       "92800",
	"montreuil":     "93100",
	"pantin":        "93500",
	"aubervilliers": "93300",
}

var (
	geocodeCityPattern  = regexp.MustCompile(`(?i)paris|boulogne|neuilly|issy|vanves|levallois|clichy|puteaux|malakoff|montrouge`)
	searchCityPattern   = cityPattern()
	innerSuburbPostcode = regexp.MustCompile(`^(92|93|94)`)
)

func cityPattern() *regexp.Regexp {
	names := make([]string, 0, len(parisAreaPostcodes))
	for name := range parisAreaPostcodes {
		names = append(names, regexp.QuoteMeta(name))
	}
	sort.Strings(names)
	return regexp.MustCompile(`(?i)` + strings.Join(names, "|"))
}

// ServiceConfig holds configuration for the geocoding service.
type ServiceConfig struct {
	// Provider is the geocoding provider.
	Provider Provider

	// Cache stores resolved addresses. Optional.
	Cache cache.Store

	// CacheTTL is how long resolved addresses are kept (default: 24 hours).
	CacheTTL time.Duration

	// ViewBox bounds the first geocoding attempt (default: ParisViewBox).
	ViewBox *ViewBox

	// CountryCodes restricts the fallback search (default: "fr").
	CountryCodes string

	// SearchLimit caps autocomplete results requested from the provider (default: 10).
	SearchLimit int

	// Metrics records provider calls. Optional.
	Metrics *telemetry.ProviderMetrics

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service resolves addresses and suggests completions.
type Service struct {
	provider     Provider
	cache        cache.Store
	cacheTTL     time.Duration
	viewBox      ViewBox
	countryCodes string
	searchLimit  int
	metrics      *telemetry.ProviderMetrics
	logger       zerolog.Logger
}

// NewService creates a new geocoding service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	viewBox := ParisViewBox
	if cfg.ViewBox != nil {
		viewBox = *cfg.ViewBox
	}

	countryCodes := cfg.CountryCodes
	if countryCodes == "" {
		countryCodes = "fr"
	}

	searchLimit := cfg.SearchLimit
	if searchLimit <= 0 {
		searchLimit = 10
	}

	return &Service{
		provider:     cfg.Provider,
		cache:        cfg.Cache,
		cacheTTL:     cacheTTL,
		viewBox:      viewBox,
		countryCodes: countryCodes,
		searchLimit:  searchLimit,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Geocode resolves text to a coordinate. A current-position sentinel
// resolves to here. Addresses without a known city or a comma are searched
// as Paris addresses inside the view box first, then country-wide.
func (s *Service) Geocode(ctx context.Context, text string, here *geo.Coordinate) (geo.Coordinate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return geo.Coordinate{}, &Error{
			Provider: s.provider.Name(),
			Code:     "EMPTY_ADDRESS",
			Message:  "address is empty",
			Err:      ErrAddressNotFound,
		}
	}

	if IsCurrentPosition(text) {
		if here == nil {
			return geo.Coordinate{}, &Error{
				Provider: s.provider.Name(),
				Code:     "NO_POSITION",
				Message:  "current position was requested but not provided",
				Err:      ErrPositionUnavailable,
			}
		}
		if err := here.Validate(); err != nil {
			return geo.Coordinate{}, &Error{
				Provider: s.provider.Name(),
				Code:     "INVALID_POSITION",
				Message:  "current position is not a valid coordinate",
				Err:      ErrPositionUnavailable,
			}
		}
		return *here, nil
	}

	key := "geocode_" + strings.ToLower(text)
	place, hit, err := cache.Fetch(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) (Place, error) {
		return s.resolve(ctx, text)
	})
	if err != nil {
		return geo.Coordinate{}, err
	}
	s.metrics.RecordCache(s.provider.Name(), "geocode", hit)

	return place.Coordinate, nil
}

func (s *Service) resolve(ctx context.Context, text string) (Place, error) {
	bounded := text
	if !geocodeCityPattern.MatchString(text) && !strings.Contains(text, ",") {
		bounded = text + ", Paris"
	}

	box := s.viewBox
	places, err := s.search(ctx, "geocode", Query{Text: bounded, Limit: 1, ViewBox: &box})
	if err != nil {
		return Place{}, err
	}

	if len(places) == 0 {
		s.logger.Debug().Str("address", text).Msg("address not found in Paris, widening search")
		places, err = s.search(ctx, "geocode", Query{Text: text, Limit: 1, CountryCodes: s.countryCodes})
		if err != nil {
			return Place{}, err
		}
	}

	if len(places) == 0 {
		return Place{}, &Error{
			Provider: s.provider.Name(),
			Code:     "NOT_FOUND",
			Message:  "no result for " + text,
			Err:      ErrAddressNotFound,
		}
	}

	s.logger.Debug().
		Str("address", text).
		Str("resolved", places[0].FullName).
		Msg("address geocoded")

	return places[0], nil
}

func (s *Service) search(ctx context.Context, operation string, q Query) ([]Place, error) {
	start := time.Now()
	places, err := s.provider.Search(ctx, q)
	s.metrics.RecordRequest(s.provider.Name(), operation, time.Since(start), err)
	return places, err
}

// Search suggests Paris-area addresses for an autocomplete query. Queries
// shorter than MinSearchLength and provider failures yield no suggestions.
func (s *Service) Search(ctx context.Context, query string) []Place {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSearchLength {
		return []Place{}
	}

	text := query
	if !searchCityPattern.MatchString(query) && !strings.Contains(query, ",") {
		text = query + ", Paris"
	}

	key := "search_" + strings.ToLower(text)
	places, hit, err := cache.Fetch(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]Place, error) {
		box := s.viewBox
		raw, err := s.search(ctx, "search", Query{
			Text:           text,
			Limit:          s.searchLimit,
			ViewBox:        &box,
			CountryCodes:   s.countryCodes,
			AddressDetails: true,
		})
		if err != nil {
			return nil, err
		}
		return rankSuggestions(raw), nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("address search failed")
		return []Place{}
	}
	s.metrics.RecordCache(s.provider.Name(), "search", hit)

	out := make([]Place, len(places))
	copy(out, places)
	return out
}

// rankSuggestions keeps Paris and known inner-suburb results, shortens their
// display names and orders them by importance with a bonus for Paris proper.
func rankSuggestions(raw []Place) []Place {
	kept := make([]Place, 0, len(raw))
	for _, p := range raw {
		if !inParisArea(p.Address) {
			continue
		}
		p.DisplayName = shortName(p)
		kept = append(kept, p)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Importance+parisBonus(kept[i].Address) > kept[j].Importance+parisBonus(kept[j].Address)
	})
	return kept
}

func inParisArea(a *Address) bool {
	if a == nil {
		return false
	}
	if strings.HasPrefix(a.Postcode, "75") {
		return true
	}
	if !innerSuburbPostcode.MatchString(a.Postcode) {
		return false
	}
	city := strings.ToLower(a.City)
	for name, prefix := range parisAreaPostcodes {
		if (city != "" && strings.Contains(city, name)) || strings.HasPrefix(a.Postcode, prefix) {
			return true
		}
	}
	return false
}

func parisBonus(a *Address) float64 {
	if a != nil && strings.HasPrefix(a.Postcode, "75") {
		return 1
	}
	return 0
}

// shortName builds "number road, city, postcode" from the structured
// address, or keeps the first three parts of the full name.
func shortName(p Place) string {
	if a := p.Address; a != nil {
		var parts []string
		switch {
		case a.HouseNumber != "" && a.Road != "":
			parts = append(parts, a.HouseNumber+" "+a.Road)
		case a.Road != "":
			parts = append(parts, a.Road)
		case a.Pedestrian != "":
			parts = append(parts, a.Pedestrian)
		}
		if l := a.Locality(); l != "" {
			parts = append(parts, l)
		}
		if a.Postcode != "" {
			parts = append(parts, a.Postcode)
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}

	parts := strings.Split(p.FullName, ",")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.TrimSpace(strings.Join(parts, ","))
}

// Reverse returns a display name for point.
func (s *Service) Reverse(ctx context.Context, point geo.Coordinate) (string, error) {
	if err := point.Validate(); err != nil {
		return "", &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_POINT",
			Message:  "invalid coordinates",
			Err:      err,
		}
	}

	start := time.Now()
	place, err := s.provider.Reverse(ctx, point)
	s.metrics.RecordRequest(s.provider.Name(), "reverse", time.Since(start), err)
	if err != nil {
		return "", err
	}
	if place == nil || place.FullName == "" {
		return "", &Error{
			Provider: s.provider.Name(),
			Code:     "NOT_FOUND",
			Message:  "no address at " + point.String(),
			Err:      ErrAddressNotFound,
		}
	}
	return place.FullName, nil
}

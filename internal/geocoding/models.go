// Package geocoding resolves free-text Paris addresses to coordinates and
// provides address autocomplete.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

// Sentinel errors for geocoding operations.
var (
	// ErrAddressNotFound indicates that no result matches the address.
	ErrAddressNotFound = errors.New("address not found")
	// ErrPositionUnavailable indicates a current-position sentinel without a known position.
	ErrPositionUnavailable = errors.New("current position unavailable")
	// ErrProviderUnavailable indicates the geocoding provider could not be reached.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
)

// Provider is a forward and reverse geocoder.
type Provider interface {
	// Search returns the places matching q, best first. No match is an empty slice.
	Search(ctx context.Context, q Query) ([]Place, error)
	// Reverse returns the place at point.
	Reverse(ctx context.Context, point geo.Coordinate) (*Place, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// ViewBox is a bounding box in degrees.
type ViewBox struct {
	MinLng float64
	MinLat float64
	MaxLng float64
	MaxLat float64
}

// ParisViewBox covers Paris and the inner ring of suburbs.
var ParisViewBox = ViewBox{MinLng: 2.2241, MinLat: 48.7965, MaxLng: 2.4699, MaxLat: 48.9115}

// String formats the box as "minLng,minLat,maxLng,maxLat".
func (v ViewBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", v.MinLng, v.MinLat, v.MaxLng, v.MaxLat)
}

// Query is a forward geocoding request.
type Query struct {
	Text string
	// Limit caps the number of results (default: 1).
	Limit int
	// ViewBox restricts results to the box when set.
	ViewBox *ViewBox
	// CountryCodes restricts results to ISO 3166-1 alpha-2 codes, comma separated.
	CountryCodes string
	// AddressDetails asks for the structured address of each result.
	AddressDetails bool
}

// Address is the structured address of a place.
type Address struct {
	HouseNumber string `json:"houseNumber,omitempty"`
	Road        string `json:"road,omitempty"`
	Pedestrian  string `json:"pedestrian,omitempty"`
	Suburb      string `json:"suburb,omitempty"`
	City        string `json:"city,omitempty"`
	Town        string `json:"town,omitempty"`
	Village     string `json:"village,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
}

// Locality returns the first known of city, town, village and suburb.
func (a Address) Locality() string {
	for _, s := range []string{a.City, a.Town, a.Village, a.Suburb} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Place is a geocoding result.
type Place struct {
	DisplayName string         `json:"displayName"`
	FullName    string         `json:"fullName"`
	Coordinate  geo.Coordinate `json:"coordinate"`
	Type        string         `json:"type,omitempty"`
	Importance  float64        `json:"importance"`
	Address     *Address       `json:"address,omitempty"`
}

// Error provides detailed error information from the geocoding provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var currentPositionSentinels = []string{
	"current position",
	"my position",
	"ma position",
	"position actuelle",
}

// IsCurrentPosition reports whether text asks for the caller's own position.
func IsCurrentPosition(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, s := range currentPositionSentinels {
		if t == s {
			return true
		}
	}
	return false
}

package polyline

import (
	"math"
	"testing"

	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

func TestDecode_ValidPolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []geo.Coordinate
	}{
		{
			name:    "single point",
			encoded: "_p~iF~ps|U",
			expected: []geo.Coordinate{
				{Lat: 38.5, Lng: -120.2},
			},
		},
		{
			name:    "two points",
			encoded: "_p~iF~ps|U_ulLnnqC",
			expected: []geo.Coordinate{
				{Lat: 38.5, Lng: -120.2},
				{Lat: 40.7, Lng: -120.95},
			},
		},
		{
			name:    "three points - Google example",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []geo.Coordinate{
				{Lat: 38.5, Lng: -120.2},
				{Lat: 40.7, Lng: -120.95},
				{Lat: 43.252, Lng: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Decode(tt.encoded)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d coordinates, got %d", len(tt.expected), len(result))
			}

			for i, coord := range result {
				if !coordsEqual(coord, tt.expected[i], 0.00001) {
					t.Errorf("coordinate %d: expected %+v, got %+v", i, tt.expected[i], coord)
				}
			}
		})
	}
}

func TestDecode_EmptyString(t *testing.T) {
	result := Decode("")
	if len(result) != 0 {
		t.Errorf("expected empty result for empty string, got %v", result)
	}
}

func TestDecode_MalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"truncated value", "_p~iF~ps|"},
		{"latitude without longitude", "_p~iF"},
		{"character below alphabet", "_p~iF~ps|U _ulL"},
		{"continuation at end", "_p~iF~ps|U_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Decode(tt.encoded)
			if len(result) != 0 {
				t.Errorf("expected empty result for %q, got %v", tt.encoded, result)
			}
		})
	}
}

func TestDecodeWithElevation(t *testing.T) {
	// Encode lat, lng and elevation (cm) deltas by hand.
	var buf []byte
	buf = encodeValue(buf, 4885840)  // 48.85840
	buf = encodeValue(buf, 234700)   // 2.34700
	buf = encodeValue(buf, 3550)     // 35.50 m
	buf = encodeValue(buf, 100)      // +0.001 lat
	buf = encodeValue(buf, -200)     // -0.002 lng
	buf = encodeValue(buf, 420)      // +4.20 m

	coords, elevations := DecodeWithElevation(string(buf))
	if len(coords) != 2 || len(elevations) != 2 {
		t.Fatalf("expected 2 points with elevation, got %d/%d", len(coords), len(elevations))
	}
	if !coordsEqual(coords[1], geo.Coordinate{Lat: 48.8594, Lng: 2.345}, 0.00001) {
		t.Errorf("unexpected second point %+v", coords[1])
	}
	if math.Abs(elevations[0]-35.5) > 1e-9 || math.Abs(elevations[1]-39.7) > 1e-9 {
		t.Errorf("unexpected elevations %v", elevations)
	}
}

func TestEncode_ValidCoordinates(t *testing.T) {
	tests := []struct {
		name   string
		coords []geo.Coordinate
	}{
		{
			name: "single point",
			coords: []geo.Coordinate{
				{Lat: 38.5, Lng: -120.2},
			},
		},
		{
			name: "three points",
			coords: []geo.Coordinate{
				{Lat: 38.5, Lng: -120.2},
				{Lat: 40.7, Lng: -120.95},
				{Lat: 43.252, Lng: -126.453},
			},
		},
		{
			name: "Châtelet to Gare du Nord",
			coords: []geo.Coordinate{
				{Lat: 48.85840, Lng: 2.34700},
				{Lat: 48.86412, Lng: 2.34977},
				{Lat: 48.88090, Lng: 2.35530},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.coords)
			if encoded == "" {
				t.Fatal("expected non-empty encoded string")
			}

			// Verify round-trip
			decoded := Decode(encoded)
			if len(decoded) != len(tt.coords) {
				t.Fatalf("round-trip: expected %d coordinates, got %d", len(tt.coords), len(decoded))
			}

			for i, coord := range decoded {
				if !coordsEqual(coord, tt.coords[i], 0.00001) {
					t.Errorf("round-trip coordinate %d: expected %+v, got %+v", i, tt.coords[i], coord)
				}
			}
		})
	}
}

func TestEncode_GoogleExample(t *testing.T) {
	coords := []geo.Coordinate{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}
	if got := Encode(coords); got != "_p~iF~ps|U_ulLnnqC_mqNvxq`@" {
		t.Errorf("unexpected encoding %q", got)
	}
}

func TestEncode_EmptyCoordinates(t *testing.T) {
	if result := Encode(nil); result != "" {
		t.Errorf("expected empty string for nil coordinates, got %q", result)
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		name           string
		coords         []geo.Coordinate
		expectedMeters float64
		tolerance      float64
	}{
		{"empty", nil, 0, 0},
		{"single point", []geo.Coordinate{{Lat: 48.85, Lng: 2.35}}, 0, 0},
		{
			name: "1 degree latitude at equator - roughly 111km",
			coords: []geo.Coordinate{
				{Lat: 0.0, Lng: 0.0},
				{Lat: 1.0, Lng: 0.0},
			},
			expectedMeters: 111000,
			tolerance:      1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Length(tt.coords)
			if math.Abs(result-tt.expectedMeters) > tt.tolerance {
				t.Errorf("expected ~%.0fm (±%.0f), got %.0fm", tt.expectedMeters, tt.tolerance, result)
			}
		})
	}
}

// coordsEqual checks if two coordinates are equal within a tolerance.
func coordsEqual(a, b geo.Coordinate, tolerance float64) bool {
	return math.Abs(a.Lat-b.Lat) <= tolerance+1e-12 && math.Abs(a.Lng-b.Lng) <= tolerance+1e-12
}

func BenchmarkDecode(b *testing.B) {
	encoded := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Decode(encoded)
	}
}

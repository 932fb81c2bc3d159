// Package polyline provides encoding and decoding utilities for Google's polyline algorithm.
// The polyline algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"

	"github.com/velibadvisor/velibadvisor/pkg/geo"
)

const (
	// precision is the coordinate scale used by Google and ORS (5 decimals).
	precision = 1e5

	// elevationPrecision is the scale of the third dimension in ORS 3-D polylines.
	elevationPrecision = 1e2
)

// Decode decodes a polyline-encoded string into a slice of coordinates.
// Malformed input (truncated values, characters outside the alphabet or a
// dangling latitude) decodes to an empty result instead of a partial path.
func Decode(encoded string) []geo.Coordinate {
	coords, _ := decode(encoded, 2)
	return coords
}

// DecodeWithElevation decodes an ORS polyline that carries elevation as a
// third dimension. Elevations are returned in meters alongside the path.
func DecodeWithElevation(encoded string) ([]geo.Coordinate, []float64) {
	return decode(encoded, 3)
}

func decode(encoded string, dims int) ([]geo.Coordinate, []float64) {
	if encoded == "" {
		return nil, nil
	}

	var (
		coords     []geo.Coordinate
		elevations []float64
		values     [3]int
	)

	index := 0
	for index < len(encoded) {
		for d := 0; d < dims; d++ {
			delta, next, ok := decodeValue(encoded, index)
			if !ok {
				return nil, nil
			}
			index = next
			values[d] += delta
		}

		coords = append(coords, geo.Coordinate{
			Lat: float64(values[0]) / precision,
			Lng: float64(values[1]) / precision,
		})
		if dims == 3 {
			elevations = append(elevations, float64(values[2])/elevationPrecision)
		}
	}

	return coords, elevations
}

// decodeValue decodes a single value from the polyline at the given index.
// Returns the decoded delta, the new index position and whether the value was complete.
func decodeValue(encoded string, index int) (int, int, bool) {
	shift := 0
	result := 0

	for {
		if index >= len(encoded) || shift > 30 {
			return 0, index, false
		}
		b := int(encoded[index]) - 63
		index++
		if b < 0 || b > 63 {
			return 0, index, false
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Apply two's complement for negative values
	if result&1 != 0 {
		return ^(result >> 1), index, true
	}
	return result >> 1, index, true
}

// Encode encodes a slice of coordinates into a polyline-encoded string.
// The polyline format uses precision of 5 decimal places (standard Google/ORS format).
func Encode(coords []geo.Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(coords)*4)
	prevLat := 0
	prevLng := 0

	for _, coord := range coords {
		lat := int(math.Round(coord.Lat * precision))
		lng := int(math.Round(coord.Lng * precision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lng-prevLng)

		prevLat = lat
		prevLng = lng
	}

	return string(encoded)
}

// encodeValue encodes a single integer value using the polyline algorithm.
func encodeValue(buf []byte, value int) []byte {
	// Invert if negative
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	// Encode in 5-bit chunks
	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}

// Length calculates the total length of a path in meters.
func Length(coords []geo.Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(coords); i++ {
		total += geo.Distance(coords[i-1], coords[i])
	}
	return total
}

package geospatial

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// ErrMalformedPolyline is returned when an encoded polyline cannot be fully decoded.
var ErrMalformedPolyline = errors.New("malformed polyline")

const (
	polylineScale    = 1e5
	polylineOffset   = 63
	polylineMoreBit  = 0x20
	polylineChunk    = 0x1f
	polylineMaxShift = 30
)

// DecodePolyline decodes a string in Google's encoded polyline format.
//
// Decoding never reads past the end of the input. When the input is
// malformed the points decoded before the bad value are returned together
// with an error wrapping ErrMalformedPolyline. An empty string yields an
// empty, non-nil slice.
func DecodePolyline(encoded string) ([]domain.Coordinate, error) {
	coords := make([]domain.Coordinate, 0, len(encoded)/4)

	var lat, lng int64
	for i := 0; i < len(encoded); {
		dLat, n, err := decodeValue(encoded, i)
		if err != nil {
			return coords, err
		}
		i += n

		dLng, n, err := decodeValue(encoded, i)
		if err != nil {
			return coords, err
		}
		i += n

		lat += dLat
		lng += dLng
		coords = append(coords, domain.Coordinate{
			Lat: float64(lat) / polylineScale,
			Lng: float64(lng) / polylineScale,
		})
	}
	return coords, nil
}

// decodeValue reads one zig-zag encoded delta starting at start and returns
// it with the number of bytes consumed.
func decodeValue(s string, start int) (int64, int, error) {
	var result int64
	var shift uint
	for i := start; i < len(s); i++ {
		b := int64(s[i]) - polylineOffset
		if b < 0 || b > 0x3f {
			return 0, 0, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformedPolyline, s[i], i)
		}
		if shift > polylineMaxShift {
			return 0, 0, fmt.Errorf("%w: value at offset %d overflows", ErrMalformedPolyline, start)
		}

		result |= (b & polylineChunk) << shift
		shift += 5

		if b < polylineMoreBit {
			n := i - start + 1
			if result&1 != 0 {
				return ^(result >> 1), n, nil
			}
			return result >> 1, n, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: truncated value at offset %d", ErrMalformedPolyline, start)
}

// EncodePolyline encodes coordinates in Google's polyline format at 1e5 precision.
func EncodePolyline(coords []domain.Coordinate) string {
	var b strings.Builder
	var prevLat, prevLng int64
	for _, c := range coords {
		lat := int64(math.Round(c.Lat * polylineScale))
		lng := int64(math.Round(c.Lng * polylineScale))
		encodeValue(&b, lat-prevLat)
		encodeValue(&b, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return b.String()
}

func encodeValue(b *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= polylineMoreBit {
		b.WriteByte(byte((polylineMoreBit | (u & polylineChunk)) + polylineOffset))
		u >>= 5
	}
	b.WriteByte(byte(u + polylineOffset))
}

// StopsToCoordinates converts an ordered stop list into path coordinates.
func StopsToCoordinates(stops []domain.Stop) []domain.Coordinate {
	coords := make([]domain.Coordinate, len(stops))
	for i, s := range stops {
		coords[i] = domain.Coordinate{Lat: s.Lat, Lng: s.Lng}
	}
	return coords
}

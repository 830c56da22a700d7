package description

import (
	"math"
	"strings"

	"github.com/chrouter/chrouter/pkg/coord"
)

// EncodePolyline encodes a sequence of fixed-point coordinates using the
// Google encoded-polyline algorithm (signed delta values, base-64-ish
// 5-bit chunking with a +63 ASCII offset). Coordinates are rounded from the
// 1e6 fixed-point representation to the format's 1e5 precision.
func EncodePolyline(points []coord.FixedPoint) string {
	if len(points) == 0 {
		return ""
	}

	var b strings.Builder
	var prevLat, prevLon int32

	for _, p := range points {
		lat := int32(math.Round(float64(p.Lat) / 10))
		lon := int32(math.Round(float64(p.Lon) / 10))
		encodeSignedNumber(lat-prevLat, &b)
		encodeSignedNumber(lon-prevLon, &b)
		prevLat, prevLon = lat, lon
	}

	return b.String()
}

func encodeSignedNumber(n int32, b *strings.Builder) {
	shifted := n << 1
	if shifted < 0 {
		shifted = ^shifted
	}
	encodeNumber(shifted, b)
}

func encodeNumber(n int32, b *strings.Builder) {
	for n >= 0x20 {
		next := (0x20 | (n & 0x1f)) + 63
		b.WriteByte(byte(next))
		n >>= 5
	}
	b.WriteByte(byte(n + 63))
}

// Package description turns a raw resolved path into the client-facing
// route description: a geometry simplified for a given zoom level, a
// compact encoded polyline, and a human-readable route name.
package description

import "github.com/chrouter/chrouter/pkg/coord"

// MaxZoomLevel is the highest supported zoom level, matching the bounds of
// DouglasPeuckerThresholds.
const MaxZoomLevel = 18

// DouglasPeuckerThresholds gives the per-zoom-level perpendicular-distance
// threshold, in fixed-point coord units, below which a point is considered
// redundant. Indexed z0..z18; coarser zoom levels (lower index) tolerate
// more simplification.
var DouglasPeuckerThresholds = [MaxZoomLevel + 1]int64{
	2621440, // z0
	1310720, // z1
	655360,  // z2
	327680,  // z3
	163840,  // z4
	81920,   // z5
	40960,   // z6
	20480,   // z7
	9600,    // z8
	4800,    // z9
	2800,    // z10
	900,     // z11
	600,     // z12
	275,     // z13
	160,     // z14
	60,      // z15
	8,       // z16
	6,       // z17
	4,       // z18
}

type geometryRange struct {
	left, right int
}

// Simplify reduces a point sequence to the subset needed to stay within the
// zoom level's simplification threshold, using the iterative Douglas-Peucker
// algorithm. The first and last points are always kept.
func Simplify(points []coord.FixedPoint, zoomLevel int) []coord.FixedPoint {
	if len(points) < 3 {
		return points
	}
	if zoomLevel < 0 {
		zoomLevel = 0
	}
	if zoomLevel > MaxZoomLevel {
		zoomLevel = MaxZoomLevel
	}
	threshold := DouglasPeuckerThresholds[zoomLevel]

	necessary := make([]bool, len(points))
	necessary[0] = true
	necessary[len(points)-1] = true

	stack := []geometryRange{{0, len(points) - 1}}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var maxDist int64
		farthest := r.right
		for i := r.left + 1; i < r.right; i++ {
			d := coord.OrderedPerpendicularDistanceApproximation(points[i], points[r.left], points[r.right])
			if d > maxDist && d > threshold {
				farthest = i
				maxDist = d
			}
		}

		if maxDist > threshold {
			necessary[farthest] = true
			if farthest-r.left > 1 {
				stack = append(stack, geometryRange{r.left, farthest})
			}
			if r.right-farthest > 1 {
				stack = append(stack, geometryRange{farthest, r.right})
			}
		}
	}

	out := make([]coord.FixedPoint, 0, len(points))
	for i, p := range points {
		if necessary[i] {
			out = append(out, p)
		}
	}
	return out
}

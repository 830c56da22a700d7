package geo

import "math"

// Bearing returns the initial bearing in degrees [0, 360) from point 1 to
// point 2, measured clockwise from true north.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2r)
	x := math.Cos(lat1r)*math.Sin(lat2r) - math.Sin(lat1r)*math.Cos(lat2r)*math.Cos(dLon)

	theta := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(theta+360, 360)
}

// compassPoints are the 8-point compass labels, starting at N and moving
// clockwise in 45-degree increments.
var compassPoints = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassDirection maps a bearing in degrees to one of the 8 compass points.
func CompassDirection(bearingDegrees float64) string {
	b := math.Mod(bearingDegrees, 360)
	if b < 0 {
		b += 360
	}
	idx := int(math.Round(b/45)) % 8
	return compassPoints[idx]
}

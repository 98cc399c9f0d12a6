package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a map coordinate: X is longitude, Y is latitude, in degrees.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Y * math.Pi / 180
	lat2 := b.Y * math.Pi / 180
	dLat := (b.Y - a.Y) * math.Pi / 180
	dLng := (b.X - a.X) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Lerp interpolates linearly between two points in raw degrees. t is clamped
// to [0, 1].
func Lerp(a, b Point, t float64) Point {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// Package geo contains pure geographic computation helpers and the
// driver position index used for matching.
package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a pair of signed decimal-degree coordinates.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point is within latitude [-90,90] and
// longitude [-180,180].
func (p Point) Valid() bool {
	return IsValidLatitude(p.Lat) && IsValidLongitude(p.Lng)
}

// IsValidLatitude reports whether lat is within [-90, 90].
func IsValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// IsValidLongitude reports whether lng is within [-180, 180].
func IsValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// HaversineKm returns the great-circle distance in kilometres between
// two points specified in decimal degrees.
func HaversineKm(a, b Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

package geo

import (
	"math"

	"example.com/citypulse/internal/models"
)

const (
	earthRadiusMiles = 3958.8
	metersPerMile    = 1609.344
)

// HaversineMiles returns the great-circle distance between two points in
// statute miles.
func HaversineMiles(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// HaversineMeters returns the great-circle distance in meters.
func HaversineMeters(a, b models.Coordinates) float64 {
	return HaversineMiles(a, b) * metersPerMile
}

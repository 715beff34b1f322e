package geo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/citypulse/internal/models"
)

func TestHaversineMilesKnownDistance(t *testing.T) {
	nyc := models.Coordinates{Latitude: 40.7128, Longitude: -74.0060}
	la := models.Coordinates{Latitude: 34.0522, Longitude: -118.2437}

	miles := HaversineMiles(nyc, la)
	require.InDelta(t, 2445, miles, 15)
}

func TestHaversineMilesZeroForSamePoint(t *testing.T) {
	p := models.Coordinates{Latitude: 41.8781, Longitude: -87.6298}
	require.Equal(t, 0.0, HaversineMiles(p, p))
}

func TestHaversineMilesSymmetric(t *testing.T) {
	a := models.Coordinates{Latitude: 47.6062, Longitude: -122.3321}
	b := models.Coordinates{Latitude: 45.5152, Longitude: -122.6784}
	require.InDelta(t, HaversineMiles(a, b), HaversineMiles(b, a), 1e-9)
}

func TestHaversineMetersVenueScale(t *testing.T) {
	// ~0.0027 degrees of latitude is about 300 meters.
	a := models.Coordinates{Latitude: 40.7484, Longitude: -73.9857}
	b := models.Coordinates{Latitude: 40.7511, Longitude: -73.9857}
	require.InDelta(t, 300, HaversineMeters(a, b), 5)
}

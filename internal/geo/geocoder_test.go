package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/models"
)

func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int) {
	t.Helper()
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &count
}

func TestGeocodeShortQueryMakesNoRequest(t *testing.T) {
	server, requests := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "OK", "results": []}`)
	})

	g := NewGeocoder(config.GeocodingConfig{MapsURL: server.URL, RequestTimeout: time.Second}, nil)

	for _, query := range []string{"", "  ", "ab", " ab "} {
		_, err := g.Geocode(context.Background(), query)
		require.ErrorIs(t, err, ErrNotFound)
	}
	require.Zero(t, *requests)
}

func TestGeocodeUsesPrimaryProvider(t *testing.T) {
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Harborside Amphitheater", r.URL.Query().Get("address"))
		fmt.Fprint(w, `{
			"status": "OK",
			"results": [{"geometry": {"location": {"lat": 40.702, "lng": -73.995}}}]
		}`)
	})

	g := NewGeocoder(config.GeocodingConfig{MapsURL: server.URL, RequestTimeout: time.Second}, nil)

	coords, err := g.Geocode(context.Background(), "Harborside Amphitheater")
	require.NoError(t, err)
	require.InDelta(t, 40.702, coords.Latitude, 1e-9)
	require.InDelta(t, -73.995, coords.Longitude, 1e-9)
}

func TestGeocodeFallsBackToNominatim(t *testing.T) {
	primary, primaryCalls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	fallback, fallbackCalls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "citypulse-test/1.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `[{"lat": "40.702", "lon": "-73.995"}]`)
	})

	g := NewGeocoder(config.GeocodingConfig{
		MapsURL:        primary.URL,
		NominatimURL:   fallback.URL,
		UserAgent:      "citypulse-test/1.0",
		RequestTimeout: time.Second,
	}, nil)

	coords, err := g.Geocode(context.Background(), "Harborside Amphitheater")
	require.NoError(t, err)
	require.InDelta(t, 40.702, coords.Latitude, 1e-9)
	require.Equal(t, 1, *primaryCalls)
	require.Equal(t, 1, *fallbackCalls)
}

func TestGeocodeNotFoundIsTerminal(t *testing.T) {
	primary, primaryCalls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	})
	fallback, fallbackCalls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	g := NewGeocoder(config.GeocodingConfig{
		MapsURL:        primary.URL,
		NominatimURL:   fallback.URL,
		RequestTimeout: time.Second,
	}, nil)

	_, err := g.Geocode(context.Background(), "no such place anywhere")
	require.ErrorIs(t, err, ErrNotFound)
	// One attempt per provider, no retries.
	require.Equal(t, 1, *primaryCalls)
	require.Equal(t, 1, *fallbackCalls)
}

func TestReverseGeocodeCityPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCity string
	}{
		{
			name: "locality wins",
			body: `{"status": "OK", "results": [{
				"formatted_address": "98 Elm St, Brooklyn, NY 11201, USA",
				"address_components": [
					{"long_name": "Kings County", "short_name": "Kings County", "types": ["administrative_area_level_2"]},
					{"long_name": "Brooklyn", "short_name": "Brooklyn", "types": ["locality"]},
					{"long_name": "New York", "short_name": "NY", "types": ["administrative_area_level_1"]}
				]}]}`,
			wantCity: "Brooklyn",
		},
		{
			name: "sublocality before county",
			body: `{"status": "OK", "results": [{
				"formatted_address": "Queens, NY, USA",
				"address_components": [
					{"long_name": "Queens County", "short_name": "Queens County", "types": ["administrative_area_level_2"]},
					{"long_name": "Astoria", "short_name": "Astoria", "types": ["sublocality"]},
					{"long_name": "New York", "short_name": "NY", "types": ["administrative_area_level_1"]}
				]}]}`,
			wantCity: "Astoria",
		},
		{
			name: "formatted address fallback",
			body: `{"status": "OK", "results": [{
				"formatted_address": "Somewhere, NY, USA",
				"address_components": [
					{"long_name": "New York", "short_name": "NY", "types": ["administrative_area_level_1"]}
				]}]}`,
			wantCity: "Somewhere",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})

			g := NewGeocoder(config.GeocodingConfig{MapsURL: server.URL, RequestTimeout: time.Second}, nil)

			place, err := g.ReverseGeocode(context.Background(), models.Coordinates{Latitude: 40.70, Longitude: -73.99})
			require.NoError(t, err)
			require.Equal(t, tt.wantCity, place.City)
			require.Equal(t, "NY", place.Region)
		})
	}
}

func TestReverseGeocodeRejectsInvalidCoordinates(t *testing.T) {
	g := NewGeocoder(config.GeocodingConfig{}, nil)
	_, err := g.ReverseGeocode(context.Background(), models.Coordinates{Latitude: 91, Longitude: 0})
	require.Error(t, err)
}

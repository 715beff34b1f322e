package providers

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

var fetchOrigin = models.Coordinates{Latitude: 40.7128, Longitude: -74.0060}

func ticketVaultServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, "/v2/events", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			fmt.Fprint(w, `{
				"events": [
					{
						"id": "ev-1",
						"name": "Harbor Lights Orchestra",
						"starts_at": "2025-06-20T19:30:00-04:00",
						"segment": "Music",
						"venue": {
							"name": "Harborside Amphitheater",
							"address": "1 Pier Rd",
							"city": "Brooklyn",
							"region": "NY",
							"latitude": 40.702,
							"longitude": -73.995
						},
						"price_range": "$25 - $80",
						"image_url": "https://img.example/ev-1.jpg",
						"url": "https://tickets.example/ev-1",
						"description": "An evening of symphonic favorites."
					},
					{
						"id": "ev-2",
						"name": "",
						"starts_at": "2025-06-21T20:00:00-04:00"
					}
				],
				"meta": {"page": 1, "total_pages": 2}
			}`)
		case "2":
			fmt.Fprint(w, `{
				"events": [
					{
						"id": "ev-3",
						"name": "Standup Showcase",
						"starts_at": "2025-06-22",
						"segment": "Comedy",
						"venue": {"name": "Basement Laughs", "city": "Brooklyn", "region": "NY"}
					}
				],
				"meta": {"page": 2, "total_pages": 2}
			}`)
		default:
			t.Fatalf("unexpected page %q", page)
		}
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestTicketVaultFetchEventsPaginates(t *testing.T) {
	server, requests := ticketVaultServer(t)
	adapter := NewTicketVault(config.TicketVaultConfig{URL: server.URL, Token: "test-token"})

	since := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	events, err := adapter.FetchEvents(context.Background(), fetchOrigin, 25, since)
	require.NoError(t, err)
	require.Equal(t, 2, *requests)

	// The titleless record on page one is dropped.
	require.Len(t, events, 2)

	first := events[0]
	require.Equal(t, "ticketvault:ev-1", first.ID)
	require.Equal(t, "Harbor Lights Orchestra", first.Title)
	require.Equal(t, "2025-06-20", first.PrimaryDate)
	require.Equal(t, "19:30", first.PrimaryTime)
	require.Equal(t, models.CategoryMusic, first.Category)
	require.Equal(t, "$25 - $80", first.Price)
	require.Equal(t, "https://tickets.example/ev-1", first.TicketURL)
	require.Equal(t, SourceTicketVault, first.Source)
	require.NotNil(t, first.Coordinates)
	require.InDelta(t, 40.702, first.Coordinates.Latitude, 1e-9)

	// Date-only timestamps normalize to midnight; missing price and image
	// get the fallbacks.
	second := events[1]
	require.Equal(t, "2025-06-22", second.PrimaryDate)
	require.Equal(t, "00:00", second.PrimaryTime)
	require.Equal(t, "See provider", second.Price)
	require.Equal(t, models.PlaceholderImageURL, second.Image)
	require.Equal(t, models.CategoryComedy, second.Category)
	require.Nil(t, second.Coordinates)
}

func TestTicketVaultFetchIsIdempotent(t *testing.T) {
	server, _ := ticketVaultServer(t)
	adapter := NewTicketVault(config.TicketVaultConfig{URL: server.URL, Token: "test-token"})

	since := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	first, err := adapter.FetchEvents(context.Background(), fetchOrigin, 25, since)
	require.NoError(t, err)
	second, err := adapter.FetchEvents(context.Background(), fetchOrigin, 25, since)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestTicketVaultRejectsNonPositiveRadius(t *testing.T) {
	adapter := NewTicketVault(config.TicketVaultConfig{URL: "http://unused.example"})
	_, err := adapter.FetchEvents(context.Background(), fetchOrigin, 0, time.Now())
	require.Error(t, err)
}

func TestTicketVaultSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := NewTicketVault(config.TicketVaultConfig{URL: server.URL})
	_, err := adapter.FetchEvents(context.Background(), fetchOrigin, 25, time.Now())
	require.Error(t, err)
}

func TestTicketVaultFetchEventsByKeyword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "harbor", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"events": [{"id": "ev-9", "name": "Harbor Fest", "starts_at": "2025-07-01T12:00:00Z"}], "meta": {"page": 1, "total_pages": 1}}`)
	}))
	defer server.Close()

	adapter := NewTicketVault(config.TicketVaultConfig{URL: server.URL})
	events, err := adapter.FetchEventsByKeyword(context.Background(), "harbor", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "ticketvault:ev-9", events[0].ID)
}

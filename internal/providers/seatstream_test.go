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

func TestSeatStreamNormalizesDatesAndTimes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/listings", r.URL.Path)
		require.Equal(t, "client-123", r.URL.Query().Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"listings": [
				{
					"id": 5501,
					"title": "Riverside Wine Tasting",
					"local_date": "07/04/2025",
					"local_time": "7:30 PM",
					"taxonomies": [{"name": "Food & Drink"}],
					"venue": {
						"name": "Riverside Hall",
						"address": "200 River St",
						"city": "Hoboken",
						"state": "NJ",
						"location": {"lat": 40.744, "lon": -74.028}
					},
					"price_display": "$45",
					"tickets_url": "https://seats.example/5501",
					"summary": "Guided tasting of regional wines."
				},
				{
					"id": 5502,
					"title": "Morning Lecture Series",
					"local_date": "7/4/2025"
				},
				{
					"id": 5503,
					"title": "Broken Listing",
					"local_date": "someday"
				}
			]
		}`)
	}))
	defer server.Close()

	adapter := NewSeatStream(config.SeatStreamConfig{URL: server.URL, ClientID: "client-123"})
	events, err := adapter.FetchEvents(context.Background(), fetchOrigin, 25, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// The listing with an unparseable date is dropped.
	require.Len(t, events, 2)

	first := events[0]
	require.Equal(t, "seatstream:5501", first.ID)
	require.Equal(t, "2025-07-04", first.PrimaryDate)
	require.Equal(t, "19:30", first.PrimaryTime)
	require.Equal(t, models.CategoryFood, first.Category)
	require.Equal(t, "Hoboken", first.City)
	require.Equal(t, "NJ", first.Region)
	require.NotNil(t, first.Coordinates)
	require.Equal(t, SourceSeatStream, first.Source)

	// Single-digit US dates parse too; a missing time defaults to midnight
	// and a zero-value location stays nil.
	second := events[1]
	require.Equal(t, "2025-07-04", second.PrimaryDate)
	require.Equal(t, "00:00", second.PrimaryTime)
	require.Nil(t, second.Coordinates)
}

func TestSeatStreamDegradedLookups(t *testing.T) {
	var gotQuery, gotVenue string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotVenue = r.URL.Query().Get("venue")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"listings": []}`)
	}))
	defer server.Close()

	adapter := NewSeatStream(config.SeatStreamConfig{URL: server.URL})
	since := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	_, err := adapter.FetchEventsByKeyword(context.Background(), "jazz", since)
	require.NoError(t, err)
	require.Equal(t, "jazz", gotQuery)

	_, err = adapter.FetchEventsByPlaceName(context.Background(), "Riverside Hall", since)
	require.NoError(t, err)
	require.Equal(t, "Riverside Hall", gotVenue)
}

func TestParseClockTime(t *testing.T) {
	require.Equal(t, "19:30", parseClockTime("7:30 PM"))
	require.Equal(t, "09:05", parseClockTime("9:05AM"))
	require.Equal(t, "21:15", parseClockTime("21:15"))
	require.Equal(t, "00:00", parseClockTime(""))
	require.Equal(t, "00:00", parseClockTime("half past eight"))
}

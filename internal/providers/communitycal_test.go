package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/models"
)

func icsFeed() string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//community//calendar//EN",
		"BEGIN:VEVENT",
		"UID:board-game-night@community",
		"SUMMARY:Weekly Board Game Night",
		"DTSTART:20250610T190000Z",
		"RRULE:FREQ=WEEKLY;COUNT=4",
		"LOCATION:Community Hall",
		"DESCRIPTION:Bring a friend and a favorite game.",
		"URL:https://community.example/games",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:solstice-picnic@community",
		"SUMMARY:Solstice Picnic",
		"DTSTART:20250620T180000Z",
		"LOCATION:Meadow Lawn",
		"GEO:40.7009;-73.9400",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:winter-market@community",
		"SUMMARY:Winter Market",
		"DTSTART:20250301T100000Z",
		"LOCATION:Main Square",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func communityCalFixture(t *testing.T) *CommunityCal {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(icsFeed()))
	}))
	t.Cleanup(server.Close)

	geocoder := &stubGeocoder{coords: map[string]models.Coordinates{
		"Community Hall": {Latitude: 40.710, Longitude: -73.995},
	}}
	return NewCommunityCal(config.CommunityCalConfig{FeedURL: server.URL}, geocoder)
}

func TestCommunityCalExpandsRecurringEvents(t *testing.T) {
	adapter := communityCalFixture(t)
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	events, err := adapter.FetchEvents(context.Background(), fetchOrigin, 50, since)
	require.NoError(t, err)

	// The past single event is dropped; the recurring and the picnic stay.
	require.Len(t, events, 2)

	games := events[0]
	require.Equal(t, "communitycal:board-game-night@community", games.ID)
	require.Equal(t, []models.Occurrence{
		{Date: "2025-06-10", Time: "19:00"},
		{Date: "2025-06-17", Time: "19:00"},
		{Date: "2025-06-24", Time: "19:00"},
		{Date: "2025-07-01", Time: "19:00"},
	}, games.Occurrences)
	require.Equal(t, "2025-06-10", games.PrimaryDate)
	require.Equal(t, "https://community.example/games", games.TicketURL)
	require.Equal(t, "Community Hall", games.Location)
	require.NotNil(t, games.Coordinates)
	require.Equal(t, SourceCommunityCal, games.Source)

	picnic := events[1]
	require.Equal(t, "communitycal:solstice-picnic@community", picnic.ID)
	require.NotNil(t, picnic.Coordinates)
	require.InDelta(t, 40.7009, picnic.Coordinates.Latitude, 1e-9)
	require.Equal(t, models.CategoryOutdoor, picnic.Category)
}

func TestCommunityCalFetchEventsByPlaceName(t *testing.T) {
	adapter := communityCalFixture(t)
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	events, err := adapter.FetchEventsByPlaceName(context.Background(), "meadow", since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "Solstice Picnic", events[0].Title)
}

func TestCommunityCalRejectsNonPositiveRadius(t *testing.T) {
	adapter := communityCalFixture(t)
	_, err := adapter.FetchEvents(context.Background(), fetchOrigin, -1, time.Now())
	require.Error(t, err)
}

package aggregator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/citypulse/internal/models"
)

var filterNow = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC) // Wednesday

func listed(id, title, date, tm, source string, coords *models.Coordinates, cat models.Category) models.Event {
	ev := models.Event{
		ID:          id,
		Title:       title,
		Occurrences: []models.Occurrence{{Date: date, Time: tm}},
		Coordinates: coords,
		Category:    cat,
		Source:      source,
	}
	ev.SortOccurrences()
	return ev
}

func TestPolicyIncludeWindowAndCategory(t *testing.T) {
	policy, err := NewPolicy(models.FilterCriteria{
		DistanceMiles: 25,
		TimeRange:     models.RangeWeek,
		Categories:    []models.Category{models.CategoryMusic},
	}, filterNow)
	require.NoError(t, err)

	inWindow := listed("a", "A", "2025-06-06", "19:00", "ticketvault", nil, models.CategoryMusic)
	require.True(t, policy.Include(inWindow))

	pastWindow := listed("b", "B", "2025-06-03", "19:00", "ticketvault", nil, models.CategoryMusic)
	require.False(t, policy.Include(pastWindow))

	beyondWindow := listed("c", "C", "2025-06-11", "19:00", "ticketvault", nil, models.CategoryMusic)
	require.False(t, policy.Include(beyondWindow))

	wrongCategory := listed("d", "D", "2025-06-06", "19:00", "ticketvault", nil, models.CategoryFood)
	require.False(t, policy.Include(wrongCategory))
}

func TestPolicyDistanceNeedsOrigin(t *testing.T) {
	origin := models.Coordinates{Latitude: 40.7128, Longitude: -74.0060}
	withOrigin, err := NewPolicy(models.FilterCriteria{
		DistanceMiles: 5,
		TimeRange:     models.RangeWeek,
		Origin:        &origin,
	}, filterNow)
	require.NoError(t, err)

	near := listed("a", "A", "2025-06-06", "19:00", "ticketvault",
		&models.Coordinates{Latitude: 40.702, Longitude: -73.995}, models.CategoryMusic)
	far := listed("b", "B", "2025-06-06", "19:00", "ticketvault",
		&models.Coordinates{Latitude: 40.600, Longitude: -73.755}, models.CategoryMusic)
	// Without coordinates the distance cannot be established, so the event
	// is excluded whenever an origin is known.
	unknown := listed("c", "C", "2025-06-06", "19:00", "cityboard", nil, models.CategoryMusic)

	require.True(t, withOrigin.Include(near))
	require.False(t, withOrigin.Include(far))
	require.False(t, withOrigin.Include(unknown))

	// With no origin the distance predicate is inactive and coordinate-less
	// events flow through.
	withoutOrigin, err := NewPolicy(models.FilterCriteria{
		DistanceMiles: 5,
		TimeRange:     models.RangeWeek,
	}, filterNow)
	require.NoError(t, err)
	require.True(t, withoutOrigin.Include(unknown))
	require.True(t, withoutOrigin.Include(far))
}

func TestApplyOrdersDeterministically(t *testing.T) {
	events := []models.Event{
		listed("z", "Evening Show", "2025-06-07", "20:00", "seatstream", nil, models.CategoryMusic),
		listed("a", "Evening Show", "2025-06-07", "20:00", "ticketvault", nil, models.CategoryMusic),
		listed("m", "Afternoon Show", "2025-06-07", "14:00", "cityboard", nil, models.CategoryArts),
		listed("k", "Early Event", "2025-06-05", "09:00", "user", nil, models.CategoryFamily),
		listed("b", "Evening Show", "2025-06-07", "20:00", "seatstream", nil, models.CategoryMusic),
		listed("c", "Another Evening Show", "2025-06-07", "20:00", "seatstream", nil, models.CategoryMusic),
	}

	policy, err := NewPolicy(models.FilterCriteria{
		DistanceMiles: 25,
		TimeRange:     models.RangeWeek,
	}, filterNow)
	require.NoError(t, err)

	wantOrder := []string{"k", "m", "a", "c", "b", "z"}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.Event{}, events...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		out := policy.Apply(shuffled)
		got := make([]string, 0, len(out))
		for _, ev := range out {
			got = append(got, ev.ID)
		}
		require.Equal(t, wantOrder, got)
	}
}

func TestLessTiebreakChain(t *testing.T) {
	base := listed("a", "Show", "2025-06-07", "20:00", "ticketvault", nil, models.CategoryMusic)

	earlierDate := listed("b", "Show", "2025-06-06", "20:00", "cityboard", nil, models.CategoryMusic)
	require.True(t, Less(earlierDate, base))

	earlierTime := listed("c", "Show", "2025-06-07", "19:00", "cityboard", nil, models.CategoryMusic)
	require.True(t, Less(earlierTime, base))

	lowerWeight := listed("d", "Show", "2025-06-07", "20:00", "seatstream", nil, models.CategoryMusic)
	require.True(t, Less(base, lowerWeight))

	laterTitle := listed("e", "Zebra Parade", "2025-06-07", "20:00", "ticketvault", nil, models.CategoryMusic)
	require.True(t, Less(base, laterTitle))

	sameButBiggerID := listed("f", "Show", "2025-06-07", "20:00", "ticketvault", nil, models.CategoryMusic)
	require.True(t, Less(base, sameButBiggerID))
}

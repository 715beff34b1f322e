package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Wednesday.
var wednesday = time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return d
}

func TestTimeRangeWindows(t *testing.T) {
	tests := []struct {
		name  string
		r     TimeRange
		now   time.Time
		start string
		end   string
	}{
		{"today", RangeToday, wednesday, "2025-06-04", "2025-06-04"},
		{"tomorrow", RangeTomorrow, wednesday, "2025-06-05", "2025-06-05"},
		{"rolling week", RangeWeek, wednesday, "2025-06-04", "2025-06-10"},
		{"weekend from midweek", RangeWeekend, wednesday, "2025-06-07", "2025-06-08"},
		{"weekend on saturday", RangeWeekend, time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC), "2025-06-07", "2025-06-08"},
		{"weekend on sunday keeps the one in progress", RangeWeekend, time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC), "2025-06-07", "2025-06-08"},
		{"month", RangeMonth, wednesday, "2025-06-04", "2025-07-03"},
		{"three months", RangeThreeMonths, wednesday, "2025-06-04", "2025-09-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := tt.r.Window(tt.now)
			require.NoError(t, err)
			require.Equal(t, tt.start, start.Format(DateLayout))
			require.Equal(t, tt.end, end.Format(DateLayout))
		})
	}
}

func TestTimeRangeUnknown(t *testing.T) {
	_, _, err := TimeRange("fortnight").Window(wednesday)
	require.Error(t, err)
}

func TestSortOccurrencesDedupsAndResetsPrimary(t *testing.T) {
	ev := Event{
		PrimaryDate: "2025-09-01",
		PrimaryTime: "21:00",
		Occurrences: []Occurrence{
			{Date: "2025-09-01", Time: "21:00"},
			{Date: "2025-08-15", Time: "19:30"},
			{Date: "2025-09-01", Time: "21:00"},
			{Date: "2025-08-15", Time: "09:00"},
		},
	}
	ev.SortOccurrences()

	require.Equal(t, []Occurrence{
		{Date: "2025-08-15", Time: "09:00"},
		{Date: "2025-08-15", Time: "19:30"},
		{Date: "2025-09-01", Time: "21:00"},
	}, ev.Occurrences)
	require.Equal(t, "2025-08-15", ev.PrimaryDate)
	require.Equal(t, "09:00", ev.PrimaryTime)
}

func TestSortOccurrencesSynthesizesFromPrimary(t *testing.T) {
	ev := Event{PrimaryDate: "2025-08-15", PrimaryTime: "20:00"}
	ev.SortOccurrences()
	require.Equal(t, []Occurrence{{Date: "2025-08-15", Time: "20:00"}}, ev.Occurrences)
}

func TestFilterCriteriaValidate(t *testing.T) {
	valid := FilterCriteria{DistanceMiles: 10, TimeRange: RangeWeek}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		criteria FilterCriteria
	}{
		{"zero distance", FilterCriteria{DistanceMiles: 0, TimeRange: RangeWeek}},
		{"negative distance", FilterCriteria{DistanceMiles: -5, TimeRange: RangeWeek}},
		{"unknown range", FilterCriteria{DistanceMiles: 10, TimeRange: "soon"}},
		{"unknown category", FilterCriteria{DistanceMiles: 10, TimeRange: RangeWeek, Categories: []Category{"polka"}}},
		{"origin out of range", FilterCriteria{DistanceMiles: 10, TimeRange: RangeWeek, Origin: &Coordinates{Latitude: 91, Longitude: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.criteria.Validate())
		})
	}
}

func TestCategorySet(t *testing.T) {
	require.Nil(t, FilterCriteria{}.CategorySet())
	require.Nil(t, FilterCriteria{Categories: AllCategories}.CategorySet())

	set := FilterCriteria{Categories: []Category{CategoryMusic, CategoryFood}}.CategorySet()
	require.Len(t, set, 2)
	require.Contains(t, set, CategoryMusic)
	require.Contains(t, set, CategoryFood)
}

func TestOccurrenceAtDefaultsMidnight(t *testing.T) {
	at, err := Occurrence{Date: "2025-06-04"}.At(time.UTC)
	require.NoError(t, err)
	require.Equal(t, day(t, "2025-06-04"), at)
}

func TestProviderEventID(t *testing.T) {
	require.Equal(t, "ticketvault:ev-991", ProviderEventID("ticketvault", " ev-991 "))
}

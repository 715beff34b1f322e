package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Category is one of the fixed internal category codes. Adapters must map
// provider taxonomies into this set; arbitrary provider strings never leak
// past the adapter boundary.
type Category string

const (
	CategoryMusic      Category = "music"
	CategoryFood       Category = "food"
	CategorySports     Category = "sports"
	CategoryArts       Category = "arts"
	CategoryNightlife  Category = "nightlife"
	CategoryFitness    Category = "fitness"
	CategoryComedy     Category = "comedy"
	CategoryNetworking Category = "networking"
	CategoryFamily     Category = "family"
	CategoryOutdoor    Category = "outdoor"
	CategoryOther      Category = "other"
)

// AllCategories lists every valid category code.
var AllCategories = []Category{
	CategoryMusic,
	CategoryFood,
	CategorySports,
	CategoryArts,
	CategoryNightlife,
	CategoryFitness,
	CategoryComedy,
	CategoryNetworking,
	CategoryFamily,
	CategoryOutdoor,
	CategoryOther,
}

// Valid reports whether c is one of the fixed category codes.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ModerationStatus is the lifecycle state of a user-submitted event.
type ModerationStatus string

const (
	StatusActive       ModerationStatus = "active"
	StatusHiddenReview ModerationStatus = "hidden_review"
	StatusRemoved      ModerationStatus = "removed"
)

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the pair is a real position on the globe.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// DateLayout and TimeLayout are the canonical wire forms every adapter
// normalizes into, regardless of the provider's native format.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Occurrence is one concrete date+time instance of an event.
type Occurrence struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM, 24-hour
}

// Before reports whether o sorts strictly before other by (date, time).
func (o Occurrence) Before(other Occurrence) bool {
	if o.Date != other.Date {
		return o.Date < other.Date
	}
	return o.Time < other.Time
}

// At parses the occurrence into a time.Time in the given location.
func (o Occurrence) At(loc *time.Location) (time.Time, error) {
	t := o.Time
	if t == "" {
		t = "00:00"
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, o.Date+" "+t, loc)
}

// PlaceholderImageURL is used whenever a source provides no image.
const PlaceholderImageURL = "https://cdn.citypulse.example/img/event-placeholder.png"

// SourceUser marks records that came from the user-submitted store rather
// than an external provider.
const SourceUser = "user"

// Event is the canonical record the whole pipeline operates on. Provider
// records are ephemeral and recomputed on every discovery; only
// user-submitted events live in the local store.
type Event struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	PrimaryDate     string           `json:"primary_date"`
	PrimaryTime     string           `json:"primary_time"`
	Occurrences     []Occurrence     `json:"occurrences"`
	Location        string           `json:"location"`
	Address         string           `json:"address"`
	Coordinates     *Coordinates     `json:"coordinates,omitempty"`
	City            string           `json:"city,omitempty"`
	Region          string           `json:"region,omitempty"`
	Category        Category         `json:"category"`
	CategoryDisplay string           `json:"category_display"`
	Price           string           `json:"price"`
	Image           string           `json:"image"`
	TicketURL       string           `json:"ticket_url"`
	Description     string           `json:"description"`
	Source          string           `json:"source"`
	ReportCount     int              `json:"report_count,omitempty"`
	Status          ModerationStatus `json:"status,omitempty"`
}

// SortOccurrences orders the occurrence list ascending by (date, time),
// drops exact duplicates, and resets PrimaryDate/PrimaryTime to the first
// entry. Adapters and the merge step both call this before handing an
// event on.
func (e *Event) SortOccurrences() {
	if len(e.Occurrences) == 0 {
		if e.PrimaryDate != "" {
			e.Occurrences = []Occurrence{{Date: e.PrimaryDate, Time: e.PrimaryTime}}
		}
		return
	}
	sort.Slice(e.Occurrences, func(i, j int) bool {
		return e.Occurrences[i].Before(e.Occurrences[j])
	})
	deduped := e.Occurrences[:1]
	for _, occ := range e.Occurrences[1:] {
		last := deduped[len(deduped)-1]
		if occ.Date == last.Date && occ.Time == last.Time {
			continue
		}
		deduped = append(deduped, occ)
	}
	e.Occurrences = deduped
	e.PrimaryDate = e.Occurrences[0].Date
	e.PrimaryTime = e.Occurrences[0].Time
}

// TimeRange enumerates the supported discovery time windows.
type TimeRange string

const (
	RangeToday       TimeRange = "today"
	RangeTomorrow    TimeRange = "tomorrow"
	RangeWeek        TimeRange = "week"
	RangeWeekend     TimeRange = "weekend"
	RangeMonth       TimeRange = "month"
	RangeThreeMonths TimeRange = "3months"
	RangeYear        TimeRange = "year"
)

// Window resolves the range into inclusive calendar-day boundaries
// relative to now. Rolling ranges start today; "weekend" is the next
// Saturday-Sunday pair (the current one while it is still in progress).
func (r TimeRange) Window(now time.Time) (start, end time.Time, err error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch r {
	case RangeToday:
		return day, day, nil
	case RangeTomorrow:
		next := day.AddDate(0, 0, 1)
		return next, next, nil
	case RangeWeek:
		return day, day.AddDate(0, 0, 6), nil
	case RangeWeekend:
		daysToSaturday := (int(time.Saturday) - int(day.Weekday()) + 7) % 7
		if day.Weekday() == time.Sunday {
			// Sunday still belongs to the weekend in progress.
			return day.AddDate(0, 0, -1), day, nil
		}
		sat := day.AddDate(0, 0, daysToSaturday)
		return sat, sat.AddDate(0, 0, 1), nil
	case RangeMonth:
		return day, day.AddDate(0, 0, 29), nil
	case RangeThreeMonths:
		return day, day.AddDate(0, 0, 89), nil
	case RangeYear:
		return day, day.AddDate(0, 0, 364), nil
	default:
		return time.Time{}, time.Time{}, errors.Errorf("unknown time range %q", r)
	}
}

// FilterCriteria carries the user's discovery preferences. An empty
// Categories set means "no category filter"; the full set is equivalent.
type FilterCriteria struct {
	DistanceMiles float64      `json:"distance_miles"`
	TimeRange     TimeRange    `json:"time_range"`
	Categories    []Category   `json:"categories"`
	Origin        *Coordinates `json:"origin,omitempty"`
}

// Validate rejects malformed criteria before any network call is issued.
func (c FilterCriteria) Validate() error {
	if c.DistanceMiles <= 0 {
		return errors.Errorf("distance_miles must be positive, got %v", c.DistanceMiles)
	}
	if _, _, err := c.TimeRange.Window(time.Now()); err != nil {
		return err
	}
	for _, cat := range c.Categories {
		if !cat.Valid() {
			return errors.Errorf("unknown category %q", cat)
		}
	}
	if c.Origin != nil && !c.Origin.Valid() {
		return errors.Errorf("origin coordinates out of range: %v", *c.Origin)
	}
	return nil
}

// CategorySet returns the selected categories as a set, or nil when the
// selection does not constrain the result (empty or full set).
func (c FilterCriteria) CategorySet() map[Category]struct{} {
	if len(c.Categories) == 0 || len(c.Categories) >= len(AllCategories) {
		return nil
	}
	set := make(map[Category]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		set[cat] = struct{}{}
	}
	return set
}

// ProviderEventID builds the globally unique id for a provider-sourced
// event by prefixing the provider tag, keeping provider ids from colliding
// with user-submitted event ids.
func ProviderEventID(source, nativeID string) string {
	return fmt.Sprintf("%s:%s", source, strings.TrimSpace(nativeID))
}

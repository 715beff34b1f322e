package aggregator

import (
	"sort"
	"time"

	"example.com/citypulse/internal/geo"
	"example.com/citypulse/internal/models"
	"example.com/citypulse/internal/providers"
)

// Policy is the pure predicate/comparator pair derived from a
// FilterCriteria. It holds no references back to the engine, so it can be
// exercised on canned event lists without any network.
type Policy struct {
	criteria    models.FilterCriteria
	categories  map[models.Category]struct{}
	windowStart string
	windowEnd   string
}

// NewPolicy resolves the criteria's time window against now and returns
// the policy. Criteria must already be validated.
func NewPolicy(criteria models.FilterCriteria, now time.Time) (Policy, error) {
	start, end, err := criteria.TimeRange.Window(now)
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		criteria:    criteria,
		categories:  criteria.CategorySet(),
		windowStart: start.Format(models.DateLayout),
		windowEnd:   end.Format(models.DateLayout),
	}, nil
}

// Include applies the distance, time-window, and category predicates.
// Distance filtering is active whenever an origin is known; events without
// coordinates are then excluded, since their distance cannot be
// established.
func (p Policy) Include(ev models.Event) bool {
	if p.criteria.Origin != nil {
		if ev.Coordinates == nil {
			return false
		}
		if geo.HaversineMiles(*p.criteria.Origin, *ev.Coordinates) > p.criteria.DistanceMiles {
			return false
		}
	}
	if ev.PrimaryDate < p.windowStart || ev.PrimaryDate > p.windowEnd {
		return false
	}
	if p.categories != nil {
		if _, ok := p.categories[ev.Category]; !ok {
			return false
		}
	}
	return true
}

// Less is the deterministic presentation order: primary date ascending,
// then primary time, then provider weight (curated feeds first), then
// title, then id. The id tiebreak guarantees byte-identical ordering for
// any fixed input set.
func Less(a, b models.Event) bool {
	if a.PrimaryDate != b.PrimaryDate {
		return a.PrimaryDate < b.PrimaryDate
	}
	if a.PrimaryTime != b.PrimaryTime {
		return a.PrimaryTime < b.PrimaryTime
	}
	if wa, wb := providers.Weight(a.Source), providers.Weight(b.Source); wa != wb {
		return wa > wb
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.ID < b.ID
}

// Apply filters and orders the events, returning a fresh slice.
func (p Policy) Apply(events []models.Event) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if p.Include(ev) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

package aggregator

import (
	"strings"
	"time"

	"example.com/citypulse/internal/geo"
	"example.com/citypulse/internal/models"
)

// MergePolicy holds the duplicate-detection thresholds. They are tunable:
// the defaults are validated by the merge property tests, not carved in
// stone.
type MergePolicy struct {
	// TitleSimilarity is the minimum token-set similarity between
	// normalized titles for two records to be merge candidates.
	TitleSimilarity float64
	// VenueToleranceMeters is how far apart two coordinate pairs may be
	// and still count as the same venue.
	VenueToleranceMeters float64
	// DateToleranceDays is the maximum gap between the records' nearest
	// occurrence dates.
	DateToleranceDays int
}

// DefaultMergePolicy returns the tuned defaults.
func DefaultMergePolicy() MergePolicy {
	return MergePolicy{
		TitleSimilarity:      0.85,
		VenueToleranceMeters: 300,
		DateToleranceDays:    1,
	}
}

// Merge collapses records that describe the same real-world event into
// one. Later records fold into the first match; the survivor keeps the
// richer fields and the union of occurrence lists, with the primary
// recomputed from the earliest future occurrence.
func (p MergePolicy) Merge(events []models.Event, now time.Time) []models.Event {
	merged := make([]models.Event, 0, len(events))
	for _, candidate := range events {
		matched := false
		for i := range merged {
			if p.sameEvent(merged[i], candidate) {
				merged[i] = p.combine(merged[i], candidate, now)
				matched = true
				break
			}
		}
		if !matched {
			merged = append(merged, candidate)
		}
	}
	return merged
}

// sameEvent applies the duplicate heuristic: near-identical normalized
// titles, occurrence dates within tolerance, and either the same venue
// name or coordinates within venue tolerance.
func (p MergePolicy) sameEvent(a, b models.Event) bool {
	if tokenSetSimilarity(normalizeTitle(a.Title), normalizeTitle(b.Title)) < p.TitleSimilarity {
		return false
	}
	if !datesWithin(a.Occurrences, b.Occurrences, p.DateToleranceDays) {
		return false
	}
	venueA := normalizeTitle(a.Location)
	venueB := normalizeTitle(b.Location)
	if venueA != "" && venueA == venueB {
		return true
	}
	if a.Coordinates != nil && b.Coordinates != nil &&
		geo.HaversineMeters(*a.Coordinates, *b.Coordinates) <= p.VenueToleranceMeters {
		return true
	}
	return false
}

// combine folds dup into base, preferring the record with a direct ticket
// link and the richer description/image.
func (p MergePolicy) combine(base, dup models.Event, now time.Time) models.Event {
	primary, secondary := base, dup
	switch {
	case primary.TicketURL == "" && secondary.TicketURL != "":
		primary, secondary = secondary, primary
	case primary.TicketURL == secondary.TicketURL || (primary.TicketURL != "" && secondary.TicketURL != ""):
		if len(secondary.Description) > len(primary.Description) {
			primary, secondary = secondary, primary
		}
	}

	out := primary
	if len(secondary.Description) > len(out.Description) {
		out.Description = secondary.Description
	}
	if out.Image == models.PlaceholderImageURL && secondary.Image != models.PlaceholderImageURL && secondary.Image != "" {
		out.Image = secondary.Image
	}
	if out.Coordinates == nil {
		out.Coordinates = secondary.Coordinates
	}
	if out.Location == "" {
		out.Location = secondary.Location
	}
	if out.Address == "" {
		out.Address = secondary.Address
	}
	if out.City == "" {
		out.City = secondary.City
	}
	if out.Region == "" {
		out.Region = secondary.Region
	}
	if out.Category == models.CategoryOther && secondary.Category != models.CategoryOther {
		out.Category = secondary.Category
		out.CategoryDisplay = secondary.CategoryDisplay
	}

	out.Occurrences = append(append([]models.Occurrence{}, primary.Occurrences...), secondary.Occurrences...)
	out.SortOccurrences()

	// Primary date/time come from the earliest future occurrence. Past
	// occurrences are dropped unless that would empty the list.
	today := now.Format(models.DateLayout)
	future := out.Occurrences[:0:0]
	for _, occ := range out.Occurrences {
		if occ.Date >= today {
			future = append(future, occ)
		}
	}
	if len(future) > 0 {
		out.Occurrences = future
		out.PrimaryDate = future[0].Date
		out.PrimaryTime = future[0].Time
	}
	return out
}

// normalizeTitle lowercases, strips punctuation, and collapses whitespace.
func normalizeTitle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenSetSimilarity is the Jaccard index of the two token sets.
func tokenSetSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	setA := map[string]struct{}{}
	for _, tok := range strings.Fields(a) {
		setA[tok] = struct{}{}
	}
	setB := map[string]struct{}{}
	for _, tok := range strings.Fields(b) {
		setB[tok] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// datesWithin reports whether any pair of occurrence dates from the two
// lists is at most toleranceDays apart.
func datesWithin(a, b []models.Occurrence, toleranceDays int) bool {
	for _, occA := range a {
		dA, err := time.Parse(models.DateLayout, occA.Date)
		if err != nil {
			continue
		}
		for _, occB := range b {
			dB, err := time.Parse(models.DateLayout, occB.Date)
			if err != nil {
				continue
			}
			diff := dA.Sub(dB)
			if diff < 0 {
				diff = -diff
			}
			if diff <= time.Duration(toleranceDays)*24*time.Hour {
				return true
			}
		}
	}
	return false
}

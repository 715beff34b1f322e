package providers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/teambition/rrule-go"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/category"
	"example.com/citypulse/internal/geo"
	"example.com/citypulse/internal/models"
)

// Expansion horizon and cap for recurring VEVENTs. A weekly event over one
// year is 52 occurrences; the cap only guards against pathological rules.
const (
	icsExpandHorizonDays = 365
	icsMaxOccurrences    = 366
)

// CommunityCal reads a public ICS feed of community events. Recurring
// VEVENTs (RRULE) are expanded into the canonical multi-date occurrence
// list; the GEO property supplies coordinates when present, otherwise the
// LOCATION text goes through the geocoder.
type CommunityCal struct {
	feedURL  string
	client   *http.Client
	geocoder Geocoder
}

// NewCommunityCal builds the adapter from config.
func NewCommunityCal(cfg config.CommunityCalConfig, geocoder Geocoder) *CommunityCal {
	return &CommunityCal{
		feedURL:  cfg.FeedURL,
		client:   &http.Client{},
		geocoder: geocoder,
	}
}

func (p *CommunityCal) Name() string { return SourceCommunityCal }

// FetchEvents downloads and expands the feed, then filters to events
// within radiusMiles of origin. Feed entries without resolvable
// coordinates are kept; the engine's distance filter decides their fate.
func (p *CommunityCal) FetchEvents(ctx context.Context, origin models.Coordinates, radiusMiles float64, since time.Time) ([]models.Event, error) {
	if radiusMiles <= 0 {
		return nil, errors.Errorf("radius must be positive, got %v", radiusMiles)
	}
	events, err := p.fetchFeed(ctx, since)
	if err != nil {
		return nil, err
	}
	var out []models.Event
	for _, ev := range events {
		if ev.Coordinates != nil && geo.HaversineMiles(origin, *ev.Coordinates) > radiusMiles {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// FetchEventsByPlaceName keeps feed entries whose location mentions the
// place.
func (p *CommunityCal) FetchEventsByPlaceName(ctx context.Context, place string, since time.Time) ([]models.Event, error) {
	events, err := p.fetchFeed(ctx, since)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(place))
	var out []models.Event
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Location+" "+ev.Address), needle) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (p *CommunityCal) fetchFeed(ctx context.Context, since time.Time) ([]models.Event, error) {
	if since.IsZero() {
		since = time.Now()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build ics request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "ics feed request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("ics feed returned status %d", resp.StatusCode)
	}

	cal, err := ical.ParseCalendar(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ics feed")
	}

	rangeEnd := since.AddDate(0, 0, icsExpandHorizonDays)
	var events []models.Event
	for _, ve := range cal.Events() {
		ev, ok := p.normalizeVEvent(ctx, ve, since, rangeEnd)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (p *CommunityCal) normalizeVEvent(ctx context.Context, ve *ical.VEvent, since, rangeEnd time.Time) (models.Event, bool) {
	title := propValue(ve, ical.ComponentPropertySummary)
	if strings.TrimSpace(title) == "" {
		return models.Event{}, false
	}

	start, err := ve.GetStartAt()
	if err != nil || start.IsZero() {
		return models.Event{}, false
	}

	starts := []time.Time{start}
	if rawRRule := propValue(ve, ical.ComponentPropertyRrule); rawRRule != "" {
		starts = expandRRule(rawRRule, start, since, rangeEnd)
		if len(starts) == 0 {
			return models.Event{}, false
		}
	} else if start.Before(since.Truncate(24 * time.Hour)) {
		return models.Event{}, false
	}

	occurrences := make([]models.Occurrence, 0, len(starts))
	for _, s := range starts {
		occurrences = append(occurrences, models.Occurrence{
			Date: s.Format(models.DateLayout),
			Time: s.Format(models.TimeLayout),
		})
	}

	location := propValue(ve, ical.ComponentPropertyLocation)
	description := propValue(ve, ical.ComponentPropertyDescription)
	cat, display := category.Classify(title, location, "")

	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		uid = slugify(title + "-" + occurrences[0].Date)
	}

	ev := models.Event{
		ID:              models.ProviderEventID(SourceCommunityCal, uid),
		Title:           strings.TrimSpace(title),
		Occurrences:     occurrences,
		Location:        strings.TrimSpace(location),
		Category:        cat,
		CategoryDisplay: display,
		Price:           priceOrFallback(""),
		Image:           imageOrPlaceholder(""),
		Description:     strings.TrimSpace(description),
		Source:          SourceCommunityCal,
	}
	if url := propValue(ve, ical.ComponentPropertyUrl); url != "" {
		ev.TicketURL = url
	}

	if coords := parseGeoProperty(ve); coords != nil {
		ev.Coordinates = coords
	} else if p.geocoder != nil && ev.Location != "" {
		coords, err := p.geocoder.Geocode(ctx, ev.Location)
		if err == nil {
			ev.Coordinates = coords
		} else if !errors.Is(err, geo.ErrNotFound) {
			log.Debug().Err(err).Str("location", ev.Location).Msg("Failed to geocode ics event")
		}
	}

	ev.SortOccurrences()
	return ev, true
}

// expandRRule turns an RRULE into concrete start times within the window.
func expandRRule(raw string, dtstart, rangeStart, rangeEnd time.Time) []time.Time {
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		log.Warn().Err(err).Str("rrule", raw).Msg("Failed to parse RRULE, using DTSTART only")
		if dtstart.Before(rangeStart) {
			return nil
		}
		return []time.Time{dtstart}
	}
	r.DTStart(dtstart)

	var set rrule.Set
	set.RRule(r)

	starts := set.Between(rangeStart.In(dtstart.Location()), rangeEnd.In(dtstart.Location()), true)
	if len(starts) > icsMaxOccurrences {
		starts = starts[:icsMaxOccurrences]
	}
	return starts
}

// parseGeoProperty reads the "GEO" property ("lat;lon") if present.
func parseGeoProperty(ve *ical.VEvent) *models.Coordinates {
	prop := ve.GetProperty("GEO")
	if prop == nil || prop.Value == "" {
		return nil
	}
	parts := strings.SplitN(prop.Value, ";", 2)
	if len(parts) != 2 {
		return nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	coords := models.Coordinates{Latitude: lat, Longitude: lon}
	if !coords.Valid() {
		return nil
	}
	return &coords
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if prop := ve.GetProperty(name); prop != nil {
		return prop.Value
	}
	return ""
}

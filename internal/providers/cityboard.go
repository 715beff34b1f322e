package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/category"
	"example.com/citypulse/internal/geo"
	"example.com/citypulse/internal/models"
)

// Geocoder is the slice of the geo.Geocoder that scraping adapters need to
// fill in coordinates for venues that only publish an address.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
}

// CityBoard scrapes a community listings page. The board publishes no
// taxonomy and no coordinates, so every record goes through the classifier
// and the venue address goes through the geocoder.
type CityBoard struct {
	pageURL  string
	client   *http.Client
	geocoder Geocoder
}

// NewCityBoard builds the scraper from config.
func NewCityBoard(cfg config.CityBoardConfig, geocoder Geocoder) *CityBoard {
	return &CityBoard{
		pageURL:  cfg.URL,
		client:   &http.Client{},
		geocoder: geocoder,
	}
}

func (p *CityBoard) Name() string { return SourceCityBoard }

// FetchEvents scrapes the listings page and filters to events within
// radiusMiles of origin. Listings whose address cannot be geocoded keep a
// nil Coordinates and are left for the engine's distance filter to drop.
func (p *CityBoard) FetchEvents(ctx context.Context, origin models.Coordinates, radiusMiles float64, since time.Time) ([]models.Event, error) {
	if radiusMiles <= 0 {
		return nil, errors.Errorf("radius must be positive, got %v", radiusMiles)
	}
	events, err := p.scrape(ctx, since)
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

// FetchEventsByPlaceName is the degraded-mode lookup: scrape the board and
// keep listings whose venue or address mentions the place.
func (p *CityBoard) FetchEventsByPlaceName(ctx context.Context, place string, since time.Time) ([]models.Event, error) {
	events, err := p.scrape(ctx, since)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(place))
	var out []models.Event
	for _, ev := range events {
		haystack := strings.ToLower(ev.Location + " " + ev.Address + " " + ev.City)
		if strings.Contains(haystack, needle) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (p *CityBoard) scrape(ctx context.Context, since time.Time) ([]models.Event, error) {
	if since.IsZero() {
		since = time.Now()
	}
	sinceDate := since.Format(models.DateLayout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build cityboard request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "cityboard request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("cityboard returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse cityboard page")
	}

	var events []models.Event
	doc.Find("article.event-card").Each(func(i int, card *goquery.Selection) {
		ev, ok := p.normalizeCard(ctx, card)
		if !ok {
			return
		}
		if ev.PrimaryDate < sinceDate {
			return
		}
		events = append(events, ev)
	})
	return events, nil
}

func (p *CityBoard) normalizeCard(ctx context.Context, card *goquery.Selection) (models.Event, bool) {
	title := cleanText(card.Find(".event-title").Text())
	if title == "" {
		return models.Event{}, false
	}

	dateStr := cleanText(card.Find(".event-date").Text())
	occ, err := parseBoardDate(dateStr)
	if err != nil {
		return models.Event{}, false
	}
	if timeStr := cleanText(card.Find(".event-time").Text()); timeStr != "" {
		occ.Time = parseClockTime(timeStr)
	}

	venue := cleanText(card.Find(".event-venue").Text())
	address := cleanText(card.Find(".event-address").Text())

	slug, _ := card.Attr("data-event-id")
	if slug == "" {
		slug = slugify(title + "-" + occ.Date)
	}

	cat, display := category.Classify(title, venue, "")

	ev := models.Event{
		ID:              models.ProviderEventID(SourceCityBoard, slug),
		Title:           title,
		Occurrences:     []models.Occurrence{occ},
		Location:        venue,
		Address:         address,
		Category:        cat,
		CategoryDisplay: display,
		Price:           priceOrFallback(cleanText(card.Find(".event-price").Text())),
		Description:     cleanText(card.Find(".event-description").Text()),
		Source:          SourceCityBoard,
	}
	if src, ok := card.Find("img").Attr("src"); ok {
		ev.Image = src
	}
	ev.Image = imageOrPlaceholder(ev.Image)
	if href, ok := card.Find("a.event-tickets").Attr("href"); ok {
		ev.TicketURL = href
	}

	if p.geocoder != nil {
		query := address
		if query == "" {
			query = venue
		}
		coords, err := p.geocoder.Geocode(ctx, query)
		if err == nil {
			ev.Coordinates = coords
		} else if !errors.Is(err, geo.ErrNotFound) {
			log.Debug().Err(err).Str("venue", venue).Msg("Failed to geocode cityboard listing")
		}
	}

	ev.SortOccurrences()
	return ev, true
}

// parseBoardDate handles the handful of date formats the board renders.
func parseBoardDate(s string) (models.Occurrence, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Occurrence{}, errors.New("empty date")
	}
	for _, layout := range []string{"January 2, 2006", "Jan 2, 2006", "02 Jan 2006", models.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Occurrence{Date: t.Format(models.DateLayout), Time: "00:00"}, nil
		}
	}
	return models.Occurrence{}, errors.Errorf("unparseable date %q", s)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	return url.PathEscape(b.String())
}

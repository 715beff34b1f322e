package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/category"
	"example.com/citypulse/internal/models"
)

// SeatStream is an events API that authenticates with a client id in the
// query string and reports the start as separate local_date (MM/DD/YYYY)
// and local_time (h:mm AM/PM) fields. Its taxonomy list is spotty, so the
// classifier gets the first look and the taxonomy is only a hint.
type SeatStream struct {
	baseURL  string
	clientID string
	pageSize int
	client   *http.Client
}

// NewSeatStream builds the adapter from config.
func NewSeatStream(cfg config.SeatStreamConfig) *SeatStream {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &SeatStream{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		clientID: cfg.ClientID,
		pageSize: pageSize,
		client:   &http.Client{},
	}
}

func (p *SeatStream) Name() string { return SourceSeatStream }

type seatStreamResponse struct {
	Listings []seatStreamListing `json:"listings"`
}

type seatStreamListing struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	LocalDate  string `json:"local_date"` // MM/DD/YYYY
	LocalTime  string `json:"local_time"` // h:mm AM/PM
	Taxonomies []struct {
		Name string `json:"name"`
	} `json:"taxonomies"`
	Venue struct {
		Name     string `json:"name"`
		Address  string `json:"address"`
		City     string `json:"city"`
		State    string `json:"state"`
		Location struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"location"`
	} `json:"venue"`
	PriceDisplay string `json:"price_display"`
	Image        string `json:"image"`
	TicketsURL   string `json:"tickets_url"`
	Summary      string `json:"summary"`
}

// FetchEvents queries listings around origin.
func (p *SeatStream) FetchEvents(ctx context.Context, origin models.Coordinates, radiusMiles float64, since time.Time) ([]models.Event, error) {
	if radiusMiles <= 0 {
		return nil, errors.Errorf("radius must be positive, got %v", radiusMiles)
	}
	if since.IsZero() {
		since = time.Now()
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(origin.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(origin.Longitude, 'f', 6, 64))
	q.Set("range", strconv.FormatFloat(radiusMiles, 'f', 0, 64)+"mi")
	q.Set("from", since.Format(models.DateLayout))
	return p.fetch(ctx, q)
}

// FetchEventsByKeyword searches listings by free text.
func (p *SeatStream) FetchEventsByKeyword(ctx context.Context, keyword string, since time.Time) ([]models.Event, error) {
	if since.IsZero() {
		since = time.Now()
	}
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("from", since.Format(models.DateLayout))
	return p.fetch(ctx, q)
}

// FetchEventsByPlaceName searches listings by venue/place name.
func (p *SeatStream) FetchEventsByPlaceName(ctx context.Context, place string, since time.Time) ([]models.Event, error) {
	if since.IsZero() {
		since = time.Now()
	}
	q := url.Values{}
	q.Set("venue", place)
	q.Set("from", since.Format(models.DateLayout))
	return p.fetch(ctx, q)
}

func (p *SeatStream) fetch(ctx context.Context, q url.Values) ([]models.Event, error) {
	q.Set("client_id", p.clientID)
	q.Set("per_page", strconv.Itoa(p.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/listings?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build seatstream request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "seatstream request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("seatstream returned status %d", resp.StatusCode)
	}

	var parsed seatStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode seatstream response")
	}

	var events []models.Event
	for _, raw := range parsed.Listings {
		if ev, ok := p.normalize(raw); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (p *SeatStream) normalize(raw seatStreamListing) (models.Event, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return models.Event{}, false
	}

	date, err := parseUSDate(raw.LocalDate)
	if err != nil {
		return models.Event{}, false
	}
	occ := models.Occurrence{Date: date, Time: parseClockTime(raw.LocalTime)}

	hint := ""
	if len(raw.Taxonomies) > 0 {
		hint = raw.Taxonomies[0].Name
	}
	cat, display := category.Classify(title, raw.Venue.Name, hint)

	ev := models.Event{
		ID:              models.ProviderEventID(SourceSeatStream, strconv.FormatInt(raw.ID, 10)),
		Title:           title,
		Occurrences:     []models.Occurrence{occ},
		Location:        strings.TrimSpace(raw.Venue.Name),
		Address:         strings.TrimSpace(raw.Venue.Address),
		City:            raw.Venue.City,
		Region:          raw.Venue.State,
		Category:        cat,
		CategoryDisplay: display,
		Price:           priceOrFallback(raw.PriceDisplay),
		Image:           imageOrPlaceholder(raw.Image),
		TicketURL:       raw.TicketsURL,
		Description:     strings.TrimSpace(raw.Summary),
		Source:          SourceSeatStream,
	}
	coords := models.Coordinates{Latitude: raw.Venue.Location.Lat, Longitude: raw.Venue.Location.Lon}
	if (coords.Latitude != 0 || coords.Longitude != 0) && coords.Valid() {
		ev.Coordinates = &coords
	}
	ev.SortOccurrences()
	return ev, true
}

// parseUSDate converts MM/DD/YYYY into the canonical YYYY-MM-DD form.
func parseUSDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"01/02/2006", "1/2/2006", models.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.DateLayout), nil
		}
	}
	return "", errors.Errorf("unparseable date %q", s)
}

// parseClockTime converts "7:30 PM" style strings into canonical 24-hour
// HH:MM, defaulting to 00:00 when unparseable or absent.
func parseClockTime(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "00:00"
	}
	for _, layout := range []string{"3:04 PM", "3:04PM", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.TimeLayout)
		}
	}
	return "00:00"
}

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

// TicketVault is a ticketing API with bearer-token auth, page/page_size
// pagination, and combined ISO-8601 timestamps. Its taxonomy is reliable,
// so category assignment goes through the static mapping table first and
// only falls back to the classifier for unknown segments.
type TicketVault struct {
	baseURL  string
	token    string
	pageSize int
	maxPages int
	client   *http.Client
}

// NewTicketVault builds the adapter from config.
func NewTicketVault(cfg config.TicketVaultConfig) *TicketVault {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}
	return &TicketVault{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
		pageSize: pageSize,
		maxPages: maxPages,
		client:   &http.Client{},
	}
}

func (p *TicketVault) Name() string { return SourceTicketVault }

type ticketVaultResponse struct {
	Events []ticketVaultEvent `json:"events"`
	Meta   struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

type ticketVaultEvent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	StartsAt string `json:"starts_at"` // ISO-8601, e.g. 2025-06-01T19:30:00-04:00
	Dates    []struct {
		StartsAt string `json:"starts_at"`
	} `json:"dates"`
	Segment string `json:"segment"`
	Venue   struct {
		Name      string   `json:"name"`
		Address   string   `json:"address"`
		City      string   `json:"city"`
		Region    string   `json:"region"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"venue"`
	PriceRange  string `json:"price_range"`
	ImageURL    string `json:"image_url"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// FetchEvents pages through the events endpoint around origin.
func (p *TicketVault) FetchEvents(ctx context.Context, origin models.Coordinates, radiusMiles float64, since time.Time) ([]models.Event, error) {
	if radiusMiles <= 0 {
		return nil, errors.Errorf("radius must be positive, got %v", radiusMiles)
	}
	if since.IsZero() {
		since = time.Now()
	}

	var events []models.Event
	for page := 1; page <= p.maxPages; page++ {
		q := url.Values{}
		q.Set("lat", strconv.FormatFloat(origin.Latitude, 'f', 6, 64))
		q.Set("lon", strconv.FormatFloat(origin.Longitude, 'f', 6, 64))
		q.Set("radius", strconv.FormatFloat(radiusMiles, 'f', 1, 64))
		q.Set("start_date", since.Format(models.DateLayout))
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(p.pageSize))

		resp, err := p.fetchPage(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Events {
			if ev, ok := p.normalize(raw); ok {
				events = append(events, ev)
			}
		}
		if resp.Meta.TotalPages == 0 || page >= resp.Meta.TotalPages {
			break
		}
	}
	return events, nil
}

// FetchEventsByKeyword is the degraded-mode lookup when no coordinates are
// available.
func (p *TicketVault) FetchEventsByKeyword(ctx context.Context, keyword string, since time.Time) ([]models.Event, error) {
	if since.IsZero() {
		since = time.Now()
	}
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("start_date", since.Format(models.DateLayout))
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(p.pageSize))

	resp, err := p.fetchPage(ctx, q)
	if err != nil {
		return nil, err
	}
	var events []models.Event
	for _, raw := range resp.Events {
		if ev, ok := p.normalize(raw); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (p *TicketVault) fetchPage(ctx context.Context, q url.Values) (*ticketVaultResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/events?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build ticketvault request")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "ticketvault request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("ticketvault returned status %d", resp.StatusCode)
	}

	var parsed ticketVaultResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode ticketvault response")
	}
	return &parsed, nil
}

// normalize converts one provider record into the canonical shape. Records
// without a title or a parseable start time are dropped.
func (p *TicketVault) normalize(raw ticketVaultEvent) (models.Event, bool) {
	title := strings.TrimSpace(raw.Name)
	if title == "" {
		return models.Event{}, false
	}

	var occurrences []models.Occurrence
	appendStamp := func(stamp string) {
		if occ, err := parseISOStamp(stamp); err == nil {
			occurrences = append(occurrences, occ)
		}
	}
	appendStamp(raw.StartsAt)
	for _, d := range raw.Dates {
		appendStamp(d.StartsAt)
	}
	if len(occurrences) == 0 {
		return models.Event{}, false
	}

	cat, display := category.Classify("", "", raw.Segment)
	if c, ok := category.FromTaxonomy(raw.Segment); ok {
		cat, display = c, category.DisplayLabel(c)
	}

	ev := models.Event{
		ID:              models.ProviderEventID(SourceTicketVault, raw.ID),
		Title:           title,
		Occurrences:     occurrences,
		Location:        strings.TrimSpace(raw.Venue.Name),
		Address:         strings.TrimSpace(raw.Venue.Address),
		City:            raw.Venue.City,
		Region:          raw.Venue.Region,
		Category:        cat,
		CategoryDisplay: display,
		Price:           priceOrFallback(raw.PriceRange),
		Image:           imageOrPlaceholder(raw.ImageURL),
		TicketURL:       raw.URL,
		Description:     strings.TrimSpace(raw.Description),
		Source:          SourceTicketVault,
	}
	if raw.Venue.Latitude != nil && raw.Venue.Longitude != nil {
		coords := models.Coordinates{Latitude: *raw.Venue.Latitude, Longitude: *raw.Venue.Longitude}
		if coords.Valid() {
			ev.Coordinates = &coords
		}
	}
	ev.SortOccurrences()
	return ev, true
}

// parseISOStamp splits a combined ISO-8601 timestamp into the canonical
// date/time pair, keeping the provider's local wall-clock time.
func parseISOStamp(stamp string) (models.Occurrence, error) {
	stamp = strings.TrimSpace(stamp)
	if stamp == "" {
		return models.Occurrence{}, errors.New("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, stamp); err == nil {
			return models.Occurrence{
				Date: t.Format(models.DateLayout),
				Time: t.Format(models.TimeLayout),
			}, nil
		}
	}
	if t, err := time.Parse(models.DateLayout, stamp); err == nil {
		return models.Occurrence{Date: t.Format(models.DateLayout), Time: "00:00"}, nil
	}
	return models.Occurrence{}, errors.Errorf("unparseable timestamp %q", stamp)
}

func priceOrFallback(price string) string {
	price = strings.TrimSpace(price)
	if price == "" {
		return "See provider"
	}
	return price
}

func imageOrPlaceholder(imageURL string) string {
	if strings.TrimSpace(imageURL) == "" {
		return models.PlaceholderImageURL
	}
	return imageURL
}

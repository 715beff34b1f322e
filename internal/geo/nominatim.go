package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"example.com/citypulse/internal/models"
)

// nominatimProvider is the open-data fallback geocoding backend.
type nominatimProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func (p *nominatimProvider) Name() string { return "nominatim" }

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Suburb  string `json:"suburb"`
		County  string `json:"county"`
		State   string `json:"state"`
	} `json:"address"`
}

func (p *nominatimProvider) Geocode(ctx context.Context, query string) (*models.Coordinates, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	var results []nominatimResult
	if err := p.do(ctx, "/search", q, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, errors.Wrap(err, "bad latitude in nominatim response")
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, errors.Wrap(err, "bad longitude in nominatim response")
	}
	return &models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func (p *nominatimProvider) ReverseGeocode(ctx context.Context, c models.Coordinates) (*Place, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(c.Longitude, 'f', 6, 64))
	q.Set("format", "jsonv2")

	var result nominatimResult
	if err := p.do(ctx, "/reverse", q, &result); err != nil {
		return nil, err
	}

	place := &Place{Region: result.Address.State}
	// Same precedence as the primary provider: a proper locality first
	// (city/town/village), then sublocality, then county, then the first
	// segment of the display name.
	for _, name := range []string{
		result.Address.City,
		result.Address.Town,
		result.Address.Village,
		result.Address.Suburb,
		result.Address.County,
	} {
		if name != "" {
			place.City = name
			break
		}
	}
	if place.City == "" && result.DisplayName != "" {
		place.City = strings.TrimSpace(strings.SplitN(result.DisplayName, ",", 2)[0])
	}
	if place.City == "" {
		return nil, ErrNotFound
	}
	return place, nil
}

func (p *nominatimProvider) do(ctx context.Context, path string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to build nominatim request")
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "nominatim request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("nominatim returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode nominatim response")
	}
	return nil
}

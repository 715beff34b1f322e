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

// mapsProvider is the primary, structured geocoding backend. It speaks the
// results/geometry/address_components response shape.
type mapsProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func (p *mapsProvider) Name() string { return "maps" }

type mapsResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (p *mapsProvider) Geocode(ctx context.Context, query string) (*models.Coordinates, error) {
	q := url.Values{}
	q.Set("address", query)
	q.Set("key", p.apiKey)

	var resp mapsResponse
	if err := p.do(ctx, q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	loc := resp.Results[0].Geometry.Location
	return &models.Coordinates{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

func (p *mapsProvider) ReverseGeocode(ctx context.Context, c models.Coordinates) (*Place, error) {
	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(c.Latitude, 'f', 6, 64)+","+strconv.FormatFloat(c.Longitude, 'f', 6, 64))
	q.Set("key", p.apiKey)

	var resp mapsResponse
	if err := p.do(ctx, q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}

	result := resp.Results[0]
	place := &Place{}
	// City precedence: locality > sublocality > administrative_area_level_2,
	// then the first comma segment of the formatted address. This order is
	// what the user ends up seeing as "their" city, so it must not change.
	byType := func(wanted string) string {
		for _, comp := range result.AddressComponents {
			for _, t := range comp.Types {
				if t == wanted {
					return comp.LongName
				}
			}
		}
		return ""
	}
	for _, t := range []string{"locality", "sublocality", "administrative_area_level_2"} {
		if name := byType(t); name != "" {
			place.City = name
			break
		}
	}
	if place.City == "" {
		if segments := strings.SplitN(result.FormattedAddress, ",", 2); len(segments) > 0 {
			place.City = strings.TrimSpace(segments[0])
		}
	}
	for _, comp := range result.AddressComponents {
		for _, t := range comp.Types {
			if t == "administrative_area_level_1" {
				place.Region = comp.ShortName
			}
		}
	}
	if place.City == "" {
		return nil, ErrNotFound
	}
	return place, nil
}

func (p *mapsProvider) do(ctx context.Context, query url.Values, out *mapsResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to build maps request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "maps request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("maps returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode maps response")
	}
	if out.Status != "" && out.Status != "OK" && out.Status != "ZERO_RESULTS" {
		return errors.Errorf("maps returned status %q", out.Status)
	}
	return nil
}

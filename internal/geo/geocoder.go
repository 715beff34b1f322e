// Package geo provides great-circle distance math and a two-tier
// forward/reverse geocoder shared by the aggregation pipeline and event
// submission.
package geo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/cache"
	"example.com/citypulse/internal/models"
)

// ErrNotFound is returned when neither geocoding provider produced a
// usable result. Callers must treat it as a normal, expected outcome.
var ErrNotFound = errors.New("geocoder: no result")

// Place is a reverse-geocode result.
type Place struct {
	City   string `json:"city"`
	Region string `json:"region"`
}

// provider is one geocoding backend.
type provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
	ReverseGeocode(ctx context.Context, c models.Coordinates) (*Place, error)
}

// Geocoder tries the primary structured provider first and falls back to
// the open-data provider on failure or empty result. A single fallback
// attempt, no retries. Results are cached in Redis when a cache is
// available.
type Geocoder struct {
	primary  provider
	fallback provider
	cache    *cache.RedisCache
	cacheTTL time.Duration
}

// NewGeocoder builds the geocoder from config. Either provider may be
// disabled by leaving its URL empty.
func NewGeocoder(cfg config.GeocodingConfig, redisCache *cache.RedisCache) *Geocoder {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	g := &Geocoder{
		cache:    redisCache,
		cacheTTL: 24 * time.Hour,
	}
	if cfg.MapsURL != "" {
		g.primary = &mapsProvider{baseURL: cfg.MapsURL, apiKey: cfg.MapsAPIKey, client: httpClient}
	}
	if cfg.NominatimURL != "" {
		g.fallback = &nominatimProvider{baseURL: cfg.NominatimURL, userAgent: cfg.UserAgent, client: httpClient}
	}
	return g
}

// Geocode resolves a free-text address or place name to coordinates.
// Queries shorter than 3 characters after trimming short-circuit to
// ErrNotFound without issuing any request.
func (g *Geocoder) Geocode(ctx context.Context, query string) (*models.Coordinates, error) {
	query = strings.TrimSpace(query)
	if len(query) < 3 {
		return nil, ErrNotFound
	}

	cacheKey := geocodeCacheKey(query)
	var cached models.Coordinates
	if g.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	for _, p := range []provider{g.primary, g.fallback} {
		if p == nil {
			continue
		}
		coords, err := p.Geocode(ctx, query)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Warn().Err(err).Str("provider", p.Name()).Str("query", query).
					Msg("Geocode request failed, trying next provider")
			}
			continue
		}
		if coords != nil && coords.Valid() {
			g.cacheSet(ctx, cacheKey, coords)
			return coords, nil
		}
	}
	return nil, ErrNotFound
}

// ReverseGeocode resolves coordinates to a city/region pair using the
// same primary-then-fallback order as forward geocoding.
func (g *Geocoder) ReverseGeocode(ctx context.Context, c models.Coordinates) (*Place, error) {
	if !c.Valid() {
		return nil, errors.Errorf("invalid coordinates: %v", c)
	}

	cacheKey := reverseCacheKey(c)
	var cached Place
	if g.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	for _, p := range []provider{g.primary, g.fallback} {
		if p == nil {
			continue
		}
		place, err := p.ReverseGeocode(ctx, c)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Warn().Err(err).Str("provider", p.Name()).
					Msg("Reverse geocode request failed, trying next provider")
			}
			continue
		}
		if place != nil && place.City != "" {
			g.cacheSet(ctx, cacheKey, place)
			return place, nil
		}
	}
	return nil, ErrNotFound
}

func (g *Geocoder) cacheGet(ctx context.Context, key string, value interface{}) bool {
	if g.cache == nil {
		return false
	}
	return g.cache.Get(ctx, key, value) == nil
}

func (g *Geocoder) cacheSet(ctx context.Context, key string, value interface{}) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, value, g.cacheTTL); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Failed to cache geocode result")
	}
}

func geocodeCacheKey(query string) string {
	return "geocode:" + strings.ToLower(query)
}

func reverseCacheKey(c models.Coordinates) string {
	// Four decimal places is ~11 m, plenty for a city-level lookup.
	return fmt.Sprintf("revgeo:%.4f,%.4f", c.Latitude, c.Longitude)
}

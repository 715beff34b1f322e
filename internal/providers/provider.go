// Package providers contains one adapter per external event source. Each
// adapter is a pure fetch-and-transform: it converts the provider's native
// response shape into canonical Event records and keeps every
// provider-specific field behind its own boundary. Adapters never cache
// and never mutate shared state; all failures come back as errors for the
// aggregation engine to treat as partial.
package providers

import (
	"context"
	"time"

	"example.com/citypulse/internal/models"
)

// Provider is the contract every event source adapter implements.
type Provider interface {
	// Name is the source discriminator stamped into Event.Source and
	// prefixed onto provider event ids.
	Name() string

	// FetchEvents returns normalized events around origin within
	// radiusMiles, starting at since. Implementations must honor ctx
	// cancellation; the engine runs each call under its own timeout.
	FetchEvents(ctx context.Context, origin models.Coordinates, radiusMiles float64, since time.Time) ([]models.Event, error)
}

// KeywordSearcher is the degraded-mode lookup for adapters that can search
// by free text when no coordinates are available.
type KeywordSearcher interface {
	FetchEventsByKeyword(ctx context.Context, keyword string, since time.Time) ([]models.Event, error)
}

// PlaceSearcher is the degraded-mode lookup for adapters that can search
// by a place name when no coordinates are available.
type PlaceSearcher interface {
	FetchEventsByPlaceName(ctx context.Context, place string, since time.Time) ([]models.Event, error)
}

// Weight returns the ranking weight for a source, used only to break ties
// between events on the same date and time. Curated ticketing feeds sort
// ahead of scraped or user-submitted listings.
func Weight(source string) int {
	switch source {
	case SourceTicketVault:
		return 40
	case SourceSeatStream:
		return 30
	case SourceCommunityCal:
		return 20
	case SourceCityBoard:
		return 10
	default:
		return 0
	}
}

// Source discriminators for the bundled adapters.
const (
	SourceTicketVault  = "ticketvault"
	SourceSeatStream   = "seatstream"
	SourceCityBoard    = "cityboard"
	SourceCommunityCal = "communitycal"
)

// Package aggregator fans a discovery request out to every registered
// provider adapter plus the local user-event store, merges and
// deduplicates the combined results, applies the user's filter criteria,
// and returns a deterministically ordered event sequence.
package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"example.com/citypulse/internal/geo"
	"example.com/citypulse/internal/models"
	"example.com/citypulse/internal/providers"
)

// ErrStoreUnavailable marks the one fatal failure mode of Discover: the
// local store could not be read, so pass-history correctness cannot be
// guaranteed and no partial result is returned.
var ErrStoreUnavailable = errors.New("local store unavailable")

// LocalStore is the read-only contract to the persistence layer. The
// engine never writes through it.
type LocalStore interface {
	GetUserSubmittedEvents(ctx context.Context) ([]models.Event, error)
	GetUserPassHistory(ctx context.Context, userID string) (map[string]struct{}, error)
	GetUserSaveHistory(ctx context.Context, userID string) (map[string]struct{}, error)
}

// PlaceResolver resolves a free-text place name to coordinates, used when
// a request arrives without an origin.
type PlaceResolver interface {
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
}

// Request is a discovery query.
type Request struct {
	UserID    string
	Origin    *models.Coordinates
	PlaceName string
	Criteria  models.FilterCriteria
}

// SourceError is a non-fatal, per-source diagnostic.
type SourceError struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Result is the ordered outcome of one discovery request. An empty Events
// slice is a valid, non-error result. SavedIDs is a sorted slice so the
// result round-trips through the JSON response cache intact.
type Result struct {
	Events       []models.Event `json:"events"`
	SavedIDs     []string       `json:"saved_ids"`
	SourceCounts map[string]int `json:"source_counts"`
	SourceErrors []SourceError  `json:"source_errors,omitempty"`
}

// Engine aggregates events from all sources. It mutates nothing shared;
// every Discover call works on its own request-scoped data.
type Engine struct {
	providers      []providers.Provider
	store          LocalStore
	resolver       PlaceResolver
	merge          MergePolicy
	adapterTimeout time.Duration
	now            func() time.Time
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithMergePolicy overrides the default duplicate-detection thresholds.
func WithMergePolicy(p MergePolicy) Option {
	return func(e *Engine) { e.merge = p }
}

// WithAdapterTimeout sets the independent per-adapter fetch timeout.
func WithAdapterTimeout(d time.Duration) Option {
	return func(e *Engine) { e.adapterTimeout = d }
}

// WithPlaceResolver wires a geocoder for requests lacking coordinates.
func WithPlaceResolver(r PlaceResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithClock overrides the time source. Tests use this to pin windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an aggregation engine over the given adapters and
// local store.
func NewEngine(adapters []providers.Provider, store LocalStore, opts ...Option) *Engine {
	e := &Engine{
		providers:      adapters,
		store:          store,
		merge:          DefaultMergePolicy(),
		adapterTimeout: 8 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover runs the full pipeline: validate, fan out, fan in, merge,
// exclude, filter, rank. Individual provider failures degrade to empty
// contributions; only a store read failure (or invalid criteria) is
// returned as an error.
func (e *Engine) Discover(ctx context.Context, req Request) (*Result, error) {
	if err := req.Criteria.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid filter criteria")
	}

	now := e.now()
	origin := req.Origin
	if origin == nil && req.PlaceName != "" && e.resolver != nil {
		coords, err := e.resolver.Geocode(ctx, req.PlaceName)
		if err == nil {
			origin = coords
		} else if !errors.Is(err, geo.ErrNotFound) {
			log.Warn().Err(err).Str("place", req.PlaceName).Msg("Place resolution failed, using degraded provider lookups")
		}
	}

	var (
		mu           sync.Mutex
		collected    []models.Event
		sourceCounts = make(map[string]int)
		sourceErrors []SourceError
		userEvents   []models.Event
		passHistory  map[string]struct{}
		saveHistory  map[string]struct{}
	)

	g, gctx := errgroup.WithContext(ctx)

	// Local store reads are the only fatal path: without pass history the
	// result would resurface cards the user already swiped away.
	g.Go(func() error {
		events, err := e.store.GetUserSubmittedEvents(gctx)
		if err != nil {
			return errors.Wrap(ErrStoreUnavailable, err.Error())
		}
		mu.Lock()
		userEvents = events
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		history, err := e.store.GetUserPassHistory(gctx, req.UserID)
		if err != nil {
			return errors.Wrap(ErrStoreUnavailable, err.Error())
		}
		mu.Lock()
		passHistory = history
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		history, err := e.store.GetUserSaveHistory(gctx, req.UserID)
		if err != nil {
			return errors.Wrap(ErrStoreUnavailable, err.Error())
		}
		mu.Lock()
		saveHistory = history
		mu.Unlock()
		return nil
	})

	// Provider fan-out. Each adapter runs under its own timeout and a
	// failure or timeout is recorded as a diagnostic, never propagated.
	for _, p := range e.providers {
		p := p
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, e.adapterTimeout)
			defer cancel()

			events, err := e.fetchFromProvider(fetchCtx, p, origin, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("provider", p.Name()).Msg("Provider fetch failed, continuing without it")
				sourceErrors = append(sourceErrors, SourceError{Source: p.Name(), Reason: err.Error()})
				return nil
			}
			collected = append(collected, events...)
			sourceCounts[p.Name()] += len(events)
			return nil
		})
	}

	// Fan-in barrier: merge/filter/rank only start once every adapter has
	// returned or timed out. No partial streaming.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Non-active user events are dropped before the merge so a hidden
	// listing can never become the merge survivor and take a provider
	// record down with it.
	for _, ev := range userEvents {
		if ev.Status != models.StatusActive {
			continue
		}
		collected = append(collected, ev)
	}
	sourceCounts[models.SourceUser] = len(userEvents)

	merged := e.merge.Merge(collected, now)

	visible := merged[:0:0]
	for _, ev := range merged {
		if _, passed := passHistory[ev.ID]; passed {
			continue
		}
		visible = append(visible, ev)
	}

	criteria := req.Criteria
	criteria.Origin = origin
	policy, err := NewPolicy(criteria, now)
	if err != nil {
		return nil, errors.Wrap(err, "invalid filter criteria")
	}

	savedIDs := make([]string, 0, len(saveHistory))
	for id := range saveHistory {
		savedIDs = append(savedIDs, id)
	}
	sort.Strings(savedIDs)

	result := &Result{
		Events:       policy.Apply(visible),
		SavedIDs:     savedIDs,
		SourceCounts: sourceCounts,
		SourceErrors: sourceErrors,
	}

	log.Debug().
		Int("collected", len(collected)).
		Int("merged", len(merged)).
		Int("returned", len(result.Events)).
		Int("source_errors", len(sourceErrors)).
		Msg("Discovery pipeline completed")

	return result, nil
}

// fetchFromProvider picks the fetch mode: coordinate search when an origin
// is known, otherwise the adapter's degraded place/keyword lookup.
func (e *Engine) fetchFromProvider(ctx context.Context, p providers.Provider, origin *models.Coordinates, req Request) ([]models.Event, error) {
	if origin != nil {
		return p.FetchEvents(ctx, *origin, req.Criteria.DistanceMiles, e.now())
	}
	if req.PlaceName != "" {
		if ps, ok := p.(providers.PlaceSearcher); ok {
			return ps.FetchEventsByPlaceName(ctx, req.PlaceName, e.now())
		}
		if ks, ok := p.(providers.KeywordSearcher); ok {
			return ks.FetchEventsByKeyword(ctx, req.PlaceName, e.now())
		}
	}
	return nil, errors.New("no origin coordinates and no degraded lookup available")
}

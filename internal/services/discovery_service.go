package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/citypulse/internal/aggregator"
	"example.com/citypulse/internal/cache"
	"example.com/citypulse/internal/metrics"
	"example.com/citypulse/internal/models"
	"example.com/citypulse/internal/search"
	"example.com/citypulse/internal/tracing"
)

// DiscoveryService fronts the aggregation engine with response caching,
// best-effort search indexing, and tracing.
type DiscoveryService struct {
	engine   *aggregator.Engine
	cache    *cache.RedisCache
	elastic  *search.ElasticClient
	metrics  *metrics.Metrics
	tracer   tracing.Tracer
	cacheTTL time.Duration
}

// NewDiscoveryService creates a new discovery service. Cache, elastic, and
// tracer may be nil; the service degrades to plain engine calls.
func NewDiscoveryService(
	engine *aggregator.Engine,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
	cacheTTL time.Duration,
) *DiscoveryService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DiscoveryService{
		engine:   engine,
		cache:    redisCache,
		elastic:  elasticClient,
		metrics:  metricsCollector,
		tracer:   tracer,
		cacheTTL: cacheTTL,
	}
}

// Discover runs one discovery request through the engine. Responses for
// coordinate-based requests are cached briefly; the cache key includes the
// user id because pass history is per user.
func (s *DiscoveryService) Discover(ctx context.Context, req aggregator.Request) (*aggregator.Result, error) {
	txn := s.tracer.StartTransaction("discover")
	defer s.tracer.EndTransaction(txn)
	s.metrics.Inc("discover.requests")

	cacheKey := ""
	if s.cache != nil && req.Origin != nil {
		cacheKey = cache.GetDiscoveryCacheKey(req.Origin.Latitude, req.Origin.Longitude,
			req.UserID+":"+criteriaKey(req.Criteria))
		var cached aggregator.Result
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.Inc("discover.cache_hits")
			return &cached, nil
		}
	}

	span := s.tracer.StartSpan("engine-discover", txn)
	start := time.Now()
	result, err := s.engine.Discover(ctx, req)
	s.metrics.Observe("discover.engine", time.Since(start))
	span.End()

	if err != nil {
		s.metrics.Inc("discover.errors")
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			log.Debug().Err(err).Msg("Failed to cache discovery result")
		}
	}

	if s.elastic != nil && len(result.Events) > 0 {
		// Index off the request path; searches tolerate slightly stale data.
		events := make([]models.Event, len(result.Events))
		copy(events, result.Events)
		go func() {
			indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.elastic.IndexEvents(indexCtx, events)
		}()
	}

	log.Info().
		Str("user_id", req.UserID).
		Int("events", len(result.Events)).
		Int("source_errors", len(result.SourceErrors)).
		Msg("Discovery request completed")

	return result, nil
}

// SearchEvents runs a keyword search over previously indexed events.
func (s *DiscoveryService) SearchEvents(ctx context.Context, keyword string, size int) ([]map[string]interface{}, error) {
	if s.elastic == nil {
		return nil, nil
	}
	return s.elastic.SearchEvents(ctx, keyword, size)
}

// criteriaKey renders the criteria into a stable cache key fragment.
func criteriaKey(c models.FilterCriteria) string {
	cats := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		cats = append(cats, string(cat))
	}
	sort.Strings(cats)
	return fmt.Sprintf("%.0f:%s:%s", c.DistanceMiles, c.TimeRange, strings.Join(cats, ","))
}

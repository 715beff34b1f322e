package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/citypulse/internal/aggregator"
	"example.com/citypulse/internal/models"
	"example.com/citypulse/internal/services"
	"example.com/citypulse/internal/tracing"
)

// DiscoveryHandler handles event discovery HTTP requests
type DiscoveryHandler struct {
	discovery *services.DiscoveryService
	tracer    tracing.Tracer
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discovery *services.DiscoveryService, tracer tracing.Tracer) *DiscoveryHandler {
	return &DiscoveryHandler{
		discovery: discovery,
		tracer:    tracer,
	}
}

// DiscoverRequest represents an incoming discovery request
type DiscoverRequest struct {
	UserID        string              `json:"user_id" binding:"required"`
	Origin        *models.Coordinates `json:"origin"`
	PlaceName     string              `json:"place_name"`
	DistanceMiles float64             `json:"distance_miles" binding:"required"`
	TimeRange     string              `json:"time_range" binding:"required"`
	Categories    []string            `json:"categories"`
}

// DiscoverResponse represents a discovery response
type DiscoverResponse struct {
	Events       []models.Event           `json:"events"`
	SavedIDs     []string                 `json:"saved_ids"`
	SourceCounts map[string]int           `json:"source_counts"`
	SourceErrors []aggregator.SourceError `json:"source_errors,omitempty"`
}

// HandleDiscover runs one discovery request through the pipeline
func (h *DiscoveryHandler) HandleDiscover(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-discover")
	defer h.tracer.EndTransaction(txn)

	var req DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "user_id", req.UserID)
	h.tracer.AddAttribute(txn, "time_range", req.TimeRange)

	categories := make([]models.Category, 0, len(req.Categories))
	for _, cat := range req.Categories {
		categories = append(categories, models.Category(cat))
	}

	engineReq := aggregator.Request{
		UserID:    req.UserID,
		Origin:    req.Origin,
		PlaceName: req.PlaceName,
		Criteria: models.FilterCriteria{
			DistanceMiles: req.DistanceMiles,
			TimeRange:     models.TimeRange(req.TimeRange),
			Categories:    categories,
			Origin:        req.Origin,
		},
	}

	result, err := h.discovery.Discover(c, engineReq)
	if err != nil {
		h.tracer.RecordError(txn, err)
		if errors.Is(err, aggregator.ErrStoreUnavailable) {
			log.Error().Err(err).Msg("Local store unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "local store unavailable"})
			return
		}
		log.Error().Err(err).Msg("Discovery request rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, DiscoverResponse{
		Events:       result.Events,
		SavedIDs:     result.SavedIDs,
		SourceCounts: result.SourceCounts,
		SourceErrors: result.SourceErrors,
	})
}

// HandleSearch queries the search index by keyword
func (h *DiscoveryHandler) HandleSearch(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-search-events")
	defer h.tracer.EndTransaction(txn)

	keyword := c.Query("q")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	size := 20
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be a positive integer"})
			return
		}
		size = parsed
	}

	hits, err := h.discovery.SearchEvents(c, keyword, size)
	if err != nil {
		log.Error().Err(err).Str("keyword", keyword).Msg("Search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": hits})
}

// RegisterRoutes registers the handler's routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/v1/discover", h.HandleDiscover)
	router.GET("/v1/events/search", h.HandleSearch)
}

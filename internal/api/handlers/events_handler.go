package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/citypulse/internal/models"
	"example.com/citypulse/internal/services"
	"example.com/citypulse/internal/tracing"
)

// EventsHandler handles user event submission, swipes, and reports
type EventsHandler struct {
	events *services.EventService
	tracer tracing.Tracer
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(events *services.EventService, tracer tracing.Tracer) *EventsHandler {
	return &EventsHandler{
		events: events,
		tracer: tracer,
	}
}

// SubmitEventRequest represents an incoming event submission
type SubmitEventRequest struct {
	SubmitterID string              `json:"submitter_id" binding:"required"`
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	Location    string              `json:"location"`
	Address     string              `json:"address"`
	Category    string              `json:"category"`
	Price       string              `json:"price"`
	Image       string              `json:"image"`
	TicketURL   string              `json:"ticket_url"`
	Occurrences []models.Occurrence `json:"occurrences" binding:"required"`
	Coordinates *models.Coordinates `json:"coordinates"`
}

// HandleSubmitEvent persists a user-submitted event
func (h *EventsHandler) HandleSubmitEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-submit-event")
	defer h.tracer.EndTransaction(txn)

	var req SubmitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "submitter_id", req.SubmitterID)

	event, err := h.events.SubmitEvent(c, services.Submission{
		SubmitterID: req.SubmitterID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Address:     req.Address,
		Category:    req.Category,
		Price:       req.Price,
		Image:       req.Image,
		TicketURL:   req.TicketURL,
		Occurrences: req.Occurrences,
		Coordinates: req.Coordinates,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to submit event")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// SwipeRequest represents one save/pass decision
type SwipeRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	EventID string `json:"event_id" binding:"required"`
	Action  string `json:"action" binding:"required"`
}

// HandleSwipe records one save/pass decision
func (h *EventsHandler) HandleSwipe(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-swipe")
	defer h.tracer.EndTransaction(txn)

	var req SwipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	if err := h.events.RecordSwipe(c, req.UserID, req.EventID, req.Action); err != nil {
		log.Error().Err(err).Msg("Failed to record swipe")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// ReportRequest represents a report against a user-submitted event
type ReportRequest struct {
	ReporterID string `json:"reporter_id" binding:"required"`
	Reason     string `json:"reason"`
}

// HandleReportEvent files a report against a user-submitted event
func (h *EventsHandler) HandleReportEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-report-event")
	defer h.tracer.EndTransaction(txn)

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "event_id", eventID.String())

	if err := h.events.ReportEvent(c, eventID, req.ReporterID, req.Reason); err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to report event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// RegisterRoutes registers the handler's routes
func (h *EventsHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/v1/events", h.HandleSubmitEvent)
	router.POST("/v1/events/:id/report", h.HandleReportEvent)
	router.POST("/v1/swipes", h.HandleSwipe)
}

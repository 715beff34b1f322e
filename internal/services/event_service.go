package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/citypulse/internal/category"
	"example.com/citypulse/internal/geo"
	"example.com/citypulse/internal/models"
	"example.com/citypulse/internal/repositories"
)

// ReportPublisher publishes report messages to the queue. Nil disables the
// queue path and reports apply synchronously.
type ReportPublisher interface {
	SendMessage(ctx context.Context, body interface{}) error
}

// Geocoder is the slice of the geo.Geocoder that submission needs.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
	ReverseGeocode(ctx context.Context, c models.Coordinates) (*geo.Place, error)
}

// EventService handles user event submission, swipe recording, and
// report-driven moderation.
type EventService struct {
	events      *repositories.UserEventRepository
	swipes      *repositories.SwipeRepository
	reports     *repositories.ReportRepository
	geocoder    Geocoder
	publisher   ReportPublisher
	hideAfter   int
	removeAfter int
}

// NewEventService creates a new event service
func NewEventService(
	events *repositories.UserEventRepository,
	swipes *repositories.SwipeRepository,
	reports *repositories.ReportRepository,
	geocoder Geocoder,
	publisher ReportPublisher,
	hideAfter, removeAfter int,
) *EventService {
	if hideAfter <= 0 {
		hideAfter = 3
	}
	if removeAfter <= hideAfter {
		removeAfter = hideAfter + 2
	}
	return &EventService{
		events:      events,
		swipes:      swipes,
		reports:     reports,
		geocoder:    geocoder,
		publisher:   publisher,
		hideAfter:   hideAfter,
		removeAfter: removeAfter,
	}
}

// Submission is an incoming user event.
type Submission struct {
	SubmitterID string
	Title       string
	Description string
	Location    string
	Address     string
	Category    string
	Price       string
	Image       string
	TicketURL   string
	Occurrences []models.Occurrence
	Coordinates *models.Coordinates
}

// SubmitEvent validates and persists a user-submitted event, filling in
// coordinates from the address and city/region from the coordinates.
func (s *EventService) SubmitEvent(ctx context.Context, sub Submission) (*models.UserEvent, error) {
	if strings.TrimSpace(sub.Title) == "" {
		return nil, errors.New("title is required")
	}
	if len(sub.Occurrences) == 0 {
		return nil, errors.New("at least one occurrence is required")
	}
	for _, occ := range sub.Occurrences {
		if _, err := occ.At(time.UTC); err != nil {
			return nil, errors.Wrapf(err, "invalid occurrence %s %s", occ.Date, occ.Time)
		}
	}

	cat := models.Category(sub.Category)
	if !cat.Valid() {
		cat, _ = category.Classify(sub.Title, sub.Location, sub.Category)
	}

	coords := sub.Coordinates
	if coords == nil && s.geocoder != nil && strings.TrimSpace(sub.Address) != "" {
		resolved, err := s.geocoder.Geocode(ctx, sub.Address)
		if err == nil {
			coords = resolved
		} else if !errors.Is(err, geo.ErrNotFound) {
			log.Warn().Err(err).Str("address", sub.Address).Msg("Failed to geocode submitted event")
		}
	}

	city, region := "", ""
	if coords != nil && s.geocoder != nil {
		if place, err := s.geocoder.ReverseGeocode(ctx, *coords); err == nil {
			city, region = place.City, place.Region
		}
	}

	event := &models.UserEvent{
		ID:          uuid.New(),
		SubmitterID: sub.SubmitterID,
		Title:       strings.TrimSpace(sub.Title),
		Description: sub.Description,
		Location:    sub.Location,
		Address:     sub.Address,
		City:        city,
		Region:      region,
		Category:    string(cat),
		Price:       sub.Price,
		Image:       sub.Image,
		TicketURL:   sub.TicketURL,
		Status:      string(models.StatusActive),
	}
	if coords != nil {
		event.Latitude = &coords.Latitude
		event.Longitude = &coords.Longitude
	}
	for _, occ := range sub.Occurrences {
		event.Occurrences = append(event.Occurrences, models.UserEventOccurrence{
			ID:          uuid.New(),
			UserEventID: event.ID,
			Date:        occ.Date,
			Time:        occ.Time,
		})
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	log.Info().
		Str("event_id", event.ID.String()).
		Str("submitter", event.SubmitterID).
		Str("category", event.Category).
		Msg("User event submitted")

	return event, nil
}

// RecordSwipe stores one save/pass decision.
func (s *EventService) RecordSwipe(ctx context.Context, userID, eventID, action string) error {
	if action != models.SwipeSave && action != models.SwipePass {
		return errors.Errorf("unknown swipe action %q", action)
	}
	return s.swipes.Record(ctx, &models.SwipeRecord{
		ID:      uuid.New(),
		UserID:  userID,
		EventID: eventID,
		Action:  action,
	})
}

// ReportEvent handles a report against a user-submitted event. When a
// queue publisher is configured, the report is published and applied by
// the worker; otherwise it applies immediately.
func (s *EventService) ReportEvent(ctx context.Context, eventID uuid.UUID, reporterID, reason string) error {
	msg := models.ReportMessage{EventID: eventID, ReporterID: reporterID, Reason: reason}
	if s.publisher != nil {
		err := s.publisher.SendMessage(ctx, msg)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Str("event_id", eventID.String()).
			Msg("Failed to publish report, applying directly")
	}
	return s.applyReport(ctx, msg)
}

// ProcessReportMessage applies one queued report message.
func (s *EventService) ProcessReportMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var msg models.ReportMessage
	if err := json.Unmarshal(message.Body, &msg); err != nil {
		return errors.Wrap(err, "failed to unmarshal report message")
	}
	return s.applyReport(ctx, msg)
}

func (s *EventService) applyReport(ctx context.Context, msg models.ReportMessage) error {
	if err := s.reports.Create(ctx, &models.EventReport{
		ID:          uuid.New(),
		UserEventID: msg.EventID,
		ReporterID:  msg.ReporterID,
		Reason:      msg.Reason,
	}); err != nil {
		return err
	}

	count, err := s.reports.CountForEvent(ctx, msg.EventID)
	if err != nil {
		return err
	}

	status := s.statusForCount(count)
	if err := s.events.UpdateModeration(ctx, msg.EventID, count, status); err != nil {
		return err
	}

	if status != models.StatusActive {
		log.Info().
			Str("event_id", msg.EventID.String()).
			Int("report_count", count).
			Str("status", string(status)).
			Msg("Moderation status changed")
	}
	return nil
}

// SweepModeration reconciles moderation status against report counts. Runs
// periodically as a fallback for reports that bypassed the queue path.
func (s *EventService) SweepModeration(ctx context.Context) error {
	removable, err := s.events.ListOverThreshold(ctx, s.removeAfter, models.StatusRemoved)
	if err != nil {
		return err
	}
	for i := range removable {
		if err := s.events.UpdateModeration(ctx, removable[i].ID, removable[i].ReportCount, models.StatusRemoved); err != nil {
			log.Error().Err(err).Str("event_id", removable[i].ID.String()).Msg("Failed to remove event during sweep")
		}
	}

	hideable, err := s.events.ListOverThreshold(ctx, s.hideAfter, models.StatusHiddenReview)
	if err != nil {
		return err
	}
	hidden := 0
	for i := range hideable {
		if hideable[i].ReportCount >= s.removeAfter || hideable[i].Status == string(models.StatusRemoved) {
			continue
		}
		if err := s.events.UpdateModeration(ctx, hideable[i].ID, hideable[i].ReportCount, models.StatusHiddenReview); err != nil {
			log.Error().Err(err).Str("event_id", hideable[i].ID.String()).Msg("Failed to hide event during sweep")
			continue
		}
		hidden++
	}

	if len(removable) > 0 || hidden > 0 {
		log.Info().Int("removed", len(removable)).Int("hidden", hidden).Msg("Moderation sweep applied changes")
	}
	return nil
}

func (s *EventService) statusForCount(count int) models.ModerationStatus {
	switch {
	case count >= s.removeAfter:
		return models.StatusRemoved
	case count >= s.hideAfter:
		return models.StatusHiddenReview
	default:
		return models.StatusActive
	}
}

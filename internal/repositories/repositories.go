package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/citypulse/internal/models"
)

// UserEventRepository provides access to user-submitted events
type UserEventRepository struct {
	db *gorm.DB
}

// NewUserEventRepository creates a new user event repository
func NewUserEventRepository(db *gorm.DB) *UserEventRepository {
	return &UserEventRepository{db: db}
}

// Create persists a new user-submitted event with its occurrences
func (r *UserEventRepository) Create(ctx context.Context, event *models.UserEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.Wrap(err, "failed to create user event")
	}
	return nil
}

// GetByID gets a user event by id
func (r *UserEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserEvent, error) {
	var event models.UserEvent
	err := r.db.WithContext(ctx).Preload("Occurrences").First(&event, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user event")
	}
	return &event, nil
}

// ListVisibleToEngine returns all non-removed user events, hidden ones
// included. The engine owns the moderation-status exclusion; removed
// events never leave the database.
func (r *UserEventRepository) ListVisibleToEngine(ctx context.Context) ([]models.UserEvent, error) {
	var events []models.UserEvent
	err := r.db.WithContext(ctx).
		Preload("Occurrences").
		Where("status <> ?", string(models.StatusRemoved)).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user events")
	}
	return events, nil
}

// UpdateModeration sets the report count and status of a user event
func (r *UserEventRepository) UpdateModeration(ctx context.Context, id uuid.UUID, reportCount int, status models.ModerationStatus) error {
	err := r.db.WithContext(ctx).Model(&models.UserEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"report_count": reportCount,
			"status":       string(status),
		}).Error
	if err != nil {
		return errors.Wrap(err, "failed to update moderation state")
	}
	return nil
}

// ListOverThreshold returns user events whose report count has reached the
// given threshold but whose status has not caught up yet.
func (r *UserEventRepository) ListOverThreshold(ctx context.Context, threshold int, notStatus models.ModerationStatus) ([]models.UserEvent, error) {
	var events []models.UserEvent
	err := r.db.WithContext(ctx).
		Where("report_count >= ? AND status <> ?", threshold, string(notStatus)).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events over report threshold")
	}
	return events, nil
}

// SwipeRepository provides access to save/pass history
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new swipe repository
func NewSwipeRepository(db *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: db}
}

// Record stores one save/pass decision, last write wins per user+event
func (r *SwipeRepository) Record(ctx context.Context, record *models.SwipeRecord) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", record.UserID, record.EventID).
		Delete(&models.SwipeRecord{}).Error
	if err != nil {
		return errors.Wrap(err, "failed to clear previous swipe")
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(err, "failed to record swipe")
	}
	return nil
}

// HistorySet returns the set of event ids the user has swiped with the
// given action.
func (r *SwipeRepository) HistorySet(ctx context.Context, userID, action string) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.SwipeRecord{}).
		Where("user_id = ? AND action = ?", userID, action).
		Pluck("event_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load swipe history")
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ReportRepository provides access to event reports
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create persists one report
func (r *ReportRepository) Create(ctx context.Context, report *models.EventReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return errors.Wrap(err, "failed to create report")
	}
	return nil
}

// CountForEvent counts reports against a user event
func (r *ReportRepository) CountForEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EventReport{}).
		Where("user_event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count reports")
	}
	return int(count), nil
}

// LocalStore adapts the repositories to the aggregation engine's read-only
// store contract.
type LocalStore struct {
	events *UserEventRepository
	swipes *SwipeRepository
}

// NewLocalStore creates the engine-facing store view
func NewLocalStore(events *UserEventRepository, swipes *SwipeRepository) *LocalStore {
	return &LocalStore{events: events, swipes: swipes}
}

// GetUserSubmittedEvents returns all non-removed user events in canonical form
func (s *LocalStore) GetUserSubmittedEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.events.ListVisibleToEngine(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].ToEvent())
	}
	return events, nil
}

// GetUserPassHistory returns the event ids the user has passed on
func (s *LocalStore) GetUserPassHistory(ctx context.Context, userID string) (map[string]struct{}, error) {
	return s.swipes.HistorySet(ctx, userID, models.SwipePass)
}

// GetUserSaveHistory returns the event ids the user has saved
func (s *LocalStore) GetUserSaveHistory(ctx context.Context, userID string) (map[string]struct{}, error) {
	return s.swipes.HistorySet(ctx, userID, models.SwipeSave)
}

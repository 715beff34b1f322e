package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UserEvent is a user-submitted event row. Provider events are never
// persisted here; this table is one more source the aggregation engine
// merges in.
type UserEvent struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	SubmitterID string         `gorm:"not null;index" json:"submitter_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Address     string         `json:"address"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	City        string         `json:"city"`
	Region      string         `json:"region"`
	Category    string         `gorm:"not null;default:'other'" json:"category"`
	Price       string         `json:"price"`
	Image       string         `json:"image"`
	TicketURL   string         `json:"ticket_url"`
	Occurrences []UserEventOccurrence `gorm:"foreignKey:UserEventID" json:"occurrences"`
	ReportCount int            `gorm:"not null;default:0" json:"report_count"`
	Status      string         `gorm:"not null;default:'active';index" json:"status"`
}

// UserEventOccurrence is one date+time instance of a user event, stored in
// canonical YYYY-MM-DD / HH:MM form.
type UserEventOccurrence struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserEventID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_event_id"`
	Date        string    `gorm:"not null" json:"date"`
	Time        string    `json:"time"`
}

// ToEvent converts the row into the canonical pipeline record.
func (u *UserEvent) ToEvent() Event {
	ev := Event{
		ID:          u.ID.String(),
		Title:       u.Title,
		Location:    u.Location,
		Address:     u.Address,
		City:        u.City,
		Region:      u.Region,
		Category:    Category(u.Category),
		Price:       u.Price,
		Image:       u.Image,
		TicketURL:   u.TicketURL,
		Description: u.Description,
		Source:      SourceUser,
		ReportCount: u.ReportCount,
		Status:      ModerationStatus(u.Status),
	}
	if !ev.Category.Valid() {
		ev.Category = CategoryOther
	}
	if ev.Image == "" {
		ev.Image = PlaceholderImageURL
	}
	if u.Latitude != nil && u.Longitude != nil {
		ev.Coordinates = &Coordinates{Latitude: *u.Latitude, Longitude: *u.Longitude}
	}
	for _, occ := range u.Occurrences {
		ev.Occurrences = append(ev.Occurrences, Occurrence{Date: occ.Date, Time: occ.Time})
	}
	ev.SortOccurrences()
	return ev
}

// SwipeAction is what the user did with a card.
const (
	SwipeSave = "save"
	SwipePass = "pass"
)

// SwipeRecord is one save/pass decision. The aggregation engine reads
// these as history sets; it never writes them.
type SwipeRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_swipe_user_event" json:"user_id"`
	EventID   string    `gorm:"not null;uniqueIndex:idx_swipe_user_event" json:"event_id"`
	Action    string    `gorm:"not null" json:"action"`
}

// EventReport is one user report against a user-submitted event.
// Accumulated reports drive the moderation status transitions.
type EventReport struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UserEventID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_event_id"`
	ReporterID  string    `gorm:"not null" json:"reporter_id"`
	Reason      string    `json:"reason"`
}

// ReportMessage is the queue payload published when an event is reported
// and consumed by the worker.
type ReportMessage struct {
	EventID    uuid.UUID `json:"event_id"`
	ReporterID string    `json:"reporter_id"`
	Reason     string    `json:"reason"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&UserEvent{},
		&UserEventOccurrence{},
		&SwipeRecord{},
		&EventReport{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}
	return nil
}

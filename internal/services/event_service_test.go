package services

import (
	"context"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/citypulse/internal/models"
)

// Mock publisher for testing
type MockReportPublisher struct {
	mock.Mock
}

func (m *MockReportPublisher) SendMessage(ctx context.Context, body interface{}) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

func TestReportEventPublishesToQueue(t *testing.T) {
	publisher := new(MockReportPublisher)
	publisher.On("SendMessage", mock.Anything, mock.AnythingOfType("models.ReportMessage")).Return(nil)

	service := NewEventService(nil, nil, nil, nil, publisher, 3, 5)

	eventID := uuid.New()
	err := service.ReportEvent(context.Background(), eventID, "reporter-1", "spam")
	require.NoError(t, err)

	publisher.AssertExpectations(t)
	sent := publisher.Calls[0].Arguments.Get(1).(models.ReportMessage)
	require.Equal(t, eventID, sent.EventID)
	require.Equal(t, "reporter-1", sent.ReporterID)
	require.Equal(t, "spam", sent.Reason)
}

func TestStatusForCountThresholds(t *testing.T) {
	service := NewEventService(nil, nil, nil, nil, nil, 3, 5)

	require.Equal(t, models.StatusActive, service.statusForCount(0))
	require.Equal(t, models.StatusActive, service.statusForCount(2))
	require.Equal(t, models.StatusHiddenReview, service.statusForCount(3))
	require.Equal(t, models.StatusHiddenReview, service.statusForCount(4))
	require.Equal(t, models.StatusRemoved, service.statusForCount(5))
	require.Equal(t, models.StatusRemoved, service.statusForCount(12))
}

func TestNewEventServiceRepairsInvertedThresholds(t *testing.T) {
	service := NewEventService(nil, nil, nil, nil, nil, 4, 2)
	require.Equal(t, models.StatusActive, service.statusForCount(3))
	require.Equal(t, models.StatusHiddenReview, service.statusForCount(4))
	require.Equal(t, models.StatusRemoved, service.statusForCount(6))
}

func TestRecordSwipeRejectsUnknownAction(t *testing.T) {
	service := NewEventService(nil, nil, nil, nil, nil, 3, 5)
	err := service.RecordSwipe(context.Background(), "user-1", "ticketvault:1", "shrug")
	require.Error(t, err)
}

func TestSubmitEventValidation(t *testing.T) {
	service := NewEventService(nil, nil, nil, nil, nil, 3, 5)

	_, err := service.SubmitEvent(context.Background(), Submission{
		Title:       "  ",
		Occurrences: []models.Occurrence{{Date: "2025-07-01", Time: "19:00"}},
	})
	require.Error(t, err)

	_, err = service.SubmitEvent(context.Background(), Submission{Title: "Block Party"})
	require.Error(t, err)

	_, err = service.SubmitEvent(context.Background(), Submission{
		Title:       "Block Party",
		Occurrences: []models.Occurrence{{Date: "July 1st", Time: "19:00"}},
	})
	require.Error(t, err)
}

func TestProcessReportMessageRejectsBadPayload(t *testing.T) {
	service := NewEventService(nil, nil, nil, nil, nil, 3, 5)
	err := service.ProcessReportMessage(context.Background(), &azservicebus.ReceivedMessage{
		Body: []byte("not json"),
	})
	require.Error(t, err)
}

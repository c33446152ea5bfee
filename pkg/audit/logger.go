package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger is the interface for audit trail recording
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Search queries recorded events
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)

	// Close closes the logger and flushes any buffered events
	Close() error
}

// NewEvent builds an event with generated ID and timestamp. The caller
// fills the remaining fields before handing it to a Logger.
func NewEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

// Record is a convenience helper that builds and logs an event in one call
func Record(ctx context.Context, logger Logger, eventType EventType, status EventStatus, userID *int64, resourceType ResourceType, resourceID, message string, details map[string]interface{}) error {
	if logger == nil {
		return nil
	}
	event := NewEvent(eventType, status)
	event.UserID = userID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	event.Details = details
	return logger.Log(ctx, event)
}

// NoopLogger discards all events. Used when auditing is disabled.
type NoopLogger struct{}

func (NoopLogger) Log(ctx context.Context, event *Event) error { return nil }

func (NoopLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	return nil, nil
}

func (NoopLogger) Close() error { return nil }

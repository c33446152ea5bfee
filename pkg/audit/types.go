package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Decision events
	EventTypePermissionCheck EventType = "authz.permission_check"
	EventTypeAccessDenied    EventType = "authz.access_denied"

	// Role administration events
	EventTypeRoleCreate     EventType = "role.create"
	EventTypeRoleUpdate     EventType = "role.update"
	EventTypeRoleDeactivate EventType = "role.deactivate"
	EventTypeRoleDelete     EventType = "role.delete"

	// Assignment events
	EventTypeRoleAssign EventType = "assignment.grant"
	EventTypeRoleRevoke EventType = "assignment.revoke"

	// Scope and module events
	EventTypeContextCreate EventType = "context.create"
	EventTypeModuleToggle  EventType = "module.toggle"

	// Cache events
	EventTypeCacheInvalidate EventType = "cache.invalidate"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeRole       ResourceType = "role"
	ResourceTypeAssignment ResourceType = "assignment"
	ResourceTypeContext    ResourceType = "context"
	ResourceTypeModule     ResourceType = "module"
	ResourceTypeUser       ResourceType = "user"
)

// Event is a single audit trail entry
type Event struct {
	ID        string      `json:"id"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	UserID *int64 `json:"user_id,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for querying the audit trail
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID     *int64
	EventTypes []EventType
	Status     *EventStatus

	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}

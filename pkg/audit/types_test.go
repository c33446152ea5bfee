package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventTypeRoleCreate, EventStatusSuccess)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventTypeRoleCreate, event.EventType)
	assert.Equal(t, EventStatusSuccess, event.Status)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, event.CreatedAt.Location())
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a := NewEvent(EventTypeRoleCreate, EventStatusSuccess)
	b := NewEvent(EventTypeRoleCreate, EventStatusSuccess)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	userID := int64(10)
	event := NewEvent(EventTypeAccessDenied, EventStatusDenied)
	event.UserID = &userID
	event.ResourceType = ResourceTypeUser
	event.ResourceID = "10"
	event.Message = "user 10 is missing permissions: payments.view"
	event.Details = map[string]interface{}{"missing": []interface{}{"payments.view"}}

	raw, err := event.ToJSON()
	require.NoError(t, err)

	parsed, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, event.ID, parsed.ID)
	assert.Equal(t, event.EventType, parsed.EventType)
	assert.Equal(t, event.Status, parsed.Status)
	require.NotNil(t, parsed.UserID)
	assert.Equal(t, int64(10), *parsed.UserID)
	assert.Equal(t, event.Details, parsed.Details)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("{broken"))
	assert.Error(t, err)
}

func TestRecord(t *testing.T) {
	// nil logger is a no-op, not a panic
	err := Record(context.Background(), nil, EventTypeRoleCreate, EventStatusSuccess, nil, ResourceTypeRole, "1", "created", nil)
	assert.NoError(t, err)
}

func TestNoopLogger(t *testing.T) {
	var logger NoopLogger
	ctx := context.Background()

	assert.NoError(t, logger.Log(ctx, NewEvent(EventTypeRoleCreate, EventStatusSuccess)))

	events, err := logger.Search(ctx, SearchFilter{})
	assert.NoError(t, err)
	assert.Nil(t, events)
	assert.NoError(t, logger.Close())
}

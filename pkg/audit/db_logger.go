package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// DBLogger records audit events into the audit_events table. The table
// is created by the schema migrations, so construction only validates
// the handle.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts one audit event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, event_type, status, user_id,
			resource_type, resource_id, message, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.EventType, event.Status, event.UserID,
		event.ResourceType, event.ResourceID, event.Message, detailsJSON, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Search queries recorded events with the given filter
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StartTime != nil {
		conditions = append(conditions, "created_at >= "+arg(*filter.StartTime))
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "created_at <= "+arg(*filter.EndTime))
	}
	if filter.UserID != nil {
		conditions = append(conditions, "user_id = "+arg(*filter.UserID))
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = "+arg(string(*filter.Status)))
	}
	if filter.ResourceType != "" {
		conditions = append(conditions, "resource_type = "+arg(string(filter.ResourceType)))
	}
	if filter.ResourceID != "" {
		conditions = append(conditions, "resource_id = "+arg(filter.ResourceID))
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, 0, len(filter.EventTypes))
		for _, et := range filter.EventTypes {
			placeholders = append(placeholders, arg(string(et)))
		}
		conditions = append(conditions, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `
		SELECT id, event_type, status, user_id,
		       resource_type, resource_id, message, details, created_at
		FROM audit_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			event       Event
			userID      sql.NullInt64
			resType     sql.NullString
			resID       sql.NullString
			message     sql.NullString
			detailsJSON []byte
		)
		if err := rows.Scan(
			&event.ID, &event.EventType, &event.Status, &userID,
			&resType, &resID, &message, &detailsJSON, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if userID.Valid {
			event.UserID = &userID.Int64
		}
		event.ResourceType = ResourceType(resType.String)
		event.ResourceID = resID.String
		event.Message = message.String
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// Close is a no-op; the caller owns the database handle
func (l *DBLogger) Close() error {
	return nil
}

var _ Logger = (*DBLogger)(nil)

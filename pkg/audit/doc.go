// Package audit provides an audit trail for authorization activity.
//
// # Overview
//
// Every administrative mutation (role changes, assignments, module
// toggles) and every denied permission check can be recorded as an
// audit event. Events carry the acting user, the affected resource and
// free-form details.
//
// # Loggers
//
// Two implementations of the Logger interface are provided:
//
//   - DBLogger writes events into the audit_events table created by the
//     schema migrations. Use this in production deployments.
//   - FileLogger appends NDJSON lines to a local file with size-based
//     rotation. Use this for standalone or file-backed deployments.
//
// NoopLogger is available when auditing is disabled.
//
// # Usage
//
//	logger, err := audit.NewDBLogger(db)
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//
//	audit.Record(ctx, logger, audit.EventTypeRoleAssign, audit.EventStatusSuccess,
//		&adminID, audit.ResourceTypeAssignment, "42", "granted foreman", nil)
//
// # Querying
//
//	events, err := logger.Search(ctx, audit.SearchFilter{
//		UserID: &userID,
//		Limit:  50,
//	})
package audit

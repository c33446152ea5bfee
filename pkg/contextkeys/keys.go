// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the service are defined here. This
// prevents typos, documents dependencies, and makes key usage
// discoverable.
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated subject as authz.User.
	// Set by: middleware.PrincipalMiddleware
	// Required by: authorization middleware, check handlers
	PrincipalKey Key = "principal"

	// ScopeKey contains the resolved *authz.Context for the request.
	// Set by: middleware.ScopeMiddleware
	// Required by: authorization middleware
	ScopeKey Key = "authz_scope"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains a request-scoped *observability.Logger.
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"
)

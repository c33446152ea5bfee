// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and the shared middleware chain of the service.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, resource)
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Missing identity")
//	httputil.WriteForbidden(w, "Insufficient permissions")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req CreateRoleRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path parameters:
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
//
// Query parameters:
//
//	orgID, err := httputil.ParseQueryInt64(r, "organization_id", 0)
//	includeSystem, err := httputil.ParseQueryBool(r, "include_system", true)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MetricsMiddleware(metrics),
//		httputil.MaxBytesMiddleware(1*1024*1024), // 1MB
//	)
//
// # Related Packages
//
//   - pkg/middleware: Identity and scope resolution middleware
//   - pkg/authz: Authorization enforcement middleware
package httputil

// Package middleware provides identity and scope resolution middleware.
//
// # Overview
//
// The service sits behind an authenticating gateway. This package turns
// the trusted gateway headers into typed values in the request context:
//
//   - PrincipalMiddleware reads X-User-ID, X-User-Name and
//     X-User-Blocked into an authz.User under contextkeys.PrincipalKey.
//   - ScopeMiddleware resolves the organization or project scope from
//     path variables or the X-Organization-ID / X-Project-ID headers
//     into a *authz.Context under contextkeys.ScopeKey.
//
// Authorization enforcement itself lives in pkg/authz; its middleware
// reads the values placed here.
//
// # Usage
//
//	router.Use(middleware.PrincipalMiddleware)
//	router.Use(middleware.ScopeMiddleware(store))
//
// # Related Packages
//
//   - pkg/authz: Permission checks and enforcement middleware
//   - pkg/contextkeys: Context key definitions
package middleware

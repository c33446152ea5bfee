// Package authz implements the context-scoped authorization engine of the
// construction platform.
//
// # Overview
//
// The engine answers one question: may this user perform this action in
// this scope? Users hold roles, roles carry permission sets, and role
// assignments are scoped to organizations and projects. A check against
// a project scope sees the roles granted on the project, on its parent
// organization, and globally.
//
// # Architecture
//
// Five components cooperate to answer a check:
//
//  1. PermissionSet: an immutable set of system and module permissions
//     with wildcard and glob matching ("payments.*", "pay*ents.view").
//  2. Context: a scope node (organization or project) with a parent
//     link that forms the resolution chain.
//  3. Request: an immutable description of one check, classified into
//     module, role, interface or system kinds.
//  4. Resolver: loads a user's assignments from a RoleStore, drops
//     expired grants and merges the surviving roles additively.
//  5. Engine: evaluates the request against the resolution and returns
//     a Decision with a typed DenyReason on refusal.
//
// # Permissions
//
// Permission strings use "<module>.<action>" with "*" wildcards:
//
//	"contracts.view"      - one module action
//	"payments.*"          - every action of a module
//	"*"                   - everything (in system or module position)
//	"users.manage"        - system permission
//	"role:foreman"        - role membership check
//	"interface:admin"     - interface access check
//
// The split happens at the first dot, so "payments.invoice.view" names
// action "invoice.view" of module "payments".
//
// # Checking Permissions
//
//	engine := authz.NewEngine(authz.NewResolver(store),
//		authz.WithModuleCatalog(store),
//		authz.WithDecisionCache(cache))
//
//	req := authz.NewRequest(user, "contracts.edit").WithContext(projectScope)
//	decision, err := engine.Authorize(ctx, req)
//	if err != nil {
//		return err
//	}
//	if !decision.Allowed {
//		return decision.Reason // typed DenyReason with HTTP payload
//	}
//
// # Deny Diagnostics
//
// Every refusal is one of three typed reasons, each carrying structured
// logging fields and a canonical HTTP payload:
//
//   - InsufficientPermissionsError (403): lists required, actual and
//     missing permissions
//   - RoleNotFoundError (404): a role check referenced an unknown or
//     inactive role
//   - UnauthorizedError (403): blocked user, expired role, inactive
//     module or interface refusal
//
// Enforcement layers render HTTPResponse() unchanged so clients always
// see the same diagnostics regardless of which layer refused.
//
// # Stores
//
// Role definitions and assignments come from a RoleStore. Two
// implementations are provided: Store (PostgreSQL, with migrations and
// the built-in construction role catalog) and FileCatalog (YAML files
// with fsnotify hot reload). The Manager in integration.go wires either
// into a ready-to-mount HTTP surface.
//
// # Related Packages
//
//   - pkg/middleware: Resolves the principal and scope for enforcement
//   - pkg/audit: Audit trail for role mutations and denials
//   - pkg/observability: Logging, metrics and tracing
package authz

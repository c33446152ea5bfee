package authz

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRoleNotFound is the store-boundary sentinel for a role lookup miss.
// The resolver converts it into a typed *RoleNotFoundError with the
// lookup details attached.
var ErrRoleNotFound = errors.New("role not found")

// ErrContextNotFound is returned by context stores for an unknown scope id.
var ErrContextNotFound = errors.New("authorization context not found")

// DenyReason is a typed denial diagnostic. Every failure path of the
// engine produces one; a reason renders both a structured log record and
// an HTTP-style payload so middleware can forward it without
// re-interpretation.
type DenyReason interface {
	error

	// ReasonKind names the diagnostic category in machine-readable form.
	ReasonKind() string

	// StatusCode is the HTTP status the denial maps to.
	StatusCode() int

	// LoggingData renders the full machine-diagnostic record.
	LoggingData() map[string]interface{}

	// HTTPResponse renders the client-facing payload, including the
	// numeric code.
	HTTPResponse() map[string]interface{}
}

// ContextSnapshot is the read-only context view embedded in diagnostics.
type ContextSnapshot struct {
	ID         int64       `json:"id"`
	Type       ContextType `json:"type"`
	ResourceID int64       `json:"resource_id"`
}

func snapshotContext(c *Context) *ContextSnapshot {
	if c == nil {
		return nil
	}
	return &ContextSnapshot{ID: c.ID, Type: c.Type, ResourceID: c.ResourceID}
}

func contextField(c *ContextSnapshot) interface{} {
	if c == nil {
		return nil
	}
	return map[string]interface{}{
		"id":          c.ID,
		"type":        string(c.Type),
		"resource_id": c.ResourceID,
	}
}

// setDifference returns the entries of required that are absent from
// granted, preserving the order of required. The comparison is a raw
// list difference on purpose: the diagnostic shows the human-meaningful
// unmet requirement even when a wildcard grant would technically cover
// it. Role-debugging tooling depends on this shape.
func setDifference(required, granted []string) []string {
	have := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		have[p] = struct{}{}
	}
	var missing []string
	for _, p := range required {
		if _, ok := have[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// InsufficientPermissionsError: the user authenticated and the roles
// resolved, but the required permission is absent from the effective set.
type InsufficientPermissionsError struct {
	UserID     int64            `json:"user_id"`
	Required   []string         `json:"required_permissions"`
	Actual     []string         `json:"actual_permissions"`
	Context    *ContextSnapshot `json:"context,omitempty"`
	Message    string           `json:"message"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewInsufficientPermissions builds the default denial diagnostic with
// the raw required-minus-actual difference precomputed into the message.
func NewInsufficientPermissions(userID int64, required, actual []string, scope *Context) *InsufficientPermissionsError {
	e := &InsufficientPermissionsError{
		UserID:     userID,
		Required:   required,
		Actual:     actual,
		Context:    snapshotContext(scope),
		OccurredAt: time.Now().UTC(),
	}
	e.Message = fmt.Sprintf("user %d is missing permissions: %s", userID, strings.Join(e.Missing(), ", "))
	return e
}

// NewCannotManageUsers is the prefilled denial for user-management
// endpoints.
func NewCannotManageUsers(userID int64, actual []string, scope *Context) *InsufficientPermissionsError {
	e := NewInsufficientPermissions(userID, []string{PermManageUsers}, actual, scope)
	e.Message = fmt.Sprintf("user %d is not allowed to manage users", userID)
	return e
}

// NewCannotCreateRoles is the prefilled denial for custom role authoring.
func NewCannotCreateRoles(userID int64, actual []string, scope *Context) *InsufficientPermissionsError {
	e := NewInsufficientPermissions(userID, []string{PermCreateRoles}, actual, scope)
	e.Message = fmt.Sprintf("user %d is not allowed to create roles", userID)
	return e
}

// NewCannotManageModules is the prefilled denial for module activation
// management.
func NewCannotManageModules(userID int64, actual []string, scope *Context) *InsufficientPermissionsError {
	e := NewInsufficientPermissions(userID, []string{PermManageModules}, actual, scope)
	e.Message = fmt.Sprintf("user %d is not allowed to manage modules", userID)
	return e
}

// Missing returns the raw set difference between required and actual.
func (e *InsufficientPermissionsError) Missing() []string {
	return setDifference(e.Required, e.Actual)
}

func (e *InsufficientPermissionsError) Error() string { return e.Message }

func (e *InsufficientPermissionsError) ReasonKind() string { return "insufficient_permissions" }

func (e *InsufficientPermissionsError) StatusCode() int { return 403 }

func (e *InsufficientPermissionsError) LoggingData() map[string]interface{} {
	return map[string]interface{}{
		"exception_kind":       e.ReasonKind(),
		"user_id":              e.UserID,
		"required_permissions": e.Required,
		"actual_permissions":   e.Actual,
		"missing_permissions":  e.Missing(),
		"context":              contextField(e.Context),
		"message":              e.Message,
		"timestamp":            e.OccurredAt.Format(time.RFC3339),
	}
}

func (e *InsufficientPermissionsError) HTTPResponse() map[string]interface{} {
	return map[string]interface{}{
		"error":                e.ReasonKind(),
		"message":              e.Message,
		"missing_permissions":  e.Missing(),
		"required_permissions": e.Required,
		"context":              contextField(e.Context),
		"code":                 e.StatusCode(),
	}
}

// RoleLookupKind distinguishes how a failed role lookup was performed.
type RoleLookupKind string

const (
	RoleLookupSystem   RoleLookupKind = "system"
	RoleLookupCustom   RoleLookupKind = "custom"
	RoleLookupInactive RoleLookupKind = "inactive"
)

// RoleNotFoundError: the role slug does not resolve to a stored
// definition at all, or resolves to a deactivated one. Misconfiguration,
// not denial; it maps to 404 so an admin fixes the data instead of a
// user chasing permissions.
type RoleNotFoundError struct {
	Slug           string         `json:"slug"`
	Lookup         RoleLookupKind `json:"lookup"`
	OrganizationID *int64         `json:"organization_id,omitempty"`
	UserID         int64          `json:"user_id,omitempty"`
	Message        string         `json:"message"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// NewSystemRoleNotFound reports a missing platform role definition.
func NewSystemRoleNotFound(slug string) *RoleNotFoundError {
	return &RoleNotFoundError{
		Slug:       slug,
		Lookup:     RoleLookupSystem,
		Message:    fmt.Sprintf("system role %q does not exist", slug),
		OccurredAt: time.Now().UTC(),
	}
}

// NewCustomRoleNotFound reports a missing organization-authored role.
func NewCustomRoleNotFound(slug string, organizationID int64) *RoleNotFoundError {
	return &RoleNotFoundError{
		Slug:           slug,
		Lookup:         RoleLookupCustom,
		OrganizationID: &organizationID,
		Message:        fmt.Sprintf("custom role %q does not exist in organization %d", slug, organizationID),
		OccurredAt:     time.Now().UTC(),
	}
}

// NewInactiveRole reports a role that exists but was deactivated.
func NewInactiveRole(slug string, organizationID *int64) *RoleNotFoundError {
	return &RoleNotFoundError{
		Slug:           slug,
		Lookup:         RoleLookupInactive,
		OrganizationID: organizationID,
		Message:        fmt.Sprintf("role %q is deactivated", slug),
		OccurredAt:     time.Now().UTC(),
	}
}

func (e *RoleNotFoundError) Error() string { return e.Message }

func (e *RoleNotFoundError) ReasonKind() string { return "role_not_found" }

func (e *RoleNotFoundError) StatusCode() int { return 404 }

func (e *RoleNotFoundError) LoggingData() map[string]interface{} {
	data := map[string]interface{}{
		"exception_kind": e.ReasonKind(),
		"role_slug":      e.Slug,
		"lookup":         string(e.Lookup),
		"message":        e.Message,
		"timestamp":      e.OccurredAt.Format(time.RFC3339),
	}
	if e.OrganizationID != nil {
		data["organization_id"] = *e.OrganizationID
	}
	if e.UserID != 0 {
		data["user_id"] = e.UserID
	}
	return data
}

func (e *RoleNotFoundError) HTTPResponse() map[string]interface{} {
	resp := map[string]interface{}{
		"error":     e.ReasonKind(),
		"message":   e.Message,
		"role_slug": e.Slug,
		"lookup":    string(e.Lookup),
		"code":      e.StatusCode(),
	}
	if e.OrganizationID != nil {
		resp["organization_id"] = *e.OrganizationID
	}
	return resp
}

// DenyCause categorizes denials that carry no missing-permission diff.
type DenyCause string

const (
	CauseExpiredRole       DenyCause = "expired_role"
	CauseUserBlocked       DenyCause = "user_blocked"
	CauseModuleNotActive   DenyCause = "module_not_active"
	CauseMissingPermission DenyCause = "missing_permission"
)

// UnauthorizedError: broader denial causes with a named category instead
// of a permission diff, because there is nothing to diff.
type UnauthorizedError struct {
	UserID         int64            `json:"user_id"`
	Cause          DenyCause        `json:"cause"`
	Permission     string           `json:"permission,omitempty"`
	RoleSlug       string           `json:"role_slug,omitempty"`
	Module         string           `json:"module,omitempty"`
	OrganizationID *int64           `json:"organization_id,omitempty"`
	Context        *ContextSnapshot `json:"context,omitempty"`
	Message        string           `json:"message"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// NewExpiredRole reports that the only applicable role assignment has
// passed its expiry window.
func NewExpiredRole(userID int64, slug string, scope *Context) *UnauthorizedError {
	return &UnauthorizedError{
		UserID:     userID,
		Cause:      CauseExpiredRole,
		RoleSlug:   slug,
		Context:    snapshotContext(scope),
		Message:    fmt.Sprintf("role %q assigned to user %d has expired", slug, userID),
		OccurredAt: time.Now().UTC(),
	}
}

// NewUserBlocked reports a check on a blocked account.
func NewUserBlocked(userID int64) *UnauthorizedError {
	return &UnauthorizedError{
		UserID:     userID,
		Cause:      CauseUserBlocked,
		Message:    fmt.Sprintf("user %d is blocked", userID),
		OccurredAt: time.Now().UTC(),
	}
}

// NewModuleNotActive reports a module-scoped check against an
// organization that has not activated the module.
func NewModuleNotActive(userID int64, module string, organizationID *int64, scope *Context) *UnauthorizedError {
	return &UnauthorizedError{
		UserID:         userID,
		Cause:          CauseModuleNotActive,
		Module:         module,
		OrganizationID: organizationID,
		Context:        snapshotContext(scope),
		Message:        fmt.Sprintf("module %q is not activated for this organization", module),
		OccurredAt:     time.Now().UTC(),
	}
}

// NewMissingPermission is the bare shortcut for a single absent
// permission with no list to diff against.
func NewMissingPermission(userID int64, permission string, scope *Context) *UnauthorizedError {
	return &UnauthorizedError{
		UserID:     userID,
		Cause:      CauseMissingPermission,
		Permission: permission,
		Context:    snapshotContext(scope),
		Message:    fmt.Sprintf("user %d does not have permission %q", userID, permission),
		OccurredAt: time.Now().UTC(),
	}
}

// NewCannotAccessInterface is the prefilled denial for UI-surface checks.
func NewCannotAccessInterface(userID int64, name string, scope *Context) *UnauthorizedError {
	e := NewMissingPermission(userID, interfacePrefix+name, scope)
	e.Message = fmt.Sprintf("user %d is not allowed to access the %q interface", userID, name)
	return e
}

func (e *UnauthorizedError) Error() string { return e.Message }

func (e *UnauthorizedError) ReasonKind() string { return "unauthorized" }

func (e *UnauthorizedError) StatusCode() int { return 403 }

func (e *UnauthorizedError) LoggingData() map[string]interface{} {
	data := map[string]interface{}{
		"exception_kind": e.ReasonKind(),
		"cause":          string(e.Cause),
		"user_id":        e.UserID,
		"context":        contextField(e.Context),
		"message":        e.Message,
		"timestamp":      e.OccurredAt.Format(time.RFC3339),
	}
	if e.Permission != "" {
		data["permission"] = e.Permission
	}
	if e.RoleSlug != "" {
		data["role_slug"] = e.RoleSlug
	}
	if e.Module != "" {
		data["module"] = e.Module
	}
	if e.OrganizationID != nil {
		data["organization_id"] = *e.OrganizationID
	}
	return data
}

func (e *UnauthorizedError) HTTPResponse() map[string]interface{} {
	resp := map[string]interface{}{
		"error":   e.ReasonKind(),
		"cause":   string(e.Cause),
		"message": e.Message,
		"code":    e.StatusCode(),
	}
	if e.Permission != "" {
		resp["permission"] = e.Permission
	}
	if e.Module != "" {
		resp["module"] = e.Module
	}
	if e.Context != nil {
		resp["context"] = contextField(e.Context)
	}
	return resp
}

var (
	_ DenyReason = (*InsufficientPermissionsError)(nil)
	_ DenyReason = (*RoleNotFoundError)(nil)
	_ DenyReason = (*UnauthorizedError)(nil)
)

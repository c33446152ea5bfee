package authz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RoleStore provides the role definitions and assignments one check
// evaluates against. Implementations must return data as a read-only
// snapshot; the resolver never mutates what it is handed.
//
// A lookup miss is reported with ErrRoleNotFound so the resolver can
// distinguish misconfiguration from denial.
type RoleStore interface {
	GetRoleByID(ctx context.Context, id int64) (*Role, error)
	GetRoleBySlug(ctx context.Context, slug string, organizationID *int64) (*Role, error)
	ListUserAssignments(ctx context.Context, userID int64) ([]Assignment, error)
}

// ContextStore resolves scope nodes, parent chain included.
type ContextStore interface {
	GetContext(ctx context.Context, id int64) (*Context, error)
}

// ModuleCatalog answers whether an organization has a module activated.
type ModuleCatalog interface {
	IsModuleActive(ctx context.Context, organizationID int64, module string) (bool, error)
}

// Resolution is the effective state gathered for one check: the merged
// permission set, the roles that contributed, and the slugs of
// assignments that were excluded because they expired.
type Resolution struct {
	Permissions  PermissionSet
	Roles        []Role
	ExpiredSlugs []string
}

// HoldsRole reports whether a role with the given slug contributed to
// the resolution.
func (res *Resolution) HoldsRole(slug string) bool {
	for _, r := range res.Roles {
		if r.Slug == slug {
			return true
		}
	}
	return false
}

// RoleNames returns the slugs of the contributing roles.
func (res *Resolution) RoleNames() []string {
	names := make([]string, 0, len(res.Roles))
	for _, r := range res.Roles {
		names = append(names, r.Slug)
	}
	return names
}

// Resolver merges a user's applicable role assignments into one
// effective PermissionSet. System and custom roles contribute alike;
// merging is purely additive, there are no override semantics.
type Resolver struct {
	roles RoleStore
	now   func() time.Time
}

// NewResolver creates a resolver over the given role store.
func NewResolver(roles RoleStore) *Resolver {
	return &Resolver{roles: roles, now: time.Now}
}

// Resolve gathers every assignment applicable to the user within the
// scope (including scope inherited through the context parent chain),
// drops expired ones, and merges the surviving roles' permission sets.
//
// A nil scope resolves against all of the user's assignments. An
// assignment whose role cannot be loaded surfaces as a
// *RoleNotFoundError, never as a silent skip.
func (r *Resolver) Resolve(ctx context.Context, userID int64, scope *Context) (*Resolution, error) {
	assignments, err := r.roles.ListUserAssignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for user %d: %w", userID, err)
	}

	now := r.now()
	res := &Resolution{Permissions: NewPermissionSet(nil, nil)}
	seen := make(map[int64]struct{})

	for _, a := range assignments {
		if !r.assignmentInScope(a, scope) {
			continue
		}
		if a.Expired(now) {
			res.ExpiredSlugs = append(res.ExpiredSlugs, r.assignmentSlug(ctx, a))
			continue
		}

		role, err := r.loadRole(ctx, a, scope)
		if err != nil {
			return nil, err
		}
		if !role.IsActive {
			return nil, NewInactiveRole(role.Slug, role.OrganizationID)
		}
		if _, ok := seen[role.ID]; ok {
			continue
		}
		seen[role.ID] = struct{}{}
		res.Roles = append(res.Roles, *role)
		res.Permissions = res.Permissions.Merge(role.PermissionSet())
	}

	return res, nil
}

// assignmentInScope reports whether the assignment applies within the
// given scope. Global assignments (no context) always apply; scoped ones
// apply when their context is on the scope's parent chain. With no scope
// every assignment applies, matching checks made outside any context.
func (r *Resolver) assignmentInScope(a Assignment, scope *Context) bool {
	if a.ContextID == nil || scope == nil {
		return true
	}
	for _, id := range scope.chainIDs() {
		if *a.ContextID == id {
			return true
		}
	}
	return false
}

func (r *Resolver) loadRole(ctx context.Context, a Assignment, scope *Context) (*Role, error) {
	if a.RoleID != 0 {
		role, err := r.roles.GetRoleByID(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				return nil, r.notFound(a.RoleSlug, scope)
			}
			return nil, fmt.Errorf("load role %d: %w", a.RoleID, err)
		}
		return role, nil
	}

	orgID := scope.ResolveOrganizationID()
	role, err := r.roles.GetRoleBySlug(ctx, a.RoleSlug, orgID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, r.notFound(a.RoleSlug, scope)
		}
		return nil, fmt.Errorf("load role %q: %w", a.RoleSlug, err)
	}
	return role, nil
}

func (r *Resolver) notFound(slug string, scope *Context) *RoleNotFoundError {
	if orgID := scope.ResolveOrganizationID(); orgID != nil {
		return NewCustomRoleNotFound(slug, *orgID)
	}
	return NewSystemRoleNotFound(slug)
}

// assignmentSlug recovers a printable slug for diagnostics on excluded
// assignments; it falls back to the role id when the slug is not stored
// on the assignment row.
func (r *Resolver) assignmentSlug(ctx context.Context, a Assignment) string {
	if a.RoleSlug != "" {
		return a.RoleSlug
	}
	if role, err := r.roles.GetRoleByID(ctx, a.RoleID); err == nil {
		return role.Slug
	}
	return fmt.Sprintf("role#%d", a.RoleID)
}

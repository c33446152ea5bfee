package authz

import (
	"time"
)

// Role is a named, reusable bundle of permissions. System roles ship with
// the platform and have no organization; custom roles are authored by an
// organization and scoped to it. A deactivated role keeps its definition
// but no longer resolves.
type Role struct {
	ID                int64               `json:"id"`
	Slug              string              `json:"slug"`
	Name              string              `json:"name"`
	Description       string              `json:"description,omitempty"`
	OrganizationID    *int64              `json:"organization_id,omitempty"` // nil for system roles
	IsSystem          bool                `json:"is_system"`
	IsActive          bool                `json:"is_active"`
	SystemPermissions []string            `json:"system_permissions"`
	ModulePermissions map[string][]string `json:"module_permissions"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	CreatedBy         *int64              `json:"created_by,omitempty"`
}

// PermissionSet builds a fresh immutable set from the role's stored
// definition.
func (r *Role) PermissionSet() PermissionSet {
	return NewPermissionSet(r.SystemPermissions, r.ModulePermissions)
}

// Assignment binds a role to a user, optionally limited to one
// authorization context and optionally time-bounded.
type Assignment struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	RoleID    int64      `json:"role_id"`
	RoleSlug  string     `json:"role_slug,omitempty"`
	ContextID *int64     `json:"context_id,omitempty"` // nil applies everywhere
	GrantedBy *int64     `json:"granted_by,omitempty"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the assignment's expiry window has passed.
func (a *Assignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// Well-known permission strings used by the prefilled denial
// constructors and the admin API guards.
const (
	PermManageUsers   = "users.manage"
	PermCreateRoles   = "roles.create"
	PermManageModules = "modules.manage"
)

// Built-in role slugs for the construction-management platform.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleForeman    = "foreman"
	RoleEstimator  = "estimator"
	RoleAccountant = "accountant"
	RoleWarehouse  = "warehouse_keeper"
	RoleObserver   = "observer"
)

// BuiltInRoles returns the fixed system role catalog. The definitions are
// seeded into storage at initialization and never carry an organization.
func BuiltInRoles() []Role {
	return []Role{
		{
			Slug:              RoleOwner,
			Name:              "Owner",
			Description:       "Full access to everything in the organization",
			IsSystem:          true,
			IsActive:          true,
			SystemPermissions: []string{Wildcard},
			ModulePermissions: map[string][]string{},
		},
		{
			Slug:              RoleAdmin,
			Name:              "Administrator",
			Description:       "Manages users, roles and module activation",
			IsSystem:          true,
			IsActive:          true,
			SystemPermissions: []string{PermManageUsers, PermCreateRoles, PermManageModules, "interface:admin"},
			ModulePermissions: map[string][]string{
				"contracts": {Wildcard},
				"payments":  {Wildcard},
				"projects":  {Wildcard},
				"estimates": {Wildcard},
				"warehouse": {Wildcard},
				"reports":   {Wildcard},
			},
		},
		{
			Slug:              RoleForeman,
			Name:              "Foreman",
			Description:       "Runs projects on site: work logs, material consumption",
			IsSystem:          true,
			IsActive:          true,
			SystemPermissions: []string{"interface:site"},
			ModulePermissions: map[string][]string{
				"projects":  {"view", "edit", "works.log"},
				"warehouse": {"view", "writeoff.create"},
				"estimates": {"view"},
			},
		},
		{
			Slug:              RoleEstimator,
			Name:              "Estimator",
			Description:       "Creates and maintains estimates",
			IsSystem:          true,
			IsActive:          true,
			SystemPermissions: []string{"interface:office"},
			ModulePermissions: map[string][]string{
				"estimates": {Wildcard},
				"projects":  {"view"},
				"contracts": {"view"},
			},
		},
		{
			Slug:              RoleAccountant,
			Name:              "Accountant",
			Description:       "Handles contracts, payments and financial reports",
			IsSystem:          true,
			IsActive:          true,
			SystemPermissions: []string{"interface:office"},
			ModulePermissions: map[string][]string{
				"contracts": {Wildcard},
				"payments":  {Wildcard},
				"reports":   {"view", "export"},
			},
		},
		{
			Slug:              RoleWarehouse,
			Name:              "Warehouse Keeper",
			Description:       "Manages warehouse stock and movements",
			IsSystem:          true,
			IsActive:          true,
			SystemPermissions: []string{"interface:site"},
			ModulePermissions: map[string][]string{
				"warehouse": {Wildcard},
				"projects":  {"view"},
			},
		},
		{
			Slug:              RoleObserver,
			Name:              "Observer",
			Description:       "Read-only access across activated modules",
			IsSystem:          true,
			IsActive:          true,
			SystemPermissions: []string{"interface:office"},
			ModulePermissions: map[string][]string{
				"contracts": {"view"},
				"payments":  {"view"},
				"projects":  {"view"},
				"estimates": {"view"},
				"warehouse": {"view"},
				"reports":   {"view"},
			},
		},
	}
}

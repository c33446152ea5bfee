package authz

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store persists roles, assignments, authorization contexts and module
// activation state in SQL. It implements RoleStore, ContextStore and
// ModuleCatalog; the engine only ever sees those interfaces.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks and stats queries.
func (s *Store) DB() *sql.DB { return s.db }

const roleColumns = `id, slug, name, description, organization_id, is_system, is_active, system_permissions, module_permissions, created_at, updated_at, created_by`

// CreateRole inserts a role and fills in its id and timestamps.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	sysJSON, modJSON, err := marshalPermissions(role)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO roles (slug, name, description, organization_id, is_system, is_active, system_permissions, module_permissions, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	now := time.Now().UTC()
	err = s.db.QueryRowContext(ctx, query,
		role.Slug,
		role.Name,
		role.Description,
		role.OrganizationID,
		role.IsSystem,
		role.IsActive,
		sysJSON,
		modJSON,
		now,
		now,
		role.CreatedBy,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("create role %q: %w", role.Slug, err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRoleByID retrieves a role by primary key.
func (s *Store) GetRoleByID(ctx context.Context, id int64) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role %d: %w", id, ErrRoleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get role %d: %w", id, err)
	}
	return role, nil
}

// GetRoleBySlug retrieves a role by slug, preferring an
// organization-scoped definition over the built-in one of the same slug.
func (s *Store) GetRoleBySlug(ctx context.Context, slug string, organizationID *int64) (*Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE slug = $1 AND (organization_id = $2 OR organization_id IS NULL)
		ORDER BY organization_id IS NULL, organization_id DESC
		LIMIT 1
	`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, slug, organizationID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role %q: %w", slug, ErrRoleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get role %q: %w", slug, err)
	}
	return role, nil
}

// ListRoles returns the built-in catalog plus the organization's custom
// roles when organizationID is set, or only the built-ins otherwise.
func (s *Store) ListRoles(ctx context.Context, organizationID *int64) ([]Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE organization_id IS NULL OR organization_id = $1
		ORDER BY organization_id IS NULL DESC, slug
	`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("list roles: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// UpdateRole rewrites a role's mutable fields.
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	sysJSON, modJSON, err := marshalPermissions(role)
	if err != nil {
		return err
	}
	query := `
		UPDATE roles
		SET name = $1, description = $2, is_active = $3, system_permissions = $4, module_permissions = $5, updated_at = $6
		WHERE id = $7
	`
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query, role.Name, role.Description, role.IsActive, sysJSON, modJSON, now, role.ID)
	if err != nil {
		return fmt.Errorf("update role %d: %w", role.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("role %d: %w", role.ID, ErrRoleNotFound)
	}
	role.UpdatedAt = now
	return nil
}

// DeactivateRole keeps the definition but stops it from resolving.
func (s *Store) DeactivateRole(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE roles SET is_active = FALSE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate role %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("role %d: %w", id, ErrRoleNotFound)
	}
	return nil
}

// DeleteRole removes a custom role. Built-in roles are refused.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1 AND is_system = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete role %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("role %d: %w", id, ErrRoleNotFound)
	}
	return nil
}

// AssignRole binds a role to a user, filling in the assignment id.
func (s *Store) AssignRole(ctx context.Context, a *Assignment) error {
	query := `
		INSERT INTO role_assignments (user_id, role_id, context_id, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query, a.UserID, a.RoleID, a.ContextID, a.GrantedBy, now, a.ExpiresAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("assign role %d to user %d: %w", a.RoleID, a.UserID, err)
	}
	a.GrantedAt = now
	return nil
}

// RevokeAssignment removes one assignment by id.
func (s *Store) RevokeAssignment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM role_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke assignment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assignment %d not found", id)
	}
	return nil
}

// AssignmentUser returns the user a given assignment belongs to
func (s *Store) AssignmentUser(ctx context.Context, id int64) (int64, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM role_assignments WHERE id = $1`, id).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("lookup assignment %d: %w", id, err)
	}
	return userID, nil
}

// ListUserAssignments returns every assignment of the user, role slugs
// joined in for diagnostics.
func (s *Store) ListUserAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	query := `
		SELECT a.id, a.user_id, a.role_id, r.slug, a.context_id, a.granted_by, a.granted_at, a.expires_at
		FROM role_assignments a
		JOIN roles r ON r.id = a.role_id
		WHERE a.user_id = $1
		ORDER BY a.granted_at
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for user %d: %w", userID, err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		var contextID, grantedBy sql.NullInt64
		var expiresAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.RoleSlug, &contextID, &grantedBy, &a.GrantedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if contextID.Valid {
			v := contextID.Int64
			a.ContextID = &v
		}
		if grantedBy.Valid {
			v := grantedBy.Int64
			a.GrantedBy = &v
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			a.ExpiresAt = &t
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// CleanupExpiredAssignments deletes assignments whose expiry passed
// before the cutoff. Returns the number of rows removed.
func (s *Store) CleanupExpiredAssignments(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM role_assignments WHERE expires_at IS NOT NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired assignments: %w", err)
	}
	return res.RowsAffected()
}

// CreateContext registers a scope node. A project context must point at
// an existing organization context.
func (s *Store) CreateContext(ctx context.Context, c *Context) error {
	var parentID *int64
	if c.Parent != nil {
		parentID = &c.Parent.ID
	}
	query := `
		INSERT INTO auth_contexts (context_type, resource_id, parent_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := s.db.QueryRowContext(ctx, query, c.Type, c.ResourceID, parentID).Scan(&c.ID); err != nil {
		return fmt.Errorf("create %s context for resource %d: %w", c.Type, c.ResourceID, err)
	}
	return nil
}

// GetContext loads a scope node and, when present, its parent. The chain
// is bounded at one hop; deeper graphs are not stored.
func (s *Store) GetContext(ctx context.Context, id int64) (*Context, error) {
	node, parentID, err := s.getContextRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		parent, _, err := s.getContextRow(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		node.Parent = parent
	}
	return node, nil
}

func (s *Store) getContextRow(ctx context.Context, id int64) (*Context, *int64, error) {
	query := `SELECT id, context_type, resource_id, parent_id FROM auth_contexts WHERE id = $1`
	var c Context
	var parentID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Type, &c.ResourceID, &parentID)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("context %d: %w", id, ErrContextNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get context %d: %w", id, err)
	}
	if parentID.Valid {
		v := parentID.Int64
		return &c, &v, nil
	}
	return &c, nil, nil
}

// SetModuleActive toggles a module for an organization.
func (s *Store) SetModuleActive(ctx context.Context, organizationID int64, module string, active bool) error {
	query := `
		INSERT INTO org_modules (organization_id, module, is_active, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, module)
		DO UPDATE SET is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, organizationID, module, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set module %q for organization %d: %w", module, organizationID, err)
	}
	return nil
}

// IsModuleActive reports the activation state; an unknown module is
// inactive.
func (s *Store) IsModuleActive(ctx context.Context, organizationID int64, module string) (bool, error) {
	var active bool
	query := `SELECT is_active FROM org_modules WHERE organization_id = $1 AND module = $2`
	err := s.db.QueryRowContext(ctx, query, organizationID, module).Scan(&active)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check module %q for organization %d: %w", module, organizationID, err)
	}
	return active, nil
}

// SeedBuiltInRoles inserts the system role catalog, skipping slugs that
// already exist.
func (s *Store) SeedBuiltInRoles(ctx context.Context) error {
	for _, role := range BuiltInRoles() {
		existing, err := s.GetRoleBySlug(ctx, role.Slug, nil)
		if err == nil && existing != nil {
			continue
		}
		r := role
		if err := s.CreateRole(ctx, &r); err != nil {
			return fmt.Errorf("seed role %q: %w", role.Slug, err)
		}
	}
	return nil
}

func marshalPermissions(role *Role) (string, string, error) {
	sys := role.SystemPermissions
	if sys == nil {
		sys = []string{}
	}
	mod := role.ModulePermissions
	if mod == nil {
		mod = map[string][]string{}
	}
	sysJSON, err := json.Marshal(sys)
	if err != nil {
		return "", "", fmt.Errorf("marshal system permissions: %w", err)
	}
	modJSON, err := json.Marshal(mod)
	if err != nil {
		return "", "", fmt.Errorf("marshal module permissions: %w", err)
	}
	return string(sysJSON), string(modJSON), nil
}

func scanRole(scanner interface{ Scan(dest ...interface{}) error }) (*Role, error) {
	var role Role
	var description sql.NullString
	var orgID, createdBy sql.NullInt64
	var sysJSON, modJSON string

	err := scanner.Scan(
		&role.ID,
		&role.Slug,
		&role.Name,
		&description,
		&orgID,
		&role.IsSystem,
		&role.IsActive,
		&sysJSON,
		&modJSON,
		&role.CreatedAt,
		&role.UpdatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	role.Description = description.String
	if orgID.Valid {
		v := orgID.Int64
		role.OrganizationID = &v
	}
	if createdBy.Valid {
		v := createdBy.Int64
		role.CreatedBy = &v
	}
	if err := json.Unmarshal([]byte(sysJSON), &role.SystemPermissions); err != nil {
		role.SystemPermissions = nil
	}
	if err := json.Unmarshal([]byte(modJSON), &role.ModulePermissions); err != nil {
		role.ModulePermissions = nil
	}
	return &role, nil
}

var (
	_ RoleStore     = (*Store)(nil)
	_ ContextStore  = (*Store)(nil)
	_ ModuleCatalog = (*Store)(nil)
)

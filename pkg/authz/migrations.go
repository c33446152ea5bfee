package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the authorization schema in apply order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					organization_id BIGINT,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					system_permissions JSONB NOT NULL DEFAULT '[]',
					module_permissions JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by BIGINT,
					UNIQUE(slug, organization_id)
				);

				CREATE INDEX IF NOT EXISTS idx_roles_slug ON roles(slug);
				CREATE INDEX IF NOT EXISTS idx_roles_organization_id ON roles(organization_id);
			`,
		},
		{
			Version:     2,
			Description: "Create role_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_assignments (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					context_id BIGINT,
					granted_by BIGINT,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_role_assignments_user_id ON role_assignments(user_id);
				CREATE INDEX IF NOT EXISTS idx_role_assignments_role_id ON role_assignments(role_id);
				CREATE INDEX IF NOT EXISTS idx_role_assignments_context_id ON role_assignments(context_id);
				CREATE INDEX IF NOT EXISTS idx_role_assignments_expires_at ON role_assignments(expires_at);
			`,
		},
		{
			Version:     3,
			Description: "Create auth_contexts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS auth_contexts (
					id BIGSERIAL PRIMARY KEY,
					context_type VARCHAR(50) NOT NULL,
					resource_id BIGINT NOT NULL,
					parent_id BIGINT REFERENCES auth_contexts(id) ON DELETE SET NULL,
					UNIQUE(context_type, resource_id)
				);

				CREATE INDEX IF NOT EXISTS idx_auth_contexts_parent_id ON auth_contexts(parent_id);
				CREATE INDEX IF NOT EXISTS idx_auth_contexts_resource ON auth_contexts(context_type, resource_id);
			`,
		},
		{
			Version:     4,
			Description: "Create org_modules table",
			SQL: `
				CREATE TABLE IF NOT EXISTS org_modules (
					organization_id BIGINT NOT NULL,
					module VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (organization_id, module)
				);
			`,
		},
		{
			Version:     5,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id VARCHAR(36) PRIMARY KEY,
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					user_id BIGINT,
					resource_type VARCHAR(50),
					resource_id VARCHAR(255),
					message TEXT,
					details JSONB,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
				CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
				CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events(created_at);
			`,
		},
	}
}

// RunMigrations applies pending migrations in order, tracking progress in
// authz_schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS authz_schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range GetMigrations() {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authz_schema_migrations WHERE version = $1`, m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO authz_schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

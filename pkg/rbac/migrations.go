package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/folio-cms/folio/pkg/apperr"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all RBAC migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					slug VARCHAR(64) PRIMARY KEY,
					created_by VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(64) NOT NULL,
					title VARCHAR(255) NOT NULL,
					permission_slugs JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(name)
				);

				CREATE INDEX idx_roles_name ON roles(name);
			`,
		},
		{
			Version:     3,
			Description: "Create groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_groups (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(64) NOT NULL,
					title VARCHAR(255) NOT NULL,
					permission_slugs JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by VARCHAR(255),
					updated_by VARCHAR(255),
					UNIQUE(slug)
				);

				CREATE INDEX idx_groups_slug ON user_groups(slug);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// InitializeBuiltins seeds the built-in permissions and roles if absent.
func InitializeBuiltins(ctx context.Context, store *Store) error {
	for _, perm := range BuiltinPermissions() {
		err := store.CreatePermission(ctx, &perm)
		if err != nil && !errors.Is(err, apperr.ErrConflict) {
			return fmt.Errorf("failed to seed permission %s: %w", perm.Slug, err)
		}
	}

	for _, role := range BuiltinRoles() {
		err := store.CreateRole(ctx, &role)
		if err != nil && !errors.Is(err, apperr.ErrConflict) {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}

	return nil
}

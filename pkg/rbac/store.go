package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/folio-cms/folio/pkg/apperr"
)

// Store handles catalog, role and group persistence. Writes bust the read
// cache synchronously so a revoked permission is never served stale.
type Store struct {
	db    *sql.DB
	cache *Cache
}

// NewStore creates an RBAC store. cache may be nil.
func NewStore(db *sql.DB, cache *Cache) *Store {
	return &Store{db: db, cache: cache}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	// sqlite, used by unit tests
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreatePermission adds a slug to the catalog.
func (s *Store) CreatePermission(ctx context.Context, perm *Permission) error {
	if err := perm.Validate(); err != nil {
		return apperr.NewValidation("invalid permission", "slug")
	}

	query := `
		INSERT INTO permissions (slug, created_by, created_at)
		VALUES ($1, $2, $3)
	`

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, perm.Slug, perm.CreatedBy, now)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("permission %q already exists", perm.Slug)
		}
		return apperr.Storage("create permission", err)
	}

	perm.CreatedAt = now
	s.bustCatalog()
	return nil
}

// GetPermission retrieves a permission by slug.
func (s *Store) GetPermission(ctx context.Context, slug string) (*Permission, error) {
	query := `SELECT slug, created_by, created_at FROM permissions WHERE slug = $1`

	var perm Permission
	err := s.db.QueryRowContext(ctx, query, slug).Scan(&perm.Slug, &perm.CreatedBy, &perm.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("permission %q not found", slug)
	}
	if err != nil {
		return nil, apperr.Storage("get permission", err)
	}
	return &perm, nil
}

// ListPermissions lists the catalog ordered by slug.
func (s *Store) ListPermissions(ctx context.Context) ([]Permission, error) {
	query := `SELECT slug, created_by, created_at FROM permissions ORDER BY slug ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Storage("list permissions", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.Slug, &perm.CreatedBy, &perm.CreatedAt); err != nil {
			return nil, apperr.Storage("scan permission", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// DeletePermission removes a slug from the catalog. Roles and groups still
// referencing it degrade to "permission absent" at resolution time.
func (s *Store) DeletePermission(ctx context.Context, slug string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE slug = $1`, slug)
	if err != nil {
		return apperr.Storage("delete permission", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("permission %q not found", slug)
	}
	s.bustCatalog()
	return nil
}

// CatalogSet returns the full permission catalog as a set.
func (s *Store) CatalogSet(ctx context.Context) (PermissionSet, error) {
	if s.cache != nil {
		if set, ok := s.cache.GetCatalog(); ok {
			return set, nil
		}
	}

	perms, err := s.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	set := make(PermissionSet, len(perms))
	for _, perm := range perms {
		set[perm.Slug] = struct{}{}
	}
	if s.cache != nil {
		s.cache.PutCatalog(set)
	}
	return set, nil
}

// CreateRole creates a new role.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if err := role.Validate(); err != nil {
		return apperr.NewValidation("invalid role", "name")
	}

	slugsJSON, err := json.Marshal(role.PermissionSlugs)
	if err != nil {
		return apperr.Storage("marshal role permissions", err)
	}

	query := `
		INSERT INTO roles (name, title, permission_slugs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	now := time.Now().UTC()
	err = s.db.QueryRowContext(ctx, query,
		role.Name,
		role.Title,
		string(slugsJSON),
		now,
		now,
	).Scan(&role.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("role %q already exists", role.Name)
		}
		return apperr.Storage("create role", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	s.bustRole(role.Name)
	return nil
}

// GetRoleByName retrieves a role by name.
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	if s.cache != nil {
		if role, ok := s.cache.GetRole(name); ok {
			return role, nil
		}
	}

	query := `
		SELECT id, name, title, permission_slugs, created_at, updated_at
		FROM roles
		WHERE name = $1
	`

	role, err := scanRole(s.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("role %q not found", name)
	}
	if err != nil {
		return nil, apperr.Storage("get role", err)
	}

	if s.cache != nil {
		s.cache.PutRole(role)
	}
	return role, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(row rowScanner) (*Role, error) {
	var role Role
	var slugsJSON string

	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Title,
		&slugsJSON,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(slugsJSON), &role.PermissionSlugs); err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles lists all roles ordered by name.
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT id, name, title, permission_slugs, created_at, updated_at
		FROM roles
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Storage("list roles", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, apperr.Storage("scan role", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// UpdateRole replaces a role's title and permission slugs.
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	if err := role.Validate(); err != nil {
		return apperr.NewValidation("invalid role", "name")
	}

	slugsJSON, err := json.Marshal(role.PermissionSlugs)
	if err != nil {
		return apperr.Storage("marshal role permissions", err)
	}

	query := `
		UPDATE roles
		SET title = $1, permission_slugs = $2, updated_at = $3
		WHERE name = $4
	`

	role.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		role.Title,
		string(slugsJSON),
		role.UpdatedAt,
		role.Name,
	)
	if err != nil {
		return apperr.Storage("update role", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("role %q not found", role.Name)
	}

	s.bustRole(role.Name)
	return nil
}

// DeleteRole deletes a role by name.
func (s *Store) DeleteRole(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE name = $1`, name)
	if err != nil {
		return apperr.Storage("delete role", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("role %q not found", name)
	}
	s.bustRole(name)
	return nil
}

// CreateGroup creates a new group.
func (s *Store) CreateGroup(ctx context.Context, group *Group) error {
	if err := group.Validate(); err != nil {
		return apperr.NewValidation("invalid group", "slug")
	}

	slugsJSON, err := json.Marshal(group.PermissionSlugs)
	if err != nil {
		return apperr.Storage("marshal group permissions", err)
	}

	query := `
		INSERT INTO user_groups (slug, title, permission_slugs, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now().UTC()
	err = s.db.QueryRowContext(ctx, query,
		group.Slug,
		group.Title,
		string(slugsJSON),
		now,
		now,
		group.CreatedBy,
		group.CreatedBy,
	).Scan(&group.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("group %q already exists", group.Slug)
		}
		return apperr.Storage("create group", err)
	}

	group.CreatedAt = now
	group.UpdatedAt = now
	group.UpdatedBy = group.CreatedBy
	s.bustGroup(group.Slug)
	return nil
}

// GetGroupBySlug retrieves a group by slug.
func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*Group, error) {
	if s.cache != nil {
		if group, ok := s.cache.GetGroup(slug); ok {
			return group, nil
		}
	}

	query := `
		SELECT id, slug, title, permission_slugs, created_at, updated_at, created_by, updated_by
		FROM user_groups
		WHERE slug = $1
	`

	group, err := scanGroup(s.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("group %q not found", slug)
	}
	if err != nil {
		return nil, apperr.Storage("get group", err)
	}

	if s.cache != nil {
		s.cache.PutGroup(group)
	}
	return group, nil
}

func scanGroup(row rowScanner) (*Group, error) {
	var group Group
	var slugsJSON string
	var createdBy, updatedBy sql.NullString

	err := row.Scan(
		&group.ID,
		&group.Slug,
		&group.Title,
		&slugsJSON,
		&group.CreatedAt,
		&group.UpdatedAt,
		&createdBy,
		&updatedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(slugsJSON), &group.PermissionSlugs); err != nil {
		return nil, err
	}
	group.CreatedBy = createdBy.String
	group.UpdatedBy = updatedBy.String
	return &group, nil
}

// ListGroups lists all groups ordered by slug.
func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	query := `
		SELECT id, slug, title, permission_slugs, created_at, updated_at, created_by, updated_by
		FROM user_groups
		ORDER BY slug ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Storage("list groups", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, apperr.Storage("scan group", err)
		}
		groups = append(groups, *group)
	}
	return groups, rows.Err()
}

// UpdateGroup replaces a group's title and permission slugs.
func (s *Store) UpdateGroup(ctx context.Context, group *Group) error {
	if err := group.Validate(); err != nil {
		return apperr.NewValidation("invalid group", "slug")
	}

	slugsJSON, err := json.Marshal(group.PermissionSlugs)
	if err != nil {
		return apperr.Storage("marshal group permissions", err)
	}

	query := `
		UPDATE user_groups
		SET title = $1, permission_slugs = $2, updated_at = $3, updated_by = $4
		WHERE slug = $5
	`

	group.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		group.Title,
		string(slugsJSON),
		group.UpdatedAt,
		group.UpdatedBy,
		group.Slug,
	)
	if err != nil {
		return apperr.Storage("update group", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("group %q not found", group.Slug)
	}

	s.bustGroup(group.Slug)
	return nil
}

// DeleteGroup deletes a group by slug.
func (s *Store) DeleteGroup(ctx context.Context, slug string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_groups WHERE slug = $1`, slug)
	if err != nil {
		return apperr.Storage("delete group", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("group %q not found", slug)
	}
	s.bustGroup(slug)
	return nil
}

func (s *Store) bustRole(name string) {
	if s.cache != nil {
		s.cache.RemoveRole(name)
	}
}

func (s *Store) bustGroup(slug string) {
	if s.cache != nil {
		s.cache.RemoveGroup(slug)
	}
}

func (s *Store) bustCatalog() {
	if s.cache != nil {
		s.cache.RemoveCatalog()
	}
}

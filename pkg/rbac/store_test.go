package rbac

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/folio-cms/folio/pkg/apperr"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE permissions (
			slug TEXT PRIMARY KEY,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			title TEXT NOT NULL,
			permission_slugs TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(name)
		);

		CREATE TABLE user_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL,
			title TEXT NOT NULL,
			permission_slugs TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT,
			updated_by TEXT,
			UNIQUE(slug)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(setupTestDB(t), NewCache(128, time.Minute, nil))
}

func TestCreatePermission(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	perm := &Permission{Slug: "content_read", CreatedBy: "admin"}
	if err := store.CreatePermission(ctx, perm); err != nil {
		t.Fatalf("CreatePermission failed: %v", err)
	}
	if perm.CreatedAt.IsZero() {
		t.Error("expected created_at to be stamped")
	}

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		err := store.CreatePermission(ctx, &Permission{Slug: "content_read"})
		if !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("invalid slug rejected", func(t *testing.T) {
		err := store.CreatePermission(ctx, &Permission{Slug: "Not A Slug"})
		if _, ok := apperr.IsValidation(err); !ok {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestDeletePermission(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreatePermission(ctx, &Permission{Slug: "content_read"}); err != nil {
		t.Fatalf("CreatePermission failed: %v", err)
	}
	if err := store.DeletePermission(ctx, "content_read"); err != nil {
		t.Fatalf("DeletePermission failed: %v", err)
	}
	if _, err := store.GetPermission(ctx, "content_read"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	t.Run("missing slug not found", func(t *testing.T) {
		err := store.DeletePermission(ctx, "no-such-permission")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRoleCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	role := &Role{
		Name:            "editor",
		Title:           "Editor",
		PermissionSlugs: []string{"content_read", "content_write"},
	}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if role.ID == 0 {
		t.Error("expected role id to be assigned")
	}

	got, err := store.GetRoleByName(ctx, "editor")
	if err != nil {
		t.Fatalf("GetRoleByName failed: %v", err)
	}
	if len(got.PermissionSlugs) != 2 {
		t.Errorf("expected 2 permission slugs, got %d", len(got.PermissionSlugs))
	}

	got.Title = "Content Editor"
	got.PermissionSlugs = []string{"content_read"}
	if err := store.UpdateRole(ctx, got); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}

	updated, err := store.GetRoleByName(ctx, "editor")
	if err != nil {
		t.Fatalf("GetRoleByName after update failed: %v", err)
	}
	if updated.Title != "Content Editor" {
		t.Errorf("expected updated title, got %q", updated.Title)
	}
	if len(updated.PermissionSlugs) != 1 {
		t.Errorf("update did not replace permission slugs: %v", updated.PermissionSlugs)
	}

	if err := store.DeleteRole(ctx, "editor"); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}
	if _, err := store.GetRoleByName(ctx, "editor"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateRoleDuplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateRole(ctx, &Role{Name: "editor", Title: "Editor"}); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	err := store.CreateRole(ctx, &Role{Name: "editor", Title: "Other"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestGroupCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	group := &Group{
		Slug:            "staff",
		Title:           "Staff",
		PermissionSlugs: []string{"private_storage_read"},
		CreatedBy:       "admin",
	}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if group.UpdatedBy != "admin" {
		t.Errorf("expected updated_by stamped from created_by, got %q", group.UpdatedBy)
	}

	got, err := store.GetGroupBySlug(ctx, "staff")
	if err != nil {
		t.Fatalf("GetGroupBySlug failed: %v", err)
	}
	if got.Title != "Staff" {
		t.Errorf("unexpected title %q", got.Title)
	}

	got.Title = "Teaching Staff"
	got.UpdatedBy = "root"
	if err := store.UpdateGroup(ctx, got); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}

	updated, err := store.GetGroupBySlug(ctx, "staff")
	if err != nil {
		t.Fatalf("GetGroupBySlug after update failed: %v", err)
	}
	if updated.Title != "Teaching Staff" || updated.UpdatedBy != "root" {
		t.Errorf("update not persisted: %+v", updated)
	}

	if err := store.DeleteGroup(ctx, "staff"); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	if _, err := store.GetGroupBySlug(ctx, "staff"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListRolesOrdering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := store.CreateRole(ctx, &Role{Name: name, Title: name}); err != nil {
			t.Fatalf("CreateRole failed: %v", err)
		}
	}

	roles, err := store.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(roles))
	}
	if roles[0].Name != "alpha" || roles[2].Name != "zeta" {
		t.Errorf("roles not ordered by name: %v", []string{roles[0].Name, roles[1].Name, roles[2].Name})
	}
}

func TestCacheBustOnWrite(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	role := &Role{Name: "editor", Title: "Editor", PermissionSlugs: []string{"content_write"}}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	// Prime the cache.
	if _, err := store.GetRoleByName(ctx, "editor"); err != nil {
		t.Fatalf("GetRoleByName failed: %v", err)
	}

	role.PermissionSlugs = nil
	if err := store.UpdateRole(ctx, role); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}

	// The revocation must be visible on the very next read.
	got, err := store.GetRoleByName(ctx, "editor")
	if err != nil {
		t.Fatalf("GetRoleByName after update failed: %v", err)
	}
	if len(got.PermissionSlugs) != 0 {
		t.Errorf("cache served stale permissions: %v", got.PermissionSlugs)
	}
}

func TestCatalogSet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, slug := range []string{"content_read", "content_write"} {
		if err := store.CreatePermission(ctx, &Permission{Slug: slug}); err != nil {
			t.Fatalf("CreatePermission failed: %v", err)
		}
	}

	set, err := store.CatalogSet(ctx)
	if err != nil {
		t.Fatalf("CatalogSet failed: %v", err)
	}
	if !set.Has("content_read") || !set.Has("content_write") {
		t.Errorf("catalog set incomplete: %v", set.Slugs())
	}

	if err := store.DeletePermission(ctx, "content_write"); err != nil {
		t.Fatalf("DeletePermission failed: %v", err)
	}

	set, err = store.CatalogSet(ctx)
	if err != nil {
		t.Fatalf("CatalogSet after delete failed: %v", err)
	}
	if set.Has("content_write") {
		t.Error("catalog set served deleted permission")
	}
}

func TestInitializeBuiltins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := InitializeBuiltins(ctx, store); err != nil {
		t.Fatalf("InitializeBuiltins failed: %v", err)
	}
	// Idempotent on rerun.
	if err := InitializeBuiltins(ctx, store); err != nil {
		t.Fatalf("InitializeBuiltins rerun failed: %v", err)
	}

	admin, err := store.GetRoleByName(ctx, RoleAdmin)
	if err != nil {
		t.Fatalf("admin role missing after seed: %v", err)
	}
	if len(admin.PermissionSlugs) == 0 {
		t.Error("admin role seeded without permissions")
	}

	anon, err := store.GetRoleByName(ctx, RoleAnonymous)
	if err != nil {
		t.Fatalf("anonymous role missing after seed: %v", err)
	}
	if len(anon.PermissionSlugs) != 1 || anon.PermissionSlugs[0] != PermContentRead {
		t.Errorf("unexpected anonymous permissions: %v", anon.PermissionSlugs)
	}
}

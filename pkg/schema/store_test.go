package schema

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/folio-cms/folio/pkg/apperr"
)

func setupTestRegistry(t *testing.T) *Registry {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	return NewRegistry(db, 64, time.Minute, nil)
}

func TestRegistrySaveAndGet(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	s := pageSchema()
	if err := registry.Save(ctx, &s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if s.CreatedAt.IsZero() {
		t.Error("expected created_at stamped on insert")
	}

	got, err := registry.Get(ctx, "page")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RequiredPermission != "content_read" {
		t.Errorf("unexpected required permission %q", got.RequiredPermission)
	}
	if len(got.Fields) != 5 {
		t.Errorf("expected 5 fields, got %d", len(got.Fields))
	}
}

func TestRegistryUpsert(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	s := pageSchema()
	if err := registry.Save(ctx, &s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s.Title = "Static Page"
	s.Fields = s.Fields[:2]
	if err := registry.Save(ctx, &s); err != nil {
		t.Fatalf("Save (update) failed: %v", err)
	}

	got, err := registry.Get(ctx, "page")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Static Page" {
		t.Errorf("update not visible: got title %q", got.Title)
	}
	if len(got.Fields) != 2 {
		t.Errorf("expected 2 fields after update, got %d", len(got.Fields))
	}
}

func TestRegistryGetMissing(t *testing.T) {
	registry := setupTestRegistry(t)

	_, err := registry.Get(context.Background(), "no-such-kind")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistrySaveInvalid(t *testing.T) {
	registry := setupTestRegistry(t)

	s := pageSchema()
	s.RequiredPermission = ""
	err := registry.Save(context.Background(), &s)
	if _, ok := apperr.IsValidation(err); !ok {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRegistryList(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	for _, kind := range []string{"page", "course", "article"} {
		s := pageSchema()
		s.Kind = kind
		if err := registry.Save(ctx, &s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	schemas, err := registry.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(schemas) != 3 {
		t.Fatalf("expected 3 schemas, got %d", len(schemas))
	}
	if schemas[0].Kind != "article" || schemas[2].Kind != "page" {
		t.Errorf("schemas not ordered by kind: %v", []string{schemas[0].Kind, schemas[1].Kind, schemas[2].Kind})
	}
}

func TestRegistryDelete(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	s := pageSchema()
	if err := registry.Save(ctx, &s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Prime the cache so delete has something to bust.
	if _, err := registry.Get(ctx, "page"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := registry.Delete(ctx, "page"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := registry.Get(ctx, "page"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := registry.Delete(ctx, "page"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestRegistryCacheBustOnSave(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	s := pageSchema()
	if err := registry.Save(ctx, &s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := registry.Get(ctx, "page"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	s.HideExistence = true
	if err := registry.Save(ctx, &s); err != nil {
		t.Fatalf("Save (update) failed: %v", err)
	}

	got, err := registry.Get(ctx, "page")
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if !got.HideExistence {
		t.Error("cache served stale schema after save")
	}
}

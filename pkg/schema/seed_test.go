package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const seedYAML = `
schemas:
  - kind: page
    title: Page
    required_permission: content_read
    fields:
      - kind: string
        slug: heading
        title: Heading
        required: true
      - kind: text
        slug: body
        title: Body
  - kind: course
    title: Course
    required_permission: private_storage_read
    hide_existence: true
    fields:
      - kind: string
        slug: name
        title: Name
        required: true
`

func TestLoadSeedFile(t *testing.T) {
	registry := setupTestRegistry(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "schemas.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	if err := LoadSeedFile(context.Background(), registry, path); err != nil {
		t.Fatalf("LoadSeedFile failed: %v", err)
	}

	page, err := registry.Get(context.Background(), "page")
	if err != nil {
		t.Fatalf("Get page failed: %v", err)
	}
	if len(page.Fields) != 2 || page.Fields[0].Slug != "heading" || !page.Fields[0].Required {
		t.Errorf("page fields not loaded: %+v", page.Fields)
	}

	course, err := registry.Get(context.Background(), "course")
	if err != nil {
		t.Fatalf("Get course failed: %v", err)
	}
	if !course.HideExistence {
		t.Error("hide_existence not loaded")
	}
	if course.RequiredPermission != "private_storage_read" {
		t.Errorf("unexpected required permission %q", course.RequiredPermission)
	}
}

func TestLoadSeedFileInvalidYAML(t *testing.T) {
	registry := setupTestRegistry(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte(":\n  not yaml ["), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	if err := LoadSeedFile(context.Background(), registry, path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadSeedDir(t *testing.T) {
	registry := setupTestRegistry(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(seedYAML), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	// Non-seed files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not yaml"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	if err := LoadSeedDir(context.Background(), registry, dir); err != nil {
		t.Fatalf("LoadSeedDir failed: %v", err)
	}

	schemas, err := registry.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(schemas) != 2 {
		t.Errorf("expected 2 schemas, got %d", len(schemas))
	}
}

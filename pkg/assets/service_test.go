package assets

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/pagination"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/search"
)

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (m *memObjectStore) Put(_ context.Context, key string, content []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content
	m.puts++
	return nil
}

func (m *memObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func setupTestService(t *testing.T) (*Service, *memObjectStore, *search.Indexer) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := search.Migrate(ctx, db); err != nil {
		t.Fatalf("search.Migrate failed: %v", err)
	}

	logger := observability.NewLogger(observability.InfoLevel, io.Discard)
	indexer := search.NewIndexer(search.NewStore(db), logger, nil)
	objects := newMemObjectStore()
	svc := NewService(objects, NewMetadataStore(db), indexer, logger)
	return svc, objects, indexer
}

func TestUploadAndOpen(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	content := []byte("lecture notes")
	asset, err := svc.Upload(ctx, content, "notes.txt", "text/plain", "private_storage_read", "alice")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(asset.Hash) != 64 {
		t.Errorf("expected hex sha256 hash, got %q", asset.Hash)
	}
	if asset.Size != int64(len(content)) || asset.CreatedBy != "alice" {
		t.Errorf("unexpected metadata: %+v", asset)
	}

	got, body, err := svc.Open(ctx, asset.Hash)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("content round-trip mismatch")
	}
	if got.Filename != "notes.txt" || got.ContentType != "text/plain" {
		t.Errorf("unexpected metadata: %+v", got)
	}
}

func TestUploadDeduplicates(t *testing.T) {
	svc, objects, _ := setupTestService(t)
	ctx := context.Background()

	content := []byte("same bytes")
	first, err := svc.Upload(ctx, content, "one.bin", "application/octet-stream", "", "alice")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	second, err := svc.Upload(ctx, content, "two.bin", "application/octet-stream", "", "bob")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if first.Hash != second.Hash {
		t.Errorf("identical content produced different hashes")
	}
	if objects.puts != 1 {
		t.Errorf("expected a single blob write, got %d", objects.puts)
	}
}

func TestUploadIndexesFile(t *testing.T) {
	svc, _, ix := setupTestService(t)
	ctx := context.Background()

	asset, err := svc.Upload(ctx, []byte("pdf bytes"), "syllabus.pdf", "application/pdf", "private_storage_read", "alice")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	t.Run("hidden without permission", func(t *testing.T) {
		entries, _, err := ix.List(ctx, "", rbac.NewPermissionSet(), pagination.Params{})
		if err != nil {
			t.Fatalf("index List failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("gated asset visible to anonymous viewer: %v", entries)
		}
	})

	t.Run("visible with permission", func(t *testing.T) {
		viewer := rbac.NewPermissionSet("private_storage_read")
		entries, _, err := ix.List(ctx, "", viewer, pagination.Params{})
		if err != nil {
			t.Fatalf("index List failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Kind != search.KindFile || entries[0].URL != asset.URL() {
			t.Errorf("unexpected index entries: %v", entries)
		}
	})
}

func TestDelete(t *testing.T) {
	svc, objects, ix := setupTestService(t)
	ctx := context.Background()

	asset, err := svc.Upload(ctx, []byte("bytes"), "file.bin", "application/octet-stream", "", "alice")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := svc.Delete(ctx, asset.Hash); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := svc.Stat(ctx, asset.Hash); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if exists, _ := objects.Exists(ctx, objectKey(asset.Hash)); exists {
		t.Error("blob survived delete")
	}
	entries, _, err := ix.List(ctx, "", rbac.NewPermissionSet(), pagination.Params{})
	if err != nil {
		t.Fatalf("index List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("index entry survived delete: %v", entries)
	}

	t.Run("missing asset", func(t *testing.T) {
		if err := svc.Delete(ctx, "deadbeef"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestFeed(t *testing.T) {
	svc, _, ix := setupTestService(t)
	ctx := context.Background()

	for i, name := range []string{"a.txt", "b.txt"} {
		content := []byte{byte(i), byte(i + 1)}
		if _, err := svc.Upload(ctx, content, name, "text/plain", "", "alice"); err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
	}

	feed := NewFeed(svc.meta)
	entries, err := feed.IndexEntries(ctx)
	if err != nil {
		t.Fatalf("IndexEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if _, err := ix.Rebuild(ctx, feed); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
}

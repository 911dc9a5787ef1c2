package links

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/pagination"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/search"
)

func setupTestService(t *testing.T) (*Service, *search.Indexer) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()

	// sqlite flavor of the links table
	_, err = db.Exec(`
		CREATE TABLE links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			local BOOLEAN NOT NULL DEFAULT FALSE,
			required_permission TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create links table: %v", err)
	}
	if err := search.Migrate(ctx, db); err != nil {
		t.Fatalf("search.Migrate failed: %v", err)
	}

	logger := observability.NewLogger(observability.InfoLevel, io.Discard)
	indexer := search.NewIndexer(search.NewStore(db), logger, nil)
	return NewService(NewStore(db), indexer, logger), indexer
}

func indexTitles(t *testing.T, ix *search.Indexer) []string {
	t.Helper()
	entries, _, err := ix.List(context.Background(), "", rbac.NewPermissionSet("link_manage"), pagination.Params{})
	if err != nil {
		t.Fatalf("index List failed: %v", err)
	}
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}
	return titles
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	l := &Link{Title: "Course Catalog", URL: "/courses", Local: true}
	if err := svc.Create(ctx, l, "alice"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if l.ID == 0 {
		t.Error("expected id assigned")
	}
	if l.CreatedBy != "alice" || l.CreatedAt.IsZero() {
		t.Errorf("stamps missing: %+v", l)
	}

	got, err := svc.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Course Catalog" || !got.Local {
		t.Errorf("unexpected link: %+v", got)
	}
}

func TestCreateDuplicateURL(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	if err := svc.Create(ctx, &Link{Title: "Docs", URL: "https://docs.example.com"}, "alice"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := svc.Create(ctx, &Link{Title: "Docs Again", URL: "https://docs.example.com"}, "bob")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		link *Link
	}{
		{"missing title", &Link{URL: "https://example.com"}},
		{"local without leading slash", &Link{Title: "Bad", URL: "courses", Local: true}},
		{"external without scheme", &Link{Title: "Bad", URL: "example.com/docs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(ctx, tt.link, "alice")
			if _, ok := apperr.IsValidation(err); !ok {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateIndexesLink(t *testing.T) {
	svc, ix := setupTestService(t)
	ctx := context.Background()

	local := &Link{Title: "Dashboard", URL: "/dashboard", Local: true}
	external := &Link{Title: "Upstream Docs", URL: "https://docs.example.com"}
	for _, l := range []*Link{local, external} {
		if err := svc.Create(ctx, l, "alice"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	entries, _, err := ix.List(ctx, "", rbac.NewPermissionSet(), pagination.Params{})
	if err != nil {
		t.Fatalf("index List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 index entries, got %d", len(entries))
	}
	// Local links rank before external ones.
	if entries[0].Kind != search.KindLocalLink || entries[1].Kind != search.KindLink {
		t.Errorf("unexpected kinds: %v, %v", entries[0].Kind, entries[1].Kind)
	}
}

func TestDeleteRemovesIndexEntry(t *testing.T) {
	svc, ix := setupTestService(t)
	ctx := context.Background()

	l := &Link{Title: "Dashboard", URL: "/dashboard", Local: true}
	if err := svc.Create(ctx, l, "alice"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Delete(ctx, l.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if titles := indexTitles(t, ix); len(titles) != 0 {
		t.Errorf("deleted link still indexed: %v", titles)
	}
	if _, err := svc.Get(ctx, l.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	t.Run("missing link", func(t *testing.T) {
		if err := svc.Delete(ctx, 9999); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListPagination(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		l := &Link{Title: title, URL: "https://example.com/" + title}
		if err := svc.Create(ctx, l, "alice"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	items, page, err := svc.List(ctx, pagination.Params{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Gamma" || page.Total != 3 {
		t.Errorf("unexpected window: %v (total %d)", items, page.Total)
	}
}

func TestFeed(t *testing.T) {
	svc, ix := setupTestService(t)
	ctx := context.Background()

	for _, l := range []*Link{
		{Title: "Dashboard", URL: "/dashboard", Local: true, RequiredPermission: "link_manage"},
		{Title: "Docs", URL: "https://docs.example.com"},
	} {
		if err := svc.Create(ctx, l, "alice"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	feed := NewFeed(svc.store)
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
	if titles := indexTitles(t, ix); len(titles) != 2 {
		t.Errorf("expected 2 entries after rebuild, got %v", titles)
	}
}

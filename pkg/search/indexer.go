package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/pagination"
	"github.com/folio-cms/folio/pkg/rbac"
)

const tracerName = "folio/search"

// Feed supplies the authoritative entries for one collaborator (content,
// links, assets). Rebuilds drain every feed; incremental updates arrive via
// Reindex/Remove instead.
type Feed interface {
	Name() string
	IndexEntries(ctx context.Context) ([]Entry, error)
}

// Indexer owns all writes to the index. Reindex calls on distinct items run
// concurrently; calls on the same (kind, url) are serialized so the last
// committed writer wins.
type Indexer struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIndexer(store *Store, logger *observability.Logger, metrics *observability.Metrics) *Indexer {
	return &Indexer{
		store:   store,
		logger:  logger,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (ix *Indexer) lockFor(kind Kind, url string) *sync.Mutex {
	key := fmt.Sprintf("%d:%s", int(kind), url)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	l, ok := ix.locks[key]
	if !ok {
		l = &sync.Mutex{}
		ix.locks[key] = l
	}
	return l
}

// Reindex writes or refreshes a single entry.
func (ix *Indexer) Reindex(ctx context.Context, e Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("reindex: unknown kind %d", int(e.Kind))
	}

	l := ix.lockFor(e.Kind, e.URL)
	l.Lock()
	defer l.Unlock()

	if err := ix.store.Upsert(ctx, e); err != nil {
		ix.count("reindex_error")
		return err
	}
	ix.count("reindex")
	return nil
}

// Remove drops the entry keyed by (kind, url).
func (ix *Indexer) Remove(ctx context.Context, kind Kind, url string) error {
	l := ix.lockFor(kind, url)
	l.Lock()
	defer l.Unlock()

	if err := ix.store.Remove(ctx, kind, url); err != nil {
		ix.count("remove_error")
		return err
	}
	ix.count("remove")
	return nil
}

// List returns the entries visible to a viewer holding the given permission
// slugs, rank-ordered and windowed. query, when non-empty, is matched
// case-insensitively against titles.
func (ix *Indexer) List(ctx context.Context, query string, viewer rbac.PermissionSet, params pagination.Params) ([]Entry, pagination.Page, error) {
	entries, err := ix.store.All(ctx)
	if err != nil {
		return nil, pagination.Page{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	visible := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.RequiredPermission != "" && !viewer.Has(e.RequiredPermission) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Title), needle) {
			continue
		}
		visible = append(visible, e)
	}

	window, page := pagination.Paginate(visible, params)
	return window, page, nil
}

// Rebuild replaces the whole index from the authoritative feeds. Feeds are
// drained concurrently; any feed failure aborts the rebuild and leaves the
// existing index untouched.
func (ix *Indexer) Rebuild(ctx context.Context, feeds ...Feed) (int, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "search.rebuild")
	defer span.End()

	start := time.Now()

	var mu sync.Mutex
	var entries []Entry

	g, gctx := errgroup.WithContext(ctx)
	for _, feed := range feeds {
		feed := feed
		g.Go(func() error {
			batch, err := feed.IndexEntries(gctx)
			if err != nil {
				return fmt.Errorf("feed %s: %w", feed.Name(), err)
			}
			mu.Lock()
			entries = append(entries, batch...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ix.count("rebuild_error")
		return 0, err
	}

	if err := ix.store.Replace(ctx, entries); err != nil {
		ix.count("rebuild_error")
		return 0, err
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("search.entries", len(entries)),
		attribute.Int("search.feeds", len(feeds)),
	)
	if ix.metrics != nil {
		ix.metrics.IndexRebuildSeconds.Observe(elapsed.Seconds())
	}
	ix.count("rebuild")
	ix.logger.WithFields(map[string]interface{}{
		"entries":     len(entries),
		"feeds":       len(feeds),
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Search index rebuilt")

	return len(entries), nil
}

func (ix *Indexer) count(op string) {
	if ix.metrics != nil {
		ix.metrics.IndexOpsTotal.WithLabelValues(op).Inc()
	}
}

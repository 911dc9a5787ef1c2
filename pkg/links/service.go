package links

import (
	"context"

	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/pagination"
	"github.com/folio-cms/folio/pkg/search"
)

// Kind ranks a link in the search index.
func (l *Link) Kind() search.Kind {
	if l.Local {
		return search.KindLocalLink
	}
	return search.KindLink
}

func (l *Link) indexEntry() search.Entry {
	return search.Entry{
		Kind:               l.Kind(),
		Title:              l.Title,
		URL:                l.URL,
		RequiredPermission: l.RequiredPermission,
	}
}

// Service wraps the store and keeps the search index in step with link
// writes. Index updates run strictly after the store commit; index failures
// only log, a rebuild recovers drift.
type Service struct {
	store   *Store
	indexer *search.Indexer
	logger  *observability.Logger
}

func NewService(store *Store, indexer *search.Indexer, logger *observability.Logger) *Service {
	return &Service{store: store, indexer: indexer, logger: logger}
}

func (s *Service) Create(ctx context.Context, l *Link, actor string) error {
	if err := s.store.Create(ctx, l, actor); err != nil {
		return err
	}
	if err := s.indexer.Reindex(ctx, l.indexEntry()); err != nil {
		s.logger.WithError(err).WithField("url", l.URL).Error("Failed to index link")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Link, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, params pagination.Params) ([]Link, pagination.Page, error) {
	return s.store.List(ctx, params)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.indexer.Remove(ctx, l.Kind(), l.URL); err != nil {
		s.logger.WithError(err).WithField("url", l.URL).Error("Failed to remove link index entry")
	}
	return nil
}

// Feed drains the link registry for full index rebuilds.
type Feed struct {
	store *Store
}

func NewFeed(store *Store) *Feed {
	return &Feed{store: store}
}

func (f *Feed) Name() string { return "links" }

func (f *Feed) IndexEntries(ctx context.Context) ([]search.Entry, error) {
	items, err := f.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]search.Entry, 0, len(items))
	for i := range items {
		entries = append(entries, items[i].indexEntry())
	}
	return entries, nil
}

package search

import (
	"context"
	"fmt"

	"github.com/folio-cms/folio/pkg/content"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/schema"
)

// ContentURL is the canonical location of a content entry in the index.
func ContentURL(schemaKind, slug string) string {
	return fmt.Sprintf("/content/%s/%s", schemaKind, slug)
}

// KindForSchema maps a schema kind onto an index rank. Courses are
// file-like; everything else indexes as a page.
func KindForSchema(schemaKind string) Kind {
	if schemaKind == "course" {
		return KindCourse
	}
	return KindPage
}

// ContentHook keeps the index in step with content writes. The repository
// invokes it strictly after each commit; failures here only log, since the
// index is derived and a rebuild recovers any drift.
type ContentHook struct {
	indexer *Indexer
	logger  *observability.Logger
}

func NewContentHook(indexer *Indexer, logger *observability.Logger) *ContentHook {
	return &ContentHook{indexer: indexer, logger: logger}
}

func (h *ContentHook) ContentWritten(ctx context.Context, sch *schema.Schema, c *content.Content) {
	kind := KindForSchema(sch.Kind)
	url := ContentURL(sch.Kind, c.Slug)

	var err error
	if c.Published {
		err = h.indexer.Reindex(ctx, Entry{
			Kind:               kind,
			Title:              c.Title,
			URL:                url,
			RequiredPermission: sch.RequiredPermission,
		})
	} else {
		// Unpublished entries are hidden from search entirely.
		err = h.indexer.Remove(ctx, kind, url)
	}
	if err != nil {
		h.logger.WithError(err).WithField("url", url).Error("Failed to reindex content entry")
	}
}

func (h *ContentHook) ContentDeleted(ctx context.Context, sch *schema.Schema, c *content.Content) {
	url := ContentURL(sch.Kind, c.Slug)
	if err := h.indexer.Remove(ctx, KindForSchema(sch.Kind), url); err != nil {
		h.logger.WithError(err).WithField("url", url).Error("Failed to remove content index entry")
	}
}

// ContentFeed drains the content repository for full rebuilds.
type ContentFeed struct {
	repo    *content.Repository
	schemas *schema.Registry
}

func NewContentFeed(repo *content.Repository, schemas *schema.Registry) *ContentFeed {
	return &ContentFeed{repo: repo, schemas: schemas}
}

func (f *ContentFeed) Name() string { return "content" }

func (f *ContentFeed) IndexEntries(ctx context.Context) ([]Entry, error) {
	items, err := f.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	// Schemas are few; fetch once and index by kind.
	all, err := f.schemas.List(ctx)
	if err != nil {
		return nil, err
	}
	byKind := make(map[string]*schema.Schema, len(all))
	for i := range all {
		byKind[all[i].Kind] = &all[i]
	}

	entries := make([]Entry, 0, len(items))
	for _, c := range items {
		if !c.Published {
			continue
		}
		sch, ok := byKind[c.SchemaKind]
		if !ok {
			// Orphaned content under a deleted schema stays out of the index.
			continue
		}
		entries = append(entries, Entry{
			Kind:               KindForSchema(sch.Kind),
			Title:              c.Title,
			URL:                ContentURL(sch.Kind, c.Slug),
			RequiredPermission: sch.RequiredPermission,
		})
	}
	return entries, nil
}

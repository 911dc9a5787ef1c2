package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/pagination"
	"github.com/folio-cms/folio/pkg/search"
)

// objectKey is the content-addressed blob key: sha256/ab/cdef....
func objectKey(hash string) string {
	return fmt.Sprintf("sha256/%s/%s", hash[:2], hash[2:])
}

// Service ties the blob store and metadata store together and keeps the
// search index in step. Files index under the uploader-supplied required
// permission; an empty permission makes the file public.
type Service struct {
	objects ObjectStore
	meta    *MetadataStore
	indexer *search.Indexer
	logger  *observability.Logger
}

func NewService(objects ObjectStore, meta *MetadataStore, indexer *search.Indexer, logger *observability.Logger) *Service {
	return &Service{objects: objects, meta: meta, indexer: indexer, logger: logger}
}

// Upload stores content under its SHA-256 hash. Identical content
// deduplicates to the same asset regardless of filename.
func (s *Service) Upload(ctx context.Context, content []byte, filename, contentType, requiredPermission, actor string) (*Asset, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	key := objectKey(hash)

	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.objects.Put(ctx, key, content, contentType); err != nil {
			return nil, err
		}
	}

	asset := &Asset{
		Hash:               hash,
		Filename:           filename,
		ContentType:        contentType,
		Size:               int64(len(content)),
		RequiredPermission: requiredPermission,
		CreatedBy:          actor,
	}
	if err := s.meta.Save(ctx, asset); err != nil {
		return nil, err
	}

	if err := s.indexer.Reindex(ctx, indexEntry(asset)); err != nil {
		s.logger.WithError(err).WithField("hash", hash).Error("Failed to index asset")
	}
	return asset, nil
}

// Open returns the asset metadata and a reader over its content.
func (s *Service) Open(ctx context.Context, hash string) (*Asset, io.ReadCloser, error) {
	asset, err := s.meta.Get(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.objects.Get(ctx, objectKey(hash))
	if err != nil {
		return nil, nil, err
	}
	return asset, body, nil
}

// Stat returns asset metadata without fetching the blob.
func (s *Service) Stat(ctx context.Context, hash string) (*Asset, error) {
	return s.meta.Get(ctx, hash)
}

// List returns asset metadata ordered by filename.
func (s *Service) List(ctx context.Context, params pagination.Params) ([]Asset, pagination.Page, error) {
	return s.meta.List(ctx, params)
}

// Delete removes the metadata, the blob and the index entry.
func (s *Service) Delete(ctx context.Context, hash string) error {
	asset, err := s.meta.Get(ctx, hash)
	if err != nil {
		return err
	}
	if err := s.meta.Delete(ctx, hash); err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, objectKey(hash)); err != nil {
		s.logger.WithError(err).WithField("hash", hash).Error("Failed to delete asset blob")
	}
	if err := s.indexer.Remove(ctx, search.KindFile, asset.URL()); err != nil {
		s.logger.WithError(err).WithField("hash", hash).Error("Failed to remove asset index entry")
	}
	return nil
}

func indexEntry(a *Asset) search.Entry {
	return search.Entry{
		Kind:               search.KindFile,
		Title:              a.Filename,
		URL:                a.URL(),
		RequiredPermission: a.RequiredPermission,
	}
}

// Feed drains asset metadata for full index rebuilds.
type Feed struct {
	meta *MetadataStore
}

func NewFeed(meta *MetadataStore) *Feed {
	return &Feed{meta: meta}
}

func (f *Feed) Name() string { return "assets" }

func (f *Feed) IndexEntries(ctx context.Context) ([]search.Entry, error) {
	items, err := f.meta.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]search.Entry, 0, len(items))
	for i := range items {
		entries = append(entries, indexEntry(&items[i]))
	}
	return entries, nil
}

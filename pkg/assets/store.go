package assets

import (
	"context"
	"database/sql"
	"time"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/pagination"
)

// MetadataStore persists asset records keyed by content hash.
type MetadataStore struct {
	db *sql.DB
}

func NewMetadataStore(db *sql.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// Migrate creates the assets table.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS assets (
			hash VARCHAR(64) PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			content_type VARCHAR(128) NOT NULL DEFAULT 'application/octet-stream',
			size BIGINT NOT NULL DEFAULT 0,
			required_permission VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by VARCHAR(255) NOT NULL DEFAULT ''
		)
	`)
	return apperr.Storage("migrate assets", err)
}

// Save records asset metadata. Re-uploading the same content is a no-op;
// content addressing makes the row idempotent.
func (s *MetadataStore) Save(ctx context.Context, a *Asset) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET filename = $1, content_type = $2, size = $3, required_permission = $4
		WHERE hash = $5
	`, a.Filename, a.ContentType, a.Size, a.RequiredPermission, a.Hash)
	if err != nil {
		return apperr.Storage("update asset", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("update asset", err)
	}
	if affected > 0 {
		return nil
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assets (hash, filename, content_type, size, required_permission, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.Hash, a.Filename, a.ContentType, a.Size, a.RequiredPermission, now, a.CreatedBy)
	if err != nil {
		return apperr.Storage("insert asset", err)
	}
	a.CreatedAt = now
	return nil
}

// Get retrieves asset metadata by hash.
func (s *MetadataStore) Get(ctx context.Context, hash string) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hash, filename, content_type, size, required_permission, created_at, created_by
		FROM assets
		WHERE hash = $1
	`, hash)

	var a Asset
	err := row.Scan(&a.Hash, &a.Filename, &a.ContentType, &a.Size, &a.RequiredPermission, &a.CreatedAt, &a.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("asset %q not found", hash)
	}
	if err != nil {
		return nil, apperr.Storage("get asset", err)
	}
	return &a, nil
}

// List returns assets ordered by filename, windowed by params.
func (s *MetadataStore) List(ctx context.Context, params pagination.Params) ([]Asset, pagination.Page, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&total); err != nil {
		return nil, pagination.Page{}, apperr.Storage("count assets", err)
	}

	params = params.Normalize()
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, filename, content_type, size, required_permission, created_at, created_by
		FROM assets
		ORDER BY filename ASC, hash ASC
		LIMIT $1 OFFSET $2
	`, params.PerPage, params.Offset())
	if err != nil {
		return nil, pagination.Page{}, apperr.Storage("list assets", err)
	}
	defer rows.Close()

	items := make([]Asset, 0, params.PerPage)
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Hash, &a.Filename, &a.ContentType, &a.Size, &a.RequiredPermission, &a.CreatedAt, &a.CreatedBy); err != nil {
			return nil, pagination.Page{}, apperr.Storage("scan asset", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Page{}, apperr.Storage("list assets", err)
	}

	return items, pagination.PageFor(params, total), nil
}

// ListAll returns every asset, for index rebuilds.
func (s *MetadataStore) ListAll(ctx context.Context) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, filename, content_type, size, required_permission, created_at, created_by
		FROM assets
		ORDER BY filename ASC, hash ASC
	`)
	if err != nil {
		return nil, apperr.Storage("list assets", err)
	}
	defer rows.Close()

	var items []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Hash, &a.Filename, &a.ContentType, &a.Size, &a.RequiredPermission, &a.CreatedAt, &a.CreatedBy); err != nil {
			return nil, apperr.Storage("scan asset", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list assets", err)
	}
	return items, nil
}

// Delete removes an asset record by hash.
func (s *MetadataStore) Delete(ctx context.Context, hash string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE hash = $1`, hash)
	if err != nil {
		return apperr.Storage("delete asset", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("delete asset", err)
	}
	if affected == 0 {
		return apperr.NotFoundf("asset %q not found", hash)
	}
	return nil
}

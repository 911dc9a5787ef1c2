package search

import (
	"context"
	"database/sql"

	"github.com/folio-cms/folio/pkg/apperr"
)

// Store persists index entries keyed by (kind, url). It is a plain table,
// not the source of truth; the indexer owns all mutation ordering.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the index table.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS search_index (
			kind INTEGER NOT NULL,
			url VARCHAR(512) NOT NULL,
			title VARCHAR(255) NOT NULL,
			required_permission VARCHAR(64) NOT NULL DEFAULT '',
			UNIQUE (kind, url)
		)
	`)
	return apperr.Storage("migrate search index", err)
}

// Upsert writes an entry, replacing any previous row under the same
// (kind, url) key.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE search_index
		SET title = $1, required_permission = $2
		WHERE kind = $3 AND url = $4
	`, e.Title, e.RequiredPermission, int(e.Kind), e.URL)
	if err != nil {
		return apperr.Storage("update index entry", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("update index entry", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_index (kind, url, title, required_permission)
		VALUES ($1, $2, $3, $4)
	`, int(e.Kind), e.URL, e.Title, e.RequiredPermission)
	return apperr.Storage("insert index entry", err)
}

// Remove deletes the entry keyed by (kind, url). Removing an absent entry
// is not an error; reindex and delete race benignly on derived data.
func (s *Store) Remove(ctx context.Context, kind Kind, url string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM search_index WHERE kind = $1 AND url = $2
	`, int(kind), url)
	return apperr.Storage("remove index entry", err)
}

// All returns every entry in rank order.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, url, title, required_permission
		FROM search_index
		ORDER BY kind ASC, title ASC
	`)
	if err != nil {
		return nil, apperr.Storage("list index entries", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind int
		if err := rows.Scan(&kind, &e.URL, &e.Title, &e.RequiredPermission); err != nil {
			return nil, apperr.Storage("scan index entry", err)
		}
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list index entries", err)
	}
	return entries, nil
}

// Replace swaps the whole index for the given entries in one transaction.
// Used by full rebuilds.
func (s *Store) Replace(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("begin index rebuild", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_index`); err != nil {
		return apperr.Storage("clear index", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO search_index (kind, url, title, required_permission)
			VALUES ($1, $2, $3, $4)
		`, int(e.Kind), e.URL, e.Title, e.RequiredPermission)
		if err != nil {
			return apperr.Storage("insert index entry", err)
		}
	}

	return apperr.Storage("commit index rebuild", tx.Commit())
}

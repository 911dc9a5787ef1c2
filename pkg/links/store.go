package links

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/pagination"
)

// Store persists links.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the links table.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS links (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			url VARCHAR(512) NOT NULL UNIQUE,
			local BOOLEAN NOT NULL DEFAULT FALSE,
			required_permission VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by VARCHAR(255) NOT NULL DEFAULT ''
		)
	`)
	return apperr.Storage("migrate links", err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create inserts a link and assigns its id and stamps.
func (s *Store) Create(ctx context.Context, l *Link, actor string) error {
	if err := l.Validate(); err != nil {
		return apperr.NewValidation(err.Error(), "url")
	}

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO links (title, url, local, required_permission, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, l.Title, l.URL, l.Local, l.RequiredPermission, now, actor).Scan(&l.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflictf("link %q already registered", l.URL)
		}
		return apperr.Storage("create link", err)
	}

	l.CreatedAt = now
	l.CreatedBy = actor
	return nil
}

// Get retrieves a link by id.
func (s *Store) Get(ctx context.Context, id int64) (*Link, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, url, local, required_permission, created_at, created_by
		FROM links
		WHERE id = $1
	`, id)

	l, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("link %d not found", id)
	}
	if err != nil {
		return nil, apperr.Storage("get link", err)
	}
	return l, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row rowScanner) (*Link, error) {
	var l Link
	err := row.Scan(&l.ID, &l.Title, &l.URL, &l.Local, &l.RequiredPermission, &l.CreatedAt, &l.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// List returns links ordered by title, windowed by params.
func (s *Store) List(ctx context.Context, params pagination.Params) ([]Link, pagination.Page, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&total); err != nil {
		return nil, pagination.Page{}, apperr.Storage("count links", err)
	}

	params = params.Normalize()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, url, local, required_permission, created_at, created_by
		FROM links
		ORDER BY title ASC, url ASC
		LIMIT $1 OFFSET $2
	`, params.PerPage, params.Offset())
	if err != nil {
		return nil, pagination.Page{}, apperr.Storage("list links", err)
	}
	defer rows.Close()

	items := make([]Link, 0, params.PerPage)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, pagination.Page{}, apperr.Storage("scan link", err)
		}
		items = append(items, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Page{}, apperr.Storage("list links", err)
	}

	return items, pagination.PageFor(params, total), nil
}

// ListAll returns every link, for index rebuilds.
func (s *Store) ListAll(ctx context.Context) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, url, local, required_permission, created_at, created_by
		FROM links
		ORDER BY title ASC, url ASC
	`)
	if err != nil {
		return nil, apperr.Storage("list links", err)
	}
	defer rows.Close()

	var items []Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, apperr.Storage("scan link", err)
		}
		items = append(items, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list links", err)
	}
	return items, nil
}

// Delete removes a link by id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return apperr.Storage("delete link", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("delete link", err)
	}
	if affected == 0 {
		return apperr.NotFoundf("link %d not found", id)
	}
	return nil
}

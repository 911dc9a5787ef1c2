package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/pagination"
	"github.com/folio-cms/folio/pkg/schema"
)

// IndexHook is notified strictly after a content write commits. The index
// is derived, so hook failures are logged and never fail the request.
type IndexHook interface {
	ContentWritten(ctx context.Context, sch *schema.Schema, c *Content)
	ContentDeleted(ctx context.Context, sch *schema.Schema, c *Content)
}

// Repository persists content entries. Permission enforcement happens in
// the middleware chain before any method here runs; the repository trusts
// its caller.
type Repository struct {
	db      *sql.DB
	schemas *schema.Registry
	hook    IndexHook
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRepository creates a content repository. hook and metrics may be nil.
func NewRepository(db *sql.DB, schemas *schema.Registry, logger *observability.Logger, metrics *observability.Metrics) *Repository {
	return &Repository{
		db:      db,
		schemas: schemas,
		logger:  logger,
		metrics: metrics,
	}
}

// SetIndexHook wires the search index hook. Set once during startup,
// after the indexer exists; the hook direction avoids an import cycle.
func (r *Repository) SetIndexHook(hook IndexHook) {
	r.hook = hook
}

// Migrate creates the contents table.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS contents (
			id BIGSERIAL PRIMARY KEY,
			schema_kind VARCHAR(64) NOT NULL,
			slug VARCHAR(128) NOT NULL,
			title VARCHAR(255) NOT NULL,
			data TEXT,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by VARCHAR(255) NOT NULL DEFAULT '',
			updated_by VARCHAR(255) NOT NULL DEFAULT '',
			UNIQUE(schema_kind, slug)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create contents table: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	// sqlite, used by unit tests
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create stores a new entry. The slug must be unique within the schema;
// the store's unique constraint picks exactly one winner under concurrent
// creates and the loser gets Conflict.
func (r *Repository) Create(ctx context.Context, schemaKind string, c *Content, actor string) error {
	sch, err := r.schemas.Get(ctx, schemaKind)
	if err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		return apperr.NewValidation(err.Error(), "slug")
	}
	if c.Data != nil {
		if err := sch.ValidatePayload(c.Data); err != nil {
			return err
		}
	}

	dataJSON, err := marshalData(c.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO contents (schema_kind, slug, title, data, published, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, schemaKind, c.Slug, c.Title, dataJSON, c.Published, now, now, actor, actor).Scan(&c.ID)

	if err != nil {
		if isUniqueViolation(err) {
			r.countError(schemaKind, "create")
			return apperr.Conflictf("content %q already exists under schema %q", c.Slug, schemaKind)
		}
		r.countError(schemaKind, "create")
		return apperr.Storage("create content", err)
	}

	c.SchemaKind = schemaKind
	c.CreatedAt = now
	c.UpdatedAt = now
	c.CreatedBy = actor
	c.UpdatedBy = actor

	r.count(schemaKind, "create")
	r.afterWrite(ctx, sch, c, false)
	return nil
}

// Get retrieves an entry by (schema, slug).
func (r *Repository) Get(ctx context.Context, schemaKind, slug string) (*Content, error) {
	if _, err := r.schemas.Get(ctx, schemaKind); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, schema_kind, slug, title, data, published, created_at, updated_at, created_by, updated_by
		FROM contents
		WHERE schema_kind = $1 AND slug = $2
	`, schemaKind, slug)

	c, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("content %q not found under schema %q", slug, schemaKind)
	}
	if err != nil {
		return nil, apperr.Storage("get content", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContent(row rowScanner) (*Content, error) {
	var c Content
	var dataJSON sql.NullString

	err := row.Scan(
		&c.ID,
		&c.SchemaKind,
		&c.Slug,
		&c.Title,
		&dataJSON,
		&c.Published,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.CreatedBy,
		&c.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &c.Data); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Update replaces an entry's title, data and published flag. Timestamps and
// author stamps are server-assigned.
func (r *Repository) Update(ctx context.Context, schemaKind, slug string, c *Content, actor string) error {
	sch, err := r.schemas.Get(ctx, schemaKind)
	if err != nil {
		return err
	}

	existing, err := r.Get(ctx, schemaKind, slug)
	if err != nil {
		return err
	}

	c.Slug = slug
	if err := c.Validate(); err != nil {
		return apperr.NewValidation(err.Error(), "slug")
	}
	if c.Data != nil {
		if err := sch.ValidatePayload(c.Data); err != nil {
			return err
		}
	}

	dataJSON, err := marshalData(c.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		UPDATE contents
		SET title = $1, data = $2, published = $3, updated_at = $4, updated_by = $5
		WHERE schema_kind = $6 AND slug = $7
	`, c.Title, dataJSON, c.Published, now, actor, schemaKind, slug)
	if err != nil {
		r.countError(schemaKind, "update")
		return apperr.Storage("update content", err)
	}

	c.ID = existing.ID
	c.SchemaKind = schemaKind
	c.CreatedAt = existing.CreatedAt
	c.CreatedBy = existing.CreatedBy
	c.UpdatedAt = now
	c.UpdatedBy = actor

	r.count(schemaKind, "update")
	r.afterWrite(ctx, sch, c, false)
	return nil
}

// Delete removes an entry outright. No tombstone; soft-hide is the
// published flag, not delete.
func (r *Repository) Delete(ctx context.Context, schemaKind, slug string) error {
	sch, err := r.schemas.Get(ctx, schemaKind)
	if err != nil {
		return err
	}

	existing, err := r.Get(ctx, schemaKind, slug)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		DELETE FROM contents WHERE schema_kind = $1 AND slug = $2
	`, schemaKind, slug)
	if err != nil {
		r.countError(schemaKind, "delete")
		return apperr.Storage("delete content", err)
	}

	r.count(schemaKind, "delete")
	r.afterWrite(ctx, sch, existing, true)
	return nil
}

// List returns entries under a schema ordered by title then slug, windowed
// by params. published=false entries are excluded unless opts asks for them.
func (r *Repository) List(ctx context.Context, schemaKind string, opts ListOptions, params pagination.Params) ([]Content, pagination.Page, error) {
	if _, err := r.schemas.Get(ctx, schemaKind); err != nil {
		return nil, pagination.Page{}, err
	}

	where := "schema_kind = $1"
	if !opts.IncludeUnpublished {
		where += " AND published = TRUE"
	}

	var total int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contents WHERE "+where, schemaKind).Scan(&total)
	if err != nil {
		return nil, pagination.Page{}, apperr.Storage("count content", err)
	}

	params = params.Normalize()
	query := fmt.Sprintf(`
		SELECT id, schema_kind, slug, title, data, published, created_at, updated_at, created_by, updated_by
		FROM contents
		WHERE %s
		ORDER BY title ASC, slug ASC
		LIMIT $2 OFFSET $3
	`, where)

	rows, err := r.db.QueryContext(ctx, query, schemaKind, params.PerPage, params.Offset())
	if err != nil {
		return nil, pagination.Page{}, apperr.Storage("list content", err)
	}
	defer rows.Close()

	items := make([]Content, 0, params.PerPage)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, pagination.Page{}, apperr.Storage("scan content", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Page{}, apperr.Storage("list content", err)
	}

	return items, pagination.PageFor(params, total), nil
}

// ListAll streams every entry under every schema, for index rebuilds.
func (r *Repository) ListAll(ctx context.Context) ([]Content, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schema_kind, slug, title, data, published, created_at, updated_at, created_by, updated_by
		FROM contents
		ORDER BY schema_kind ASC, slug ASC
	`)
	if err != nil {
		return nil, apperr.Storage("list all content", err)
	}
	defer rows.Close()

	var items []Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, apperr.Storage("scan content", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func marshalData(data map[string]interface{}) (sql.NullString, error) {
	if data == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return sql.NullString{}, apperr.Storage("marshal content data", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// afterWrite runs the index hook once the authoritative write has
// committed. Ordering matters: the hook never runs before or interleaved
// with the content write.
func (r *Repository) afterWrite(ctx context.Context, sch *schema.Schema, c *Content, deleted bool) {
	if r.hook == nil {
		return
	}
	if deleted {
		r.hook.ContentDeleted(ctx, sch, c)
		return
	}
	r.hook.ContentWritten(ctx, sch, c)
}

func (r *Repository) count(schemaKind, op string) {
	if r.metrics != nil {
		r.metrics.ContentOpsTotal.WithLabelValues(schemaKind, op).Inc()
	}
}

func (r *Repository) countError(schemaKind, op string) {
	if r.metrics != nil {
		r.metrics.ContentErrorsTotal.WithLabelValues(schemaKind, op).Inc()
	}
}

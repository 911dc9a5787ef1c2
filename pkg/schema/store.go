package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/observability"
)

// Registry persists schema definitions and serves them through a short-TTL
// cache. Saving a schema never revalidates existing content; stale entries
// stay stored as-is until their next write.
type Registry struct {
	db      *sql.DB
	cache   *expirable.LRU[string, *Schema]
	metrics *observability.Metrics
}

// NewRegistry creates a registry. metrics may be nil.
func NewRegistry(db *sql.DB, cacheSize int, cacheTTL time.Duration, metrics *observability.Metrics) *Registry {
	return &Registry{
		db:      db,
		cache:   expirable.NewLRU[string, *Schema](cacheSize, nil, cacheTTL),
		metrics: metrics,
	}
}

// Migrate creates the schemas table.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schemas (
			kind VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			required_permission VARCHAR(64) NOT NULL,
			hide_existence BOOLEAN NOT NULL DEFAULT FALSE,
			fields TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schemas table: %w", err)
	}
	return nil
}

// Save upserts a schema definition by kind.
func (r *Registry) Save(ctx context.Context, s *Schema) error {
	if err := s.Validate(); err != nil {
		return apperr.NewValidation(err.Error(), "kind")
	}

	fieldsJSON, err := json.Marshal(s.Fields)
	if err != nil {
		return apperr.Storage("marshal schema fields", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE schemas
		SET title = $1, required_permission = $2, hide_existence = $3, fields = $4, updated_at = $5
		WHERE kind = $6
	`, s.Title, s.RequiredPermission, s.HideExistence, string(fieldsJSON), now, s.Kind)
	if err != nil {
		return apperr.Storage("update schema", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO schemas (kind, title, required_permission, hide_existence, fields, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, s.Kind, s.Title, s.RequiredPermission, s.HideExistence, string(fieldsJSON), now, now)
		if err != nil {
			return apperr.Storage("insert schema", err)
		}
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	r.cache.Remove(s.Kind)
	return nil
}

// Get retrieves a schema by kind.
func (r *Registry) Get(ctx context.Context, kind string) (*Schema, error) {
	if s, ok := r.cache.Get(kind); ok {
		r.record(true)
		return s, nil
	}
	r.record(false)

	row := r.db.QueryRowContext(ctx, `
		SELECT kind, title, required_permission, hide_existence, fields, created_at, updated_at
		FROM schemas
		WHERE kind = $1
	`, kind)

	s, err := scanSchema(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("schema %q not found", kind)
	}
	if err != nil {
		return nil, apperr.Storage("get schema", err)
	}

	r.cache.Add(kind, s)
	return s, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchema(row rowScanner) (*Schema, error) {
	var s Schema
	var fieldsJSON string

	err := row.Scan(
		&s.Kind,
		&s.Title,
		&s.RequiredPermission,
		&s.HideExistence,
		&fieldsJSON,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &s.Fields); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all schemas ordered by kind.
func (r *Registry) List(ctx context.Context) ([]Schema, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, title, required_permission, hide_existence, fields, created_at, updated_at
		FROM schemas
		ORDER BY kind ASC
	`)
	if err != nil {
		return nil, apperr.Storage("list schemas", err)
	}
	defer rows.Close()

	var schemas []Schema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, apperr.Storage("scan schema", err)
		}
		schemas = append(schemas, *s)
	}
	return schemas, rows.Err()
}

// Delete removes a schema definition. Content under the kind is untouched.
func (r *Registry) Delete(ctx context.Context, kind string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schemas WHERE kind = $1`, kind)
	if err != nil {
		return apperr.Storage("delete schema", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("schema %q not found", kind)
	}
	r.cache.Remove(kind)
	return nil
}

func (r *Registry) record(hit bool) {
	if r.metrics == nil {
		return
	}
	if hit {
		r.metrics.CacheHitsTotal.WithLabelValues("schema").Inc()
	} else {
		r.metrics.CacheMissesTotal.WithLabelValues("schema").Inc()
	}
}

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/pagination"
)

// Store persists audit events.
type Store struct {
	db     *sql.DB
	logger *observability.Logger
}

func NewStore(db *sql.DB, logger *observability.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates the audit_events table.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			actor VARCHAR(255) NOT NULL DEFAULT '',
			resource VARCHAR(512) NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return apperr.Storage("migrate audit events", err)
	}
	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events (created_at)
	`)
	return apperr.Storage("index audit events", err)
}

// Record writes one event. Errors are logged, never returned: audit must
// not fail the mutation it describes.
func (s *Store) Record(ctx context.Context, eventType EventType, actor, resource, detail string) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, actor, resource, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, string(eventType), actor, resource, detail, time.Now().UTC())
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"event_type": string(eventType),
			"resource":   resource,
		}).Error("failed to record audit event")
	}
}

// List returns events newest first, optionally narrowed by filter.
func (s *Store) List(ctx context.Context, filter Filter, params pagination.Params) ([]Event, pagination.Page, error) {
	params = params.Normalize()

	where := " WHERE 1=1"
	args := []interface{}{}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filter.Actor != "" {
		args = append(args, filter.Actor)
		where += fmt.Sprintf(" AND actor = $%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events"+where, args...).Scan(&total); err != nil {
		return nil, pagination.Page{}, apperr.Storage("count audit events", err)
	}

	query := fmt.Sprintf(
		"SELECT id, event_type, actor, resource, detail, created_at FROM audit_events%s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, params.PerPage, params.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pagination.Page{}, apperr.Storage("list audit events", err)
	}
	defer rows.Close()

	events := make([]Event, 0, params.PerPage)
	for rows.Next() {
		var e Event
		var eventType string
		if err := rows.Scan(&e.ID, &eventType, &e.Actor, &e.Resource, &e.Detail, &e.CreatedAt); err != nil {
			return nil, pagination.Page{}, apperr.Storage("scan audit event", err)
		}
		e.Type = EventType(eventType)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pagination.Page{}, apperr.Storage("iterate audit events", err)
	}
	return events, pagination.PageFor(params, total), nil
}

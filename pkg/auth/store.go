package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/folio-cms/folio/pkg/apperr"
)

// Token is the stored record of a minted API token. The plaintext never
// persists; only its hash does.
type Token struct {
	ID         int64      `json:"id"`
	Prefix     string     `json:"prefix"`
	Login      string     `json:"login"`
	Role       string     `json:"role"`
	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  string     `json:"created_by"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Revoked    bool       `json:"revoked"`
}

// Store persists token records.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the api_tokens table.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_tokens (
			id BIGSERIAL PRIMARY KEY,
			token_hash VARCHAR(64) NOT NULL UNIQUE,
			prefix VARCHAR(16) NOT NULL,
			login VARCHAR(255) NOT NULL,
			role VARCHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by VARCHAR(255) NOT NULL DEFAULT '',
			last_used_at TIMESTAMP,
			revoked BOOLEAN NOT NULL DEFAULT FALSE
		)
	`)
	return apperr.Storage("migrate api tokens", err)
}

// Mint creates a token bound to a login and role. The plaintext is returned
// exactly once; afterwards only validation by hash is possible.
func (s *Store) Mint(ctx context.Context, login, role, actor string) (*Token, string, error) {
	plaintext, hash, prefix, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	record := &Token{
		Prefix:    prefix,
		Login:     login,
		Role:      role,
		CreatedAt: now,
		CreatedBy: actor,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (token_hash, prefix, login, role, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, hash, prefix, login, role, now, actor).Scan(&record.ID)
	if err != nil {
		return nil, "", apperr.Storage("mint token", err)
	}

	return record, plaintext, nil
}

// Validate looks up a presented token and returns its bound identity.
// Stamps last_used_at on success.
func (s *Store) Validate(ctx context.Context, token string) (*Token, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return nil, apperr.Unauthorizedf("invalid token")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, prefix, login, role, created_at, created_by, last_used_at, revoked
		FROM api_tokens
		WHERE token_hash = $1
	`, HashToken(token))

	var t Token
	var lastUsed sql.NullTime
	err := row.Scan(&t.ID, &t.Prefix, &t.Login, &t.Role, &t.CreatedAt, &t.CreatedBy, &lastUsed, &t.Revoked)
	if err == sql.ErrNoRows {
		return nil, apperr.Unauthorizedf("invalid token")
	}
	if err != nil {
		return nil, apperr.Storage("validate token", err)
	}
	if t.Revoked {
		return nil, apperr.Unauthorizedf("token revoked")
	}
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.Time
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, now, t.ID); err != nil {
		return nil, apperr.Storage("stamp token use", err)
	}
	t.LastUsedAt = &now
	return &t, nil
}

// List returns token records ordered by creation, newest first.
func (s *Store) List(ctx context.Context) ([]Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prefix, login, role, created_at, created_by, last_used_at, revoked
		FROM api_tokens
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, apperr.Storage("list tokens", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		var lastUsed sql.NullTime
		if err := rows.Scan(&t.ID, &t.Prefix, &t.Login, &t.Role, &t.CreatedAt, &t.CreatedBy, &lastUsed, &t.Revoked); err != nil {
			return nil, apperr.Storage("scan token", err)
		}
		if lastUsed.Valid {
			t.LastUsedAt = &lastUsed.Time
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list tokens", err)
	}
	return tokens, nil
}

// Revoke disables a token by id. Revocation is permanent.
func (s *Store) Revoke(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE api_tokens SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return apperr.Storage("revoke token", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage("revoke token", err)
	}
	if affected == 0 {
		return apperr.NotFoundf("token %d not found", id)
	}
	return nil
}

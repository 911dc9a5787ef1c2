package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/folio-cms/folio/pkg/apperr"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// sqlite flavor of the api_tokens table
	_, err = db.Exec(`
		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token_hash TEXT NOT NULL UNIQUE,
			prefix TEXT NOT NULL,
			login TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT NOT NULL DEFAULT '',
			last_used_at TIMESTAMP,
			revoked BOOLEAN NOT NULL DEFAULT FALSE
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create api_tokens table: %v", err)
	}

	return NewStore(db)
}

func TestMintAndValidate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record, plaintext, err := store.Mint(ctx, "alice", "editor", "admin")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if !strings.HasPrefix(plaintext, TokenPrefix) {
		t.Errorf("unexpected token format: %q", plaintext)
	}
	if record.ID == 0 || record.Prefix == "" {
		t.Errorf("record incomplete: %+v", record)
	}

	got, err := store.Validate(ctx, plaintext)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.Login != "alice" || got.Role != "editor" {
		t.Errorf("unexpected identity: %+v", got)
	}
	if got.LastUsedAt == nil {
		t.Error("expected last_used_at stamped")
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Well-formed but never minted.
	unknown, _, _, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"unknown token", unknown},
		{"wrong prefix", "ghp_abcdefgh"},
		{"empty", ""},
		{"garbage encoding", TokenPrefix + "!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Validate(ctx, tt.token)
			if !errors.Is(err, apperr.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestRevoke(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record, plaintext, err := store.Mint(ctx, "alice", "editor", "admin")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := store.Revoke(ctx, record.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if _, err := store.Validate(ctx, plaintext); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized after revoke, got %v", err)
	}

	t.Run("missing token", func(t *testing.T) {
		if err := store.Revoke(ctx, 9999); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, login := range []string{"alice", "bob"} {
		if _, _, err := store.Mint(ctx, login, "student", "admin"); err != nil {
			t.Fatalf("Mint failed: %v", err)
		}
	}

	tokens, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	for _, tok := range tokens {
		if strings.Contains(tok.Prefix, " ") || len(tok.Prefix) < len(TokenPrefix) {
			t.Errorf("unexpected prefix %q", tok.Prefix)
		}
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	token, hash, _, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if HashToken(token) != hash {
		t.Error("hash mismatch between generation and lookup")
	}
	if len(hash) != 64 {
		t.Errorf("expected hex sha256, got %q", hash)
	}
}

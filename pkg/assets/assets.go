// Package assets stores uploaded files content-addressed by SHA-256 in an
// S3-compatible object store, with metadata in the relational store. Stored
// files surface in search as file-kind entries.
package assets

import (
	"context"
	"io"
	"time"
)

// Asset is the metadata record for one stored file. Hash is the hex SHA-256
// of the content and doubles as the public identifier.
type Asset struct {
	Hash               string    `json:"hash"`
	Filename           string    `json:"filename"`
	ContentType        string    `json:"content_type"`
	Size               int64     `json:"size"`
	RequiredPermission string    `json:"required_permission,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	CreatedBy          string    `json:"created_by"`
}

// URL is the asset's canonical location, used as the search index key.
func (a *Asset) URL() string {
	return "/assets/" + a.Hash
}

// ObjectStore is the blob backend. The S3 client implements it; tests use
// an in-memory fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

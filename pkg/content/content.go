// Package content implements CRUD over schema-described content entries,
// keyed by (schema kind, slug).
package content

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Content is a single entry under a schema. Data is validated against the
// owning schema's field list on every write. Timestamps and author fields
// are server-stamped, never client-supplied.
type Content struct {
	ID         int64                  `json:"id"`
	SchemaKind string                 `json:"schema"`
	Slug       string                 `json:"slug"`
	Title      string                 `json:"title"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Published  bool                   `json:"published"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
	CreatedBy  string                 `json:"created_by"`
	UpdatedBy  string                 `json:"updated_by"`
}

// Validate checks the client-supplied parts of an entry.
func (c Content) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Slug, validation.Required, validation.Length(1, 128), validation.Match(slugPattern)),
		validation.Field(&c.Title, validation.Required, validation.Length(1, 255)),
	)
}

// ListOptions filters a content listing.
type ListOptions struct {
	// IncludeUnpublished keeps published=false entries in the listing.
	// Public listings leave it false; owners and admins set it.
	IncludeUnpublished bool
}

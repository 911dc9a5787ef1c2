// Package links manages the registry of navigation links: local paths
// served by this system and external URLs. Links feed the search index as
// the highest-ranked entry kinds.
package links

import (
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Link is a registered navigation target. Local links point inside this
// system ("/courses/intro"); external links carry a full URL.
type Link struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	URL                string    `json:"url"`
	Local              bool      `json:"local"`
	RequiredPermission string    `json:"required_permission,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	CreatedBy          string    `json:"created_by"`
}

// Validate checks the link before it is stored. Local links must be
// absolute paths; external links must parse as absolute URLs.
func (l *Link) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&l.URL, validation.Required, validation.Length(1, 512), validation.By(l.validateTarget)),
	)
}

func (l *Link) validateTarget(interface{}) error {
	if l.Local {
		if !strings.HasPrefix(l.URL, "/") {
			return validation.NewError("validation_local_path", "local link must be an absolute path")
		}
		return nil
	}
	u, err := url.Parse(l.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return validation.NewError("validation_external_url", "external link must be an absolute URL")
	}
	return nil
}

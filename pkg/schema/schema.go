// Package schema holds the content-type registry: typed field definitions
// per content kind and closed-world payload validation.
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/folio-cms/folio/pkg/apperr"
)

// FieldKind is the closed set of field types. New kinds are added here at
// build time, never at runtime.
type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldText   FieldKind = "text"
	FieldNumber FieldKind = "number"
	FieldBool   FieldKind = "bool"
	FieldObject FieldKind = "object"
)

// Valid reports whether the kind is a known field kind.
func (k FieldKind) Valid() bool {
	switch k {
	case FieldString, FieldText, FieldNumber, FieldBool, FieldObject:
		return true
	}
	return false
}

// Field is a typed field descriptor inside a schema.
type Field struct {
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Slug     string    `json:"slug" yaml:"slug"`
	Title    string    `json:"title" yaml:"title"`
	Required bool      `json:"required" yaml:"required"`
}

// Schema defines the shape and access requirement of a content type.
type Schema struct {
	Kind               string    `json:"kind" yaml:"kind"`
	Title              string    `json:"title" yaml:"title"`
	RequiredPermission string    `json:"required_permission" yaml:"required_permission"`
	// HideExistence substitutes NotFound for Forbidden on this schema's
	// content, so denied requests cannot probe for slugs.
	HideExistence bool      `json:"hide_existence" yaml:"hide_existence"`
	Fields        []Field   `json:"fields" yaml:"fields"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"`
}

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

var slugRule = validation.Match(slugPattern).Error("must be lowercase alphanumeric with _ or -")

// Validate checks the schema definition itself: kind and permission slugs,
// known field kinds, and field slug uniqueness.
func (s Schema) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Kind, validation.Required, validation.Length(1, 64), slugRule),
		validation.Field(&s.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&s.RequiredPermission, validation.Required, validation.Length(1, 64), slugRule),
	)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, field := range s.Fields {
		if field.Slug == "" {
			return fmt.Errorf("field slug is required")
		}
		if !field.Kind.Valid() {
			return fmt.Errorf("unknown field kind %q on field %q", field.Kind, field.Slug)
		}
		if seen[field.Slug] {
			return fmt.Errorf("duplicate field slug %q", field.Slug)
		}
		seen[field.Slug] = true
	}
	return nil
}

// FieldBySlug returns the declared field for a slug.
func (s Schema) FieldBySlug(slug string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Slug == slug {
			return field, true
		}
	}
	return Field{}, false
}

// ValidatePayload checks content data against the schema's field list:
// every key must name a declared field, every required field must be
// present, and values must be type-compatible with the field kind. The
// returned error is a ValidationError carrying the offending field slugs.
func (s Schema) ValidatePayload(data map[string]interface{}) error {
	var bad []string

	// Closed world: unknown keys are rejected, not ignored.
	for key := range data {
		if _, ok := s.FieldBySlug(key); !ok {
			bad = append(bad, key)
		}
	}

	for _, field := range s.Fields {
		value, present := data[field.Slug]
		if !present {
			if field.Required {
				bad = append(bad, field.Slug)
			}
			continue
		}
		if !kindCompatible(field.Kind, value) {
			bad = append(bad, field.Slug)
		}
	}

	if len(bad) > 0 {
		sort.Strings(bad)
		return apperr.NewValidation("payload does not match schema", dedupe(bad)...)
	}
	return nil
}

func kindCompatible(kind FieldKind, value interface{}) bool {
	if value == nil {
		return false
	}
	switch kind {
	case FieldString, FieldText:
		_, ok := value.(string)
		return ok
	case FieldNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case FieldBool:
		_, ok := value.(bool)
		return ok
	case FieldObject:
		_, ok := value.(map[string]interface{})
		return ok
	}
	return false
}

func dedupe(slugs []string) []string {
	out := slugs[:0]
	var prev string
	for i, slug := range slugs {
		if i == 0 || slug != prev {
			out = append(out, slug)
		}
		prev = slug
	}
	return out
}

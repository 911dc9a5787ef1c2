package schema

import (
	"errors"
	"testing"

	"github.com/folio-cms/folio/pkg/apperr"
)

func pageSchema() Schema {
	return Schema{
		Kind:               "page",
		Title:              "Page",
		RequiredPermission: "content_read",
		Fields: []Field{
			{Kind: FieldString, Slug: "heading", Title: "Heading", Required: true},
			{Kind: FieldText, Slug: "body", Title: "Body"},
			{Kind: FieldBool, Slug: "featured", Title: "Featured"},
			{Kind: FieldNumber, Slug: "weight", Title: "Weight"},
			{Kind: FieldObject, Slug: "meta", Title: "Metadata"},
		},
	}
}

func TestSchemaValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		if err := pageSchema().Validate(); err != nil {
			t.Errorf("expected valid schema, got %v", err)
		}
	})

	t.Run("duplicate field slug", func(t *testing.T) {
		s := pageSchema()
		s.Fields = append(s.Fields, Field{Kind: FieldString, Slug: "heading", Title: "Again"})
		if err := s.Validate(); err == nil {
			t.Error("expected error for duplicate field slug")
		}
	})

	t.Run("unknown field kind", func(t *testing.T) {
		s := pageSchema()
		s.Fields[0].Kind = "blob"
		if err := s.Validate(); err == nil {
			t.Error("expected error for unknown field kind")
		}
	})

	t.Run("missing required permission", func(t *testing.T) {
		s := pageSchema()
		s.RequiredPermission = ""
		if err := s.Validate(); err == nil {
			t.Error("expected error for missing required permission")
		}
	})
}

func TestValidatePayload(t *testing.T) {
	s := pageSchema()

	t.Run("valid payload", func(t *testing.T) {
		err := s.ValidatePayload(map[string]interface{}{
			"heading":  "Welcome",
			"body":     "Hello there",
			"featured": true,
			"weight":   float64(3),
			"meta":     map[string]interface{}{"author": "alice"},
		})
		if err != nil {
			t.Errorf("expected valid payload, got %v", err)
		}
	})

	t.Run("required fields only", func(t *testing.T) {
		err := s.ValidatePayload(map[string]interface{}{"heading": "Welcome"})
		if err != nil {
			t.Errorf("expected valid payload, got %v", err)
		}
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		err := s.ValidatePayload(map[string]interface{}{
			"heading":  "Welcome",
			"sidebars": "nope",
		})
		assertValidationFields(t, err, "sidebars")
	})

	t.Run("missing required field rejected", func(t *testing.T) {
		err := s.ValidatePayload(map[string]interface{}{"body": "text"})
		assertValidationFields(t, err, "heading")
	})

	t.Run("type mismatch rejected", func(t *testing.T) {
		err := s.ValidatePayload(map[string]interface{}{
			"heading":  "Welcome",
			"featured": "yes",
			"weight":   "heavy",
		})
		assertValidationFields(t, err, "featured", "weight")
	})

	t.Run("nil value rejected", func(t *testing.T) {
		err := s.ValidatePayload(map[string]interface{}{
			"heading": "Welcome",
			"body":    nil,
		})
		assertValidationFields(t, err, "body")
	})

	t.Run("empty payload with no required fields", func(t *testing.T) {
		open := Schema{
			Kind:               "note",
			Title:              "Note",
			RequiredPermission: "content_read",
			Fields:             []Field{{Kind: FieldText, Slug: "body", Title: "Body"}},
		}
		if err := open.ValidatePayload(map[string]interface{}{}); err != nil {
			t.Errorf("expected valid empty payload, got %v", err)
		}
	})
}

func assertValidationFields(t *testing.T, err error, want ...string) {
	t.Helper()

	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != len(want) {
		t.Fatalf("expected offending fields %v, got %v", want, verr.Fields)
	}
	for i := range want {
		if verr.Fields[i] != want[i] {
			t.Fatalf("expected offending fields %v, got %v", want, verr.Fields)
		}
	}
}

func TestFieldKindValid(t *testing.T) {
	for _, kind := range []FieldKind{FieldString, FieldText, FieldNumber, FieldBool, FieldObject} {
		if !kind.Valid() {
			t.Errorf("kind %q should be valid", kind)
		}
	}
	if FieldKind("markdown").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

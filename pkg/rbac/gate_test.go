package rbac

import "testing"

func TestAuthorizeAll(t *testing.T) {
	effective := NewPermissionSet("content_read", "content_write")

	tests := []struct {
		name     string
		required []string
		want     bool
	}{
		{"all present", []string{"content_read", "content_write"}, true},
		{"one missing", []string{"content_read", "schema_admin"}, false},
		{"single present", []string{"content_write"}, true},
		{"single missing", []string{"rbac_admin"}, false},
		{"empty requirement", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Authorize(effective, tt.required, ModeAll)
			if decision.Allowed != tt.want {
				t.Errorf("Authorize(ALL, %v) = %v, want %v (%s)", tt.required, decision.Allowed, tt.want, decision.Reason)
			}
		})
	}
}

func TestAuthorizeAny(t *testing.T) {
	effective := NewPermissionSet("content_read")

	tests := []struct {
		name     string
		required []string
		want     bool
	}{
		{"one of many present", []string{"schema_admin", "content_read"}, true},
		{"none present", []string{"schema_admin", "rbac_admin"}, false},
		{"empty requirement", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Authorize(effective, tt.required, ModeAny)
			if decision.Allowed != tt.want {
				t.Errorf("Authorize(ANY, %v) = %v, want %v", tt.required, decision.Allowed, tt.want)
			}
		})
	}
}

func TestEmptySetNeverAuthorizes(t *testing.T) {
	empty := NewPermissionSet()

	if Authorize(empty, []string{"content_read"}, ModeAll).Allowed {
		t.Error("empty set authorized an ALL requirement")
	}
	if Authorize(empty, []string{"content_read"}, ModeAny).Allowed {
		t.Error("empty set authorized an ANY requirement")
	}
}

func TestDecisionCarriesMissingSlugs(t *testing.T) {
	effective := NewPermissionSet("content_read")

	decision := Authorize(effective, []string{"content_read", "schema_admin", "rbac_admin"}, ModeAll)
	if decision.Allowed {
		t.Fatal("expected denial")
	}
	if len(decision.Missing) != 2 {
		t.Errorf("expected 2 missing slugs, got %v", decision.Missing)
	}
}

func TestPermissionSetUnion(t *testing.T) {
	a := NewPermissionSet("content_read", "content_write")
	b := NewPermissionSet("content_read", "schema_admin")

	union := a.Union(b)
	want := []string{"content_read", "content_write", "schema_admin"}
	got := union.Slugs()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestValidateSlug(t *testing.T) {
	valid := []string{"content_read", "private_storage_read", "a", "x-y-z"}
	for _, slug := range valid {
		if err := ValidateSlug(slug); err != nil {
			t.Errorf("ValidateSlug(%q) = %v, want nil", slug, err)
		}
	}

	invalid := []string{"", "Has Upper", "9starts-with-digit", "spaces here", "_leading"}
	for _, slug := range invalid {
		if err := ValidateSlug(slug); err == nil {
			t.Errorf("ValidateSlug(%q) = nil, want error", slug)
		}
	}
}

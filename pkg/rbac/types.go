// Package rbac implements the authorization core: the permission catalog,
// role and group registries, per-request identity resolution and the
// permission gate.
package rbac

import (
	"regexp"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Slugs are freeform, administrator-created identifiers. They are validated
// strings, not a closed enum.
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateSlug checks a permission/role/group slug.
func ValidateSlug(slug string) error {
	return validation.Validate(slug,
		validation.Required,
		validation.Length(1, 64),
		validation.Match(slugPattern).Error("must be lowercase alphanumeric with _ or -"),
	)
}

// Permission is a canonical permission slug. Immutable once created except
// for deletion.
type Permission struct {
	Slug      string    `json:"slug"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the permission payload.
func (p Permission) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Slug, validation.Required, validation.Length(1, 64), validation.Match(slugPattern)),
	)
}

// Role maps a role name to a set of permission slugs.
type Role struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Title           string    `json:"title"`
	PermissionSlugs []string  `json:"permission_slugs"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks the role payload.
func (r Role) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 64), validation.Match(slugPattern)),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
	)
}

// Group maps a group slug to a set of permission slugs. Groups model
// organizational membership and are orthogonal to roles; both contribute
// permissions.
type Group struct {
	ID              int64     `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	PermissionSlugs []string  `json:"permission_slugs"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	CreatedBy       string    `json:"created_by"`
	UpdatedBy       string    `json:"updated_by"`
}

// Validate checks the group payload.
func (g Group) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Slug, validation.Required, validation.Length(1, 64), validation.Match(slugPattern)),
		validation.Field(&g.Title, validation.Required, validation.Length(1, 255)),
	)
}

// PermissionSet is an effective permission set. Derived per request, never
// persisted.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from slugs.
func NewPermissionSet(slugs ...string) PermissionSet {
	set := make(PermissionSet, len(slugs))
	for _, slug := range slugs {
		set[slug] = struct{}{}
	}
	return set
}

// Has reports whether the set contains a slug.
func (s PermissionSet) Has(slug string) bool {
	_, ok := s[slug]
	return ok
}

// Union merges another set into a new set.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	merged := make(PermissionSet, len(s)+len(other))
	for slug := range s {
		merged[slug] = struct{}{}
	}
	for slug := range other {
		merged[slug] = struct{}{}
	}
	return merged
}

// Slugs returns the set's slugs in sorted order.
func (s PermissionSet) Slugs() []string {
	slugs := make([]string, 0, len(s))
	for slug := range s {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Well-known permission slugs seeded at startup. Administrators may create
// more at runtime.
const (
	PermContentRead   = "content_read"
	PermContentWrite  = "content_write"
	PermSchemaAdmin   = "schema_admin"
	PermRBACAdmin     = "rbac_admin"
	PermLinkManage    = "link_manage"
	PermAssetWrite    = "asset_write"
	PermSearchRebuild = "search_rebuild"
	PermPrivateRead   = "private_storage_read"
)

// Built-in role names.
const (
	RoleAdmin     = "admin"
	RoleEditor    = "editor"
	RoleStudent   = "student"
	RoleAnonymous = "anonymous"
)

// BuiltinPermissions returns the permissions seeded on first start.
func BuiltinPermissions() []Permission {
	slugs := []string{
		PermContentRead,
		PermContentWrite,
		PermSchemaAdmin,
		PermRBACAdmin,
		PermLinkManage,
		PermAssetWrite,
		PermSearchRebuild,
		PermPrivateRead,
	}
	perms := make([]Permission, 0, len(slugs))
	for _, slug := range slugs {
		perms = append(perms, Permission{Slug: slug, CreatedBy: "system"})
	}
	return perms
}

// BuiltinRoles returns the roles seeded on first start.
func BuiltinRoles() []Role {
	return []Role{
		{
			Name:  RoleAdmin,
			Title: "Administrator",
			PermissionSlugs: []string{
				PermContentRead,
				PermContentWrite,
				PermSchemaAdmin,
				PermRBACAdmin,
				PermLinkManage,
				PermAssetWrite,
				PermSearchRebuild,
				PermPrivateRead,
			},
		},
		{
			Name:  RoleEditor,
			Title: "Editor",
			PermissionSlugs: []string{
				PermContentRead,
				PermContentWrite,
				PermLinkManage,
				PermAssetWrite,
				PermPrivateRead,
			},
		},
		{
			Name:  RoleStudent,
			Title: "Student",
			PermissionSlugs: []string{
				PermContentRead,
				PermPrivateRead,
			},
		},
		{
			Name:  RoleAnonymous,
			Title: "Anonymous",
			PermissionSlugs: []string{
				PermContentRead,
			},
		},
	}
}

package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/observability"
)

// Subject is the slice of a session the resolver needs.
type Subject interface {
	Authenticated() bool
	Role() string
	Group() string
}

// IdentityResolver computes the effective permission set for a subject.
// The set is recomputed on every call from current role/group state, so no
// session keeps a permission after its granting role or group loses it.
type IdentityResolver struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics

	// anonymousRole names the role whose permissions an unauthenticated
	// subject receives. When the role does not exist the anonymous set is
	// empty.
	anonymousRole string
}

// NewIdentityResolver creates a resolver. metrics may be nil.
func NewIdentityResolver(store *Store, anonymousRole string, logger *observability.Logger, metrics *observability.Metrics) *IdentityResolver {
	return &IdentityResolver{
		store:         store,
		logger:        logger,
		metrics:       metrics,
		anonymousRole: anonymousRole,
	}
}

// Resolve computes the effective permission set: the union of the subject's
// role and group permission slugs, filtered to slugs that still exist in the
// catalog. A role or group that no longer exists contributes nothing rather
// than failing the request.
func (r *IdentityResolver) Resolve(ctx context.Context, subject Subject) (PermissionSet, error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
		}
	}()

	roleName := subject.Role()
	if !subject.Authenticated() {
		roleName = r.anonymousRole
	}

	effective := NewPermissionSet()

	if roleName != "" {
		slugs, err := r.rolePermissions(ctx, roleName)
		if err != nil {
			return nil, err
		}
		effective = effective.Union(NewPermissionSet(slugs...))
	}

	if groupSlug := subject.Group(); groupSlug != "" && subject.Authenticated() {
		slugs, err := r.groupPermissions(ctx, groupSlug)
		if err != nil {
			return nil, err
		}
		effective = effective.Union(NewPermissionSet(slugs...))
	}

	// Referential integrity: slugs pointing at deleted catalog entries are
	// absent, not an error.
	catalog, err := r.store.CatalogSet(ctx)
	if err != nil {
		return nil, err
	}
	for slug := range effective {
		if !catalog.Has(slug) {
			delete(effective, slug)
		}
	}

	return effective, nil
}

func (r *IdentityResolver) rolePermissions(ctx context.Context, name string) ([]string, error) {
	role, err := r.store.GetRoleByName(ctx, name)
	if errors.Is(err, apperr.ErrNotFound) {
		// A session may still reference a role deleted mid-edit. Degrade to
		// zero permissions instead of locking the user out with an error.
		r.logger.WithField("role", name).Warn("session references missing role")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return role.PermissionSlugs, nil
}

func (r *IdentityResolver) groupPermissions(ctx context.Context, slug string) ([]string, error) {
	group, err := r.store.GetGroupBySlug(ctx, slug)
	if errors.Is(err, apperr.ErrNotFound) {
		r.logger.WithField("group", slug).Warn("session references missing group")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return group.PermissionSlugs, nil
}

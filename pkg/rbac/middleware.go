package rbac

import (
	"context"
	"net/http"

	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/session"
)

type contextKey string

const permissionSetKey contextKey = "folio_permissions"

// PermissionsFromContext returns the request's effective permission set,
// empty when resolution has not run.
func PermissionsFromContext(ctx context.Context) PermissionSet {
	if set, ok := ctx.Value(permissionSetKey).(PermissionSet); ok {
		return set
	}
	return NewPermissionSet()
}

// WithPermissions attaches an effective permission set to the context.
func WithPermissions(ctx context.Context, set PermissionSet) context.Context {
	return context.WithValue(ctx, permissionSetKey, set)
}

// Middleware wires identity resolution and the permission gate into the
// request chain.
type Middleware struct {
	resolver *IdentityResolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewMiddleware creates the middleware. metrics may be nil.
func NewMiddleware(resolver *IdentityResolver, logger *observability.Logger, metrics *observability.Metrics) *Middleware {
	return &Middleware{
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolve computes the effective permission set for the request's session
// and attaches it to the context. Runs once per request, after the session
// middleware.
func (m *Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			httputil.WriteBadRequest(w, "session required")
			return
		}

		set, err := m.resolver.Resolve(r.Context(), sess)
		if err != nil {
			m.logger.WithError(err).Error("identity resolution failed")
			httputil.WriteAppError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPermissions(r.Context(), set)))
	})
}

// Require gates a route on the given permission slugs under the given mode.
func (m *Middleware) Require(mode Mode, slugs ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			set := PermissionsFromContext(r.Context())
			decision := Authorize(set, slugs, mode)

			if m.metrics != nil {
				outcome := "deny"
				if decision.Allowed {
					outcome = "allow"
				}
				m.metrics.AuthDecisionsTotal.WithLabelValues(outcome).Inc()
			}

			if !decision.Allowed {
				m.logger.WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"reason": decision.Reason,
				}).Warn("permission denied")
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll gates a route requiring every slug.
func (m *Middleware) RequireAll(slugs ...string) func(http.Handler) http.Handler {
	return m.Require(ModeAll, slugs...)
}

// RequireAny gates a route requiring at least one slug.
func (m *Middleware) RequireAny(slugs ...string) func(http.Handler) http.Handler {
	return m.Require(ModeAny, slugs...)
}

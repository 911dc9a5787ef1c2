package api

import (
	"net/http"

	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/content"
	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/schema"
)

// schemaGate enforces the owning schema's required permission. When the
// schema hides existence, a denial surfaces as NotFound instead of
// Forbidden so gated content is indistinguishable from absent content.
func (s *Server) schemaGate(w http.ResponseWriter, r *http.Request, kind string) (*schema.Schema, bool) {
	sch, err := s.schemas.Get(r.Context(), kind)
	if err != nil {
		httputil.WriteAppError(w, err)
		return nil, false
	}

	if sch.RequiredPermission != "" {
		perms := rbac.PermissionsFromContext(r.Context())
		if decision := rbac.AuthorizeOne(perms, sch.RequiredPermission); !decision.Allowed {
			if sch.HideExistence {
				httputil.WriteNotFound(w, "not found")
			} else {
				httputil.WriteForbidden(w, "insufficient permissions")
			}
			return nil, false
		}
	}
	return sch, true
}

func (s *Server) listContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := httputil.ParsePathStringOrError(w, r, "schema")
	if !ok {
		return
	}
	if _, ok := s.schemaGate(w, r, kind); !ok {
		return
	}

	// Writers see unpublished entries; everyone else gets the public view.
	perms := rbac.PermissionsFromContext(r.Context())
	opts := content.ListOptions{IncludeUnpublished: perms.Has(rbac.PermContentWrite)}

	items, page, err := s.contents.List(r.Context(), kind, opts, httputil.ParsePagination(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteList(w, items, &page)
}

func (s *Server) createContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := httputil.ParsePathStringOrError(w, r, "schema")
	if !ok {
		return
	}
	if _, ok := s.schemaGate(w, r, kind); !ok {
		return
	}

	var entry content.Content
	if !httputil.ParseJSONOrError(w, r, &entry) {
		return
	}
	if err := s.contents.Create(r.Context(), kind, &entry, s.actor(r)); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventContentCreate, s.actor(r), "content:"+kind+"/"+entry.Slug, "")
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := httputil.ParsePathStringOrError(w, r, "schema")
	if !ok {
		return
	}
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}
	if _, ok := s.schemaGate(w, r, kind); !ok {
		return
	}

	entry, err := s.contents.Get(r.Context(), kind, slug)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	// Unpublished entries stay visible to writers only.
	if !entry.Published {
		perms := rbac.PermissionsFromContext(r.Context())
		if !perms.Has(rbac.PermContentWrite) {
			httputil.WriteNotFound(w, "not found")
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (s *Server) updateContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := httputil.ParsePathStringOrError(w, r, "schema")
	if !ok {
		return
	}
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}
	if _, ok := s.schemaGate(w, r, kind); !ok {
		return
	}

	var entry content.Content
	if !httputil.ParseJSONOrError(w, r, &entry) {
		return
	}
	if err := s.contents.Update(r.Context(), kind, slug, &entry, s.actor(r)); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventContentUpdate, s.actor(r), "content:"+kind+"/"+slug, "")
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (s *Server) deleteContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := httputil.ParsePathStringOrError(w, r, "schema")
	if !ok {
		return
	}
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}
	if _, ok := s.schemaGate(w, r, kind); !ok {
		return
	}

	if err := s.contents.Delete(r.Context(), kind, slug); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventContentDelete, s.actor(r), "content:"+kind+"/"+slug, "")
	httputil.WriteNoContent(w)
}

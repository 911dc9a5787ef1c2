package api

import (
	"fmt"
	"net/http"

	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/rbac"
)

func permsFrom(r *http.Request) rbac.PermissionSet {
	return rbac.PermissionsFromContext(r.Context())
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	query := httputil.ParseQueryString(r, "q", "")
	entries, page, err := s.indexer.List(r.Context(), query, permsFrom(r), httputil.ParsePagination(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteList(w, entries, &page)
}

func (s *Server) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	n, err := s.indexer.Rebuild(r.Context(), s.feeds...)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventIndexRebuild, s.actor(r), "search_index", fmt.Sprintf("entries=%d", n))
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": n})
}

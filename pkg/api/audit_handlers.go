package api

import (
	"net/http"

	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/httputil"
)

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		httputil.WriteNotFound(w, "audit trail is not enabled")
		return
	}

	filter := audit.Filter{
		Type:  audit.EventType(httputil.ParseQueryString(r, "type", "")),
		Actor: httputil.ParseQueryString(r, "actor", ""),
	}

	events, page, err := s.auditor.List(r.Context(), filter, httputil.ParsePagination(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteList(w, events, &page)
}

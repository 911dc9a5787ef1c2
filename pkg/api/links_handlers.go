package api

import (
	"net/http"
	"strconv"

	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/links"
)

func (s *Server) listLinks(w http.ResponseWriter, r *http.Request) {
	items, page, err := s.links.List(r.Context(), httputil.ParsePagination(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteList(w, items, &page)
}

func (s *Server) createLink(w http.ResponseWriter, r *http.Request) {
	var link links.Link
	if !httputil.ParseJSONOrError(w, r, &link) {
		return
	}
	if err := s.links.Create(r.Context(), &link, s.actor(r)); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventLinkCreate, s.actor(r), "link:"+link.URL, "")
	httputil.WriteJSON(w, http.StatusCreated, link)
}

func (s *Server) deleteLink(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.links.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventLinkDelete, s.actor(r), "link:"+strconv.FormatInt(id, 10), "")
	httputil.WriteNoContent(w)
}

package api

import (
	"net/http"

	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/schema"
)

func (s *Server) listSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.schemas.List(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": schemas})
}

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	kind, ok := httputil.ParsePathStringOrError(w, r, "kind")
	if !ok {
		return
	}
	sch, err := s.schemas.Get(r.Context(), kind)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sch)
}

func (s *Server) saveSchema(w http.ResponseWriter, r *http.Request) {
	var sch schema.Schema
	if !httputil.ParseJSONOrError(w, r, &sch) {
		return
	}
	if err := s.schemas.Save(r.Context(), &sch); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventSchemaSave, s.actor(r), "schema:"+sch.Kind, "")
	httputil.WriteJSON(w, http.StatusCreated, sch)
}

func (s *Server) deleteSchema(w http.ResponseWriter, r *http.Request) {
	kind, ok := httputil.ParsePathStringOrError(w, r, "kind")
	if !ok {
		return
	}
	if err := s.schemas.Delete(r.Context(), kind); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventSchemaDelete, s.actor(r), "schema:"+kind, "")
	httputil.WriteNoContent(w)
}

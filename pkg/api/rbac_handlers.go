package api

import (
	"net/http"

	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/session"
)

func (s *Server) actor(r *http.Request) string {
	if sess := session.FromContext(r.Context()); sess != nil && sess.Authenticated() {
		return sess.Login
	}
	return ""
}

// Permissions

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.rbac.ListPermissions(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": perms})
}

func (s *Server) createPermission(w http.ResponseWriter, r *http.Request) {
	var perm rbac.Permission
	if !httputil.ParseJSONOrError(w, r, &perm) {
		return
	}
	perm.CreatedBy = s.actor(r)

	if err := s.rbac.CreatePermission(r.Context(), &perm); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventPermissionCreate, s.actor(r), "permission:"+perm.Slug, "")
	httputil.WriteJSON(w, http.StatusCreated, perm)
}

func (s *Server) deletePermission(w http.ResponseWriter, r *http.Request) {
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}
	if err := s.rbac.DeletePermission(r.Context(), slug); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventPermissionDelete, s.actor(r), "permission:"+slug, "")
	httputil.WriteNoContent(w)
}

// Roles

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.rbac.ListRoles(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": roles})
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	var role rbac.Role
	if !httputil.ParseJSONOrError(w, r, &role) {
		return
	}
	if err := s.rbac.CreateRole(r.Context(), &role); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventRoleCreate, s.actor(r), "role:"+role.Name, "")
	httputil.WriteJSON(w, http.StatusCreated, role)
}

func (s *Server) getRole(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}
	role, err := s.rbac.GetRoleByName(r.Context(), name)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, role)
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	var role rbac.Role
	if !httputil.ParseJSONOrError(w, r, &role) {
		return
	}
	role.Name = name

	if err := s.rbac.UpdateRole(r.Context(), &role); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventRoleUpdate, s.actor(r), "role:"+role.Name, "")
	httputil.WriteJSON(w, http.StatusOK, role)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}
	if err := s.rbac.DeleteRole(r.Context(), name); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventRoleDelete, s.actor(r), "role:"+name, "")
	httputil.WriteNoContent(w)
}

// Groups

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.rbac.ListGroups(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": groups})
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var group rbac.Group
	if !httputil.ParseJSONOrError(w, r, &group) {
		return
	}
	group.CreatedBy = s.actor(r)
	group.UpdatedBy = group.CreatedBy

	if err := s.rbac.CreateGroup(r.Context(), &group); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventGroupCreate, s.actor(r), "group:"+group.Slug, "")
	httputil.WriteJSON(w, http.StatusCreated, group)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}
	group, err := s.rbac.GetGroupBySlug(r.Context(), slug)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, group)
}

func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request) {
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}

	var group rbac.Group
	if !httputil.ParseJSONOrError(w, r, &group) {
		return
	}
	group.Slug = slug
	group.UpdatedBy = s.actor(r)

	if err := s.rbac.UpdateGroup(r.Context(), &group); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventGroupUpdate, s.actor(r), "group:"+group.Slug, "")
	httputil.WriteJSON(w, http.StatusOK, group)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}
	if err := s.rbac.DeleteGroup(r.Context(), slug); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventGroupDelete, s.actor(r), "group:"+slug, "")
	httputil.WriteNoContent(w)
}

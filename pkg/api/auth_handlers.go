package api

import (
	"net/http"
	"strconv"

	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/session"
)

type signInRequest struct {
	Token string `json:"token"`
}

// signIn exchanges a minted API token for an authenticated session.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httputil.WriteBadRequest(w, "session required")
		return
	}

	var req signInRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}

	record, err := s.tokens.Validate(r.Context(), req.Token)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	authed, err := s.sessions.Authenticate(r.Context(), sess.ID, record.Login, record.Role)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.logger.WithField("login", record.Login).Info("Sign-in completed")
	s.recordAudit(r, audit.EventSignIn, record.Login, "session", "")
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"login": authed.Login,
		"role":  authed.Role(),
	})
}

// signOut resets the session to anonymous without destroying it.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httputil.WriteBadRequest(w, "session required")
		return
	}

	if err := s.sessions.SignOut(r.Context(), sess.ID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventSignOut, sess.Login, "session", "")
	httputil.WriteNoContent(w)
}

// currentSession reports the session identity and its effective permission
// set, already resolved by the middleware chain.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httputil.WriteBadRequest(w, "session required")
		return
	}

	perms := rbac.PermissionsFromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": sess.Authenticated(),
		"login":         sess.Login,
		"role":          sess.Role(),
		"group":         sess.Group(),
		"permissions":   perms.Slugs(),
	})
}

type mintTokenRequest struct {
	Login string `json:"login"`
	Role  string `json:"role"`
}

func (s *Server) mintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Login == "" || req.Role == "" {
		httputil.WriteBadRequest(w, "login and role are required")
		return
	}

	// The role must exist so the token cannot mint an orphan identity.
	if _, err := s.rbac.GetRoleByName(r.Context(), req.Role); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	actor := session.FromContext(r.Context()).Login
	record, plaintext, err := s.tokens.Mint(r.Context(), req.Login, req.Role, actor)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.recordAudit(r, audit.EventTokenMint, actor, "token:"+record.Prefix, "login="+record.Login)

	// The plaintext appears in this response only.
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"token":  plaintext,
		"record": record,
	})
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokens.List(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": tokens})
}

func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.tokens.Revoke(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.recordAudit(r, audit.EventTokenRevoke, s.actor(r), "token:"+strconv.FormatInt(id, 10), "")
	httputil.WriteNoContent(w)
}

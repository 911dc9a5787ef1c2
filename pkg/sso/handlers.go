package sso

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/session"
)

const stateAttr = "sso_state"

// Handlers implements the login and callback endpoints. The pending OAuth2
// state rides in the session attribute bag, so the callback only honors a
// code bound to the same browser session.
type Handlers struct {
	provider *Provider
	sessions *session.Store
	groups   *rbac.Store
	logger   *observability.Logger
}

func NewHandlers(provider *Provider, sessions *session.Store, groups *rbac.Store, logger *observability.Logger) *Handlers {
	return &Handlers{provider: provider, sessions: sessions, groups: groups, logger: logger}
}

// Login starts the authorization code flow.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httputil.WriteBadRequest(w, "session required")
		return
	}

	state, err := newState()
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to start login")
		return
	}
	if err := h.sessions.SetAttribute(r.Context(), sess.ID, stateAttr, state); err != nil {
		h.logger.WithError(err).Error("Failed to store SSO state")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the flow and authenticates the session.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	if sess == nil {
		httputil.WriteBadRequest(w, "session required")
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" || state != sess.Attributes[stateAttr] {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	identity, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.logger.WithError(err).Warn("SSO code exchange failed")
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	authed, err := h.sessions.Authenticate(ctx, sess.ID, identity.Username, h.provider.DefaultRole())
	if err != nil {
		h.logger.WithError(err).Error("Failed to authenticate session")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to establish session")
		return
	}

	// Bind the first IdP group that exists locally; unknown groups are
	// ignored rather than created.
	if group := h.matchGroup(r, identity.Groups); group != "" {
		if err := h.sessions.SetAttribute(ctx, sess.ID, session.AttrGroup, group); err != nil {
			h.logger.WithError(err).Warn("Failed to bind group attribute")
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"login":   identity.Username,
		"subject": identity.Subject,
	}).Info("SSO sign-in completed")

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"login": authed.Login,
		"role":  authed.Role(),
	})
}

func (h *Handlers) matchGroup(r *http.Request, candidates []string) string {
	for _, slug := range candidates {
		if _, err := h.groups.GetGroupBySlug(r.Context(), slug); err == nil {
			return slug
		}
	}
	return ""
}

func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

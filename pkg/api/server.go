// Package api wires the HTTP surface: routing, per-route permission guards
// and the handler set over the domain services.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/folio-cms/folio/pkg/assets"
	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/auth"
	"github.com/folio-cms/folio/pkg/config"
	"github.com/folio-cms/folio/pkg/content"
	"github.com/folio-cms/folio/pkg/httputil"
	"github.com/folio-cms/folio/pkg/links"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/schema"
	"github.com/folio-cms/folio/pkg/search"
	"github.com/folio-cms/folio/pkg/session"
	"github.com/folio-cms/folio/pkg/sso"
)

// Server holds the handler dependencies and the configured router.
type Server struct {
	router   *mux.Router
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	sessions *session.Store
	rbac     *rbac.Store
	guard    *rbac.Middleware
	tokens   *auth.Store
	schemas  *schema.Registry
	contents *content.Repository
	links    *links.Service
	assets   *assets.Service
	indexer  *search.Indexer
	feeds    []search.Feed
	sso      *sso.Handlers
	auditor  *audit.Store
}

// Deps bundles everything the server routes over. SSO and Audit are
// optional; all other fields are required.
type Deps struct {
	Config   *config.Config
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Sessions *session.Store
	RBAC     *rbac.Store
	Resolver *rbac.IdentityResolver
	Tokens   *auth.Store
	Schemas  *schema.Registry
	Contents *content.Repository
	Links    *links.Service
	Assets   *assets.Service
	Indexer  *search.Indexer
	Feeds    []search.Feed
	SSO      *sso.Handlers
	Audit    *audit.Store
}

// NewServer builds the router with the full middleware chain.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		cfg:      deps.Config,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		sessions: deps.Sessions,
		rbac:     deps.RBAC,
		guard:    rbac.NewMiddleware(deps.Resolver, deps.Logger, deps.Metrics),
		tokens:   deps.Tokens,
		schemas:  deps.Schemas,
		contents: deps.Contents,
		links:    deps.Links,
		assets:   deps.Assets,
		indexer:  deps.Indexer,
		feeds:    deps.Feeds,
		sso:      deps.SSO,
		auditor:  deps.Audit,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	sessionMW := session.Middleware(s.sessions, s.cfg.Session.CookieName, s.cfg.Session.CookieSecure, s.logger)

	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(s.cfg.Server.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
		sessionMW,
		s.guard.Resolve,
	)

	// Authentication. Sign-in is rate limited per client IP to bound
	// token guessing.
	signInLimiter := httputil.NewRateLimiter(httputil.SignInRateLimitConfig())
	s.router.Handle("/auth/signin", signInLimiter.Middleware(http.HandlerFunc(s.signIn))).Methods("POST")
	s.router.HandleFunc("/auth/signout", s.signOut).Methods("POST")
	s.router.HandleFunc("/auth/session", s.currentSession).Methods("GET")

	if s.sso != nil {
		s.router.HandleFunc("/sso/login", s.sso.Login).Methods("GET")
		s.router.HandleFunc("/sso/callback", s.sso.Callback).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Catalog, roles, groups
	s.guarded(api, "/permissions", s.listPermissions, "GET", rbac.PermRBACAdmin)
	s.guarded(api, "/permissions", s.createPermission, "POST", rbac.PermRBACAdmin)
	s.guarded(api, "/permissions/{slug}", s.deletePermission, "DELETE", rbac.PermRBACAdmin)

	s.guarded(api, "/roles", s.listRoles, "GET", rbac.PermRBACAdmin)
	s.guarded(api, "/roles", s.createRole, "POST", rbac.PermRBACAdmin)
	s.guarded(api, "/roles/{name}", s.getRole, "GET", rbac.PermRBACAdmin)
	s.guarded(api, "/roles/{name}", s.updateRole, "PUT", rbac.PermRBACAdmin)
	s.guarded(api, "/roles/{name}", s.deleteRole, "DELETE", rbac.PermRBACAdmin)

	s.guarded(api, "/groups", s.listGroups, "GET", rbac.PermRBACAdmin)
	s.guarded(api, "/groups", s.createGroup, "POST", rbac.PermRBACAdmin)
	s.guarded(api, "/groups/{slug}", s.getGroup, "GET", rbac.PermRBACAdmin)
	s.guarded(api, "/groups/{slug}", s.updateGroup, "PUT", rbac.PermRBACAdmin)
	s.guarded(api, "/groups/{slug}", s.deleteGroup, "DELETE", rbac.PermRBACAdmin)

	// API tokens
	s.guarded(api, "/tokens", s.listTokens, "GET", rbac.PermRBACAdmin)
	s.guarded(api, "/tokens", s.mintToken, "POST", rbac.PermRBACAdmin)
	s.guarded(api, "/tokens/{id}", s.revokeToken, "DELETE", rbac.PermRBACAdmin)

	// Schemas
	s.guarded(api, "/schemas", s.listSchemas, "GET", rbac.PermContentRead)
	s.guarded(api, "/schemas/{kind}", s.getSchema, "GET", rbac.PermContentRead)
	s.guarded(api, "/schemas", s.saveSchema, "POST", rbac.PermSchemaAdmin)
	s.guarded(api, "/schemas/{kind}", s.deleteSchema, "DELETE", rbac.PermSchemaAdmin)

	// Content: the entry guard is coarse; the handler enforces the owning
	// schema's required permission per entry.
	s.guarded(api, "/content/{schema}", s.listContent, "GET", rbac.PermContentRead)
	s.guarded(api, "/content/{schema}", s.createContent, "POST", rbac.PermContentWrite)
	s.guarded(api, "/content/{schema}/{slug}", s.getContent, "GET", rbac.PermContentRead)
	s.guarded(api, "/content/{schema}/{slug}", s.updateContent, "PUT", rbac.PermContentWrite)
	s.guarded(api, "/content/{schema}/{slug}", s.deleteContent, "DELETE", rbac.PermContentWrite)

	// Links
	s.guarded(api, "/links", s.listLinks, "GET", rbac.PermContentRead)
	s.guarded(api, "/links", s.createLink, "POST", rbac.PermLinkManage)
	s.guarded(api, "/links/{id}", s.deleteLink, "DELETE", rbac.PermLinkManage)

	// Assets
	s.guarded(api, "/assets", s.listAssets, "GET", rbac.PermContentRead)
	s.guarded(api, "/assets", s.uploadAsset, "POST", rbac.PermAssetWrite)
	s.guarded(api, "/assets/{hash}", s.downloadAsset, "GET", rbac.PermContentRead)
	s.guarded(api, "/assets/{hash}", s.deleteAsset, "DELETE", rbac.PermAssetWrite)

	// Search: listing is open to any session; visibility filtering happens
	// per entry against the effective permission set.
	api.HandleFunc("/search", s.searchHandler).Methods("GET")
	s.guarded(api, "/search/rebuild", s.rebuildIndex, "POST", rbac.PermSearchRebuild)

	// Audit trail
	s.guarded(api, "/audit", s.listAudit, "GET", rbac.PermRBACAdmin)
}

// recordAudit writes a best-effort audit event when auditing is configured.
func (s *Server) recordAudit(r *http.Request, eventType audit.EventType, actor, resource, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(r.Context(), eventType, actor, resource, detail)
}

func (s *Server) guarded(r *mux.Router, path string, handler http.HandlerFunc, method, permission string) {
	r.Handle(path, s.guard.RequireAll(permission)(handler)).Methods(method)
}

// HealthRouter serves probes and metrics on the separate health port.
func HealthRouter(checker *observability.HealthChecker, registry *prometheus.Registry) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", checker.Liveness).Methods("GET")
	r.HandleFunc("/readyz", checker.Readiness).Methods("GET")
	if registry != nil {
		r.Handle("/metrics", observability.Handler(registry)).Methods("GET")
	}
	return r
}

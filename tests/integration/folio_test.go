//go:build integration

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/folio-cms/folio/pkg/api"
	"github.com/folio-cms/folio/pkg/assets"
	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/auth"
	"github.com/folio-cms/folio/pkg/config"
	"github.com/folio-cms/folio/pkg/content"
	"github.com/folio-cms/folio/pkg/links"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/pagination"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/schema"
	"github.com/folio-cms/folio/pkg/search"
	"github.com/folio-cms/folio/pkg/session"
)

// setupPostgres starts a disposable PostgreSQL container and applies every
// migration the server runs on boot.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("folio_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("warning: failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())

	require.NoError(t, rbac.RunMigrations(ctx, db))
	require.NoError(t, schema.Migrate(ctx, db))
	require.NoError(t, content.Migrate(ctx, db))
	require.NoError(t, search.Migrate(ctx, db))
	require.NoError(t, links.Migrate(ctx, db))
	require.NoError(t, assets.Migrate(ctx, db))
	require.NoError(t, auth.Migrate(ctx, db))
	require.NoError(t, audit.Migrate(ctx, db))

	return db
}

func TestMigrationsSeedBuiltins(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	store := rbac.NewStore(db, nil)
	require.NoError(t, rbac.InitializeBuiltins(ctx, store))

	// Seeding twice is a no-op, not an error.
	require.NoError(t, rbac.InitializeBuiltins(ctx, store))

	admin, err := store.GetRoleByName(ctx, rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Contains(t, admin.PermissionSlugs, rbac.PermRBACAdmin)

	anon, err := store.GetRoleByName(ctx, rbac.RoleAnonymous)
	require.NoError(t, err)
	assert.Equal(t, []string{rbac.PermContentRead}, anon.PermissionSlugs)
}

func TestContentPipelineOnPostgres(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	logger := observability.NewLogger(observability.InfoLevel, io.Discard)
	registry := schema.NewRegistry(db, 64, time.Minute, nil)
	repo := content.NewRepository(db, registry, logger, nil)
	indexer := search.NewIndexer(search.NewStore(db), logger, nil)
	repo.SetIndexHook(search.NewContentHook(indexer, logger))

	require.NoError(t, registry.Save(ctx, &schema.Schema{
		Kind:  "page",
		Title: "Page",
		Fields: []schema.Field{
			{Kind: schema.FieldString, Slug: "heading", Title: "Heading", Required: true},
		},
	}))

	entry := &content.Content{
		Slug:      "welcome",
		Title:     "Welcome",
		Data:      map[string]interface{}{"heading": "Hello"},
		Published: true,
	}
	require.NoError(t, repo.Create(ctx, "page", entry, "alice"))
	assert.NotZero(t, entry.ID)

	// JSONB round-trip through real postgres.
	got, err := repo.Get(ctx, "page", "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Data["heading"])

	// The post-commit hook indexed the published entry.
	entries, _, err := indexer.List(ctx, "", rbac.NewPermissionSet(rbac.PermContentRead), pagination.Params{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/content/page/welcome", entries[0].URL)

	// Rebuild from feeds reproduces the same index.
	n, err := indexer.Rebuild(ctx, search.NewContentFeed(repo, registry))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTokenLifecycleOnPostgres(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	tokens := auth.NewStore(db)

	record, plaintext, err := tokens.Mint(ctx, "erin", rbac.RoleEditor, "root")
	require.NoError(t, err)
	require.NotEmpty(t, plaintext)

	validated, err := tokens.Validate(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, "erin", validated.Login)

	require.NoError(t, tokens.Revoke(ctx, record.ID))
	_, err = tokens.Validate(ctx, plaintext)
	assert.Error(t, err)
}

type memObjects struct {
	objects map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key string, content []byte, _ string) error {
	m.objects[key] = content
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjects) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestFullAPIOnPostgres(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	logger := observability.NewLogger(observability.InfoLevel, io.Discard)

	rbacStore := rbac.NewStore(db, rbac.NewCache(128, time.Minute, nil))
	require.NoError(t, rbac.InitializeBuiltins(ctx, rbacStore))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })
	sessions := session.NewStore(redisClient, time.Hour, rbac.RoleAnonymous)

	registry := schema.NewRegistry(db, 64, time.Minute, nil)
	repo := content.NewRepository(db, registry, logger, nil)
	indexer := search.NewIndexer(search.NewStore(db), logger, nil)
	repo.SetIndexHook(search.NewContentHook(indexer, logger))

	linkStore := links.NewStore(db)
	assetMeta := assets.NewMetadataStore(db)

	cfg := &config.Config{}
	cfg.Server.MaxBodyBytes = 10 << 20
	cfg.Session.CookieName = "folio_session"
	cfg.Session.AnonymousRole = rbac.RoleAnonymous

	server := api.NewServer(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
		RBAC:     rbacStore,
		Resolver: rbac.NewIdentityResolver(rbacStore, rbac.RoleAnonymous, logger, nil),
		Tokens:   auth.NewStore(db),
		Schemas:  registry,
		Contents: repo,
		Links:    links.NewService(linkStore, indexer, logger),
		Assets:   assets.NewService(&memObjects{objects: make(map[string][]byte)}, assetMeta, indexer, logger),
		Indexer:  indexer,
		Audit:    audit.NewStore(db, logger),
		Feeds: []search.Feed{
			search.NewContentFeed(repo, registry),
			links.NewFeed(linkStore),
			assets.NewFeed(assetMeta),
		},
	})

	admin, err := sessions.Create(ctx)
	require.NoError(t, err)
	_, err = sessions.Authenticate(ctx, admin.ID, "root", rbac.RoleAdmin)
	require.NoError(t, err)

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set(session.HeaderName, admin.ID)
		w := httptest.NewRecorder()
		server.Router().ServeHTTP(w, req)
		return w
	}

	w := do("POST", "/api/v1/schemas", map[string]interface{}{
		"kind": "page", "title": "Page",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do("POST", "/api/v1/content/page", map[string]interface{}{
		"slug": "about", "title": "About", "published": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do("POST", "/api/v1/links", map[string]interface{}{
		"title": "Handbook", "url": "https://handbook.example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do("GET", "/api/v1/search", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var results struct {
		Data []search.Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results.Data, 2)
	// External links rank above pages regardless of title.
	assert.Equal(t, "Handbook", results.Data[0].Title)
	assert.Equal(t, "About", results.Data[1].Title)

	w = do("POST", "/api/v1/search/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

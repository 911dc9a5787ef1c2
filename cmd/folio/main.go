package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/folio-cms/folio/pkg/api"
	"github.com/folio-cms/folio/pkg/assets"
	"github.com/folio-cms/folio/pkg/async"
	"github.com/folio-cms/folio/pkg/audit"
	"github.com/folio-cms/folio/pkg/auth"
	"github.com/folio-cms/folio/pkg/config"
	"github.com/folio-cms/folio/pkg/content"
	"github.com/folio-cms/folio/pkg/links"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/rbac"
	"github.com/folio-cms/folio/pkg/schema"
	"github.com/folio-cms/folio/pkg/search"
	"github.com/folio-cms/folio/pkg/session"
	"github.com/folio-cms/folio/pkg/sso"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	otelProvider, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer otelProvider.Shutdown(context.Background())

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Connected to postgres")

	if err := migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Session.RedisURL,
		Password: cfg.Session.RedisPassword,
		DB:       cfg.Session.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("Connected to redis")

	sessions := session.NewStore(redisClient, cfg.Session.TTL, cfg.Session.AnonymousRole)

	rbacStore := rbac.NewStore(db, rbac.NewCache(1024, 5*time.Minute, metrics))
	if err := rbac.InitializeBuiltins(ctx, rbacStore); err != nil {
		return fmt.Errorf("seed builtin roles: %w", err)
	}
	resolver := rbac.NewIdentityResolver(rbacStore, cfg.Session.AnonymousRole, logger, metrics)

	schemas := schema.NewRegistry(db, 256, 5*time.Minute, metrics)
	if cfg.Schema.SeedDir != "" {
		if err := schema.LoadSeedDir(ctx, schemas, cfg.Schema.SeedDir); err != nil {
			return fmt.Errorf("load schema seed dir: %w", err)
		}
		logger.WithField("dir", cfg.Schema.SeedDir).Info("Schema seed directory loaded")
		if cfg.Schema.WatchSeed {
			go func() {
				if err := schema.WatchSeedDir(ctx, schemas, cfg.Schema.SeedDir, logger); err != nil {
					logger.WithError(err).Error("schema seed watcher stopped")
				}
			}()
		}
	}

	indexer := search.NewIndexer(search.NewStore(db), logger, metrics)

	repo := content.NewRepository(db, schemas, logger, metrics)
	repo.SetIndexHook(search.NewContentHook(indexer, logger))

	linkStore := links.NewStore(db)
	linkSvc := links.NewService(linkStore, indexer, logger)

	if cfg.Assets.Bucket == "" {
		return fmt.Errorf("S3 bucket is required (FOLIO_S3_BUCKET)")
	}
	objects, err := assets.NewS3Store(ctx, cfg.Assets)
	if err != nil {
		return fmt.Errorf("init asset store: %w", err)
	}
	assetMeta := assets.NewMetadataStore(db)
	assetSvc := assets.NewService(objects, assetMeta, indexer, logger)

	tokens := auth.NewStore(db)
	auditor := audit.NewStore(db, logger)

	feeds := []search.Feed{
		search.NewContentFeed(repo, schemas),
		links.NewFeed(linkStore),
		assets.NewFeed(assetMeta),
	}

	var ssoHandlers *sso.Handlers
	if cfg.SSO.Enabled {
		provider, err := sso.NewProvider(ctx, cfg.SSO)
		if err != nil {
			return fmt.Errorf("init SSO provider: %w", err)
		}
		ssoHandlers = sso.NewHandlers(provider, sessions, rbacStore, logger)
		logger.WithField("issuer", cfg.SSO.IssuerURL).Info("SSO enabled")
	}

	// Rebuild the index on boot so restarts recover from any drift.
	async.Go(ctx, logger, 5*time.Minute, "startup index rebuild", func(ctx context.Context) error {
		n, err := indexer.Rebuild(ctx, feeds...)
		if err != nil {
			return err
		}
		logger.WithField("entries", n).Info("Search index rebuilt")
		return nil
	})

	server := api.NewServer(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Sessions: sessions,
		RBAC:     rbacStore,
		Resolver: resolver,
		Tokens:   tokens,
		Schemas:  schemas,
		Contents: repo,
		Links:    linkSvc,
		Assets:   assetSvc,
		Indexer:  indexer,
		Feeds:    feeds,
		SSO:      ssoHandlers,
		Audit:    auditor,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: api.HealthRouter(observability.NewHealthChecker(db, redisClient), registry),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("Starting API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("API server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("health server shutdown failed")
	}
	logger.Info("Shutdown complete")
	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	steps := []func(context.Context, *sql.DB) error{
		rbac.RunMigrations,
		schema.Migrate,
		content.Migrate,
		search.Migrate,
		links.Migrate,
		assets.Migrate,
		auth.Migrate,
		audit.Migrate,
	}
	for _, step := range steps {
		if err := step(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

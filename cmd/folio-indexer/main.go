// folio-indexer rebuilds the search index on a schedule. The API server
// keeps the index current incrementally; this job exists to repair drift
// after crashes, manual database edits or missed hook deliveries.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/folio-cms/folio/pkg/assets"
	"github.com/folio-cms/folio/pkg/content"
	"github.com/folio-cms/folio/pkg/links"
	"github.com/folio-cms/folio/pkg/observability"
	"github.com/folio-cms/folio/pkg/schema"
	"github.com/folio-cms/folio/pkg/search"
)

var (
	dbURL    = flag.String("db-url", getEnv("FOLIO_POSTGRES_URL", "postgres://localhost/folio?sslmode=disable"), "PostgreSQL connection URL")
	schedule = flag.String("schedule", "*/30 * * * *", "Cron schedule for index rebuilds (default: every 30 minutes)")
	runOnce  = flag.Bool("run-once", false, "Rebuild the index once and exit")
	timeout  = flag.Duration("timeout", 5*time.Minute, "Per-rebuild timeout")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("Failed to ping database")
	}

	svcLogger := observability.NewLogger(observability.InfoLevel, os.Stdout)
	schemas := schema.NewRegistry(db, 256, 5*time.Minute, nil)
	repo := content.NewRepository(db, schemas, svcLogger, nil)
	indexer := search.NewIndexer(search.NewStore(db), svcLogger, nil)

	feeds := []search.Feed{
		search.NewContentFeed(repo, schemas),
		links.NewFeed(links.NewStore(db)),
		assets.NewFeed(assets.NewMetadataStore(db)),
	}

	rebuild := func() {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		start := time.Now()
		n, err := indexer.Rebuild(ctx, feeds...)
		if err != nil {
			log.WithError(err).Error("Index rebuild failed")
			return
		}
		log.WithFields(logrus.Fields{
			"entries":  n,
			"duration": time.Since(start).String(),
		}).Info("Index rebuild completed")
	}

	if *runOnce {
		rebuild()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, rebuild); err != nil {
		log.WithError(err).Fatal("Failed to schedule index rebuild")
	}

	c.Start()
	log.WithField("schedule", *schedule).Info("Folio indexer started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("Shutting down gracefully...")

	// Let an in-flight rebuild finish before exiting.
	<-c.Stop().Done()
	log.Info("Indexer stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

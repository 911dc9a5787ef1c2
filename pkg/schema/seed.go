package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/folio-cms/folio/pkg/observability"
)

// seedFile is the on-disk shape of a schema seed document.
type seedFile struct {
	Schemas []Schema `yaml:"schemas"`
}

// LoadSeedFile reads one YAML seed file and upserts every schema in it.
func LoadSeedFile(ctx context.Context, registry *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}

	for i := range seed.Schemas {
		if err := registry.Save(ctx, &seed.Schemas[i]); err != nil {
			return fmt.Errorf("seed schema %q: %w", seed.Schemas[i].Kind, err)
		}
	}
	return nil
}

// LoadSeedDir loads every .yaml/.yml file in a directory.
func LoadSeedDir(ctx context.Context, registry *Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read seed dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isSeedFile(entry.Name()) {
			continue
		}
		if err := LoadSeedFile(ctx, registry, filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func isSeedFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// WatchSeedDir reloads seed files when they change, until ctx is cancelled.
// Reload errors are logged, never fatal; the registry keeps serving the last
// good definitions.
func WatchSeedDir(ctx context.Context, registry *Registry, dir string, logger *observability.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.WithField("dir", dir).Info("schema seed watcher started")

	// Editors fire bursts of events per save; debounce into one reload.
	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("schema seed watcher stopped")
			return nil

		case <-reloadCh:
			if err := LoadSeedDir(ctx, registry, dir); err != nil {
				logger.WithError(err).Warn("schema seed reload failed")
			} else {
				logger.Info("schema seed reloaded")
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isSeedFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WithError(watchErr).Error("schema seed watcher error")
		}
	}
}

package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/inbox/internal/store"
)

// EventUpdated is the kind passed to the callback after a resync applied
// a changed catalog.
const EventUpdated = "catalog.updated"

// EventCallback is called after a watcher-driven catalog change.
type EventCallback func(kind string, path string)

const debounce = 200 * time.Millisecond

// Watch resyncs the catalog whenever the file at path changes, until ctx is
// cancelled. The parent directory is watched rather than the file so that
// editors which replace the file on save (rename over) are followed.
// Bursts of events are collapsed into one resync.
func Watch(ctx context.Context, seeder store.Catalog, path string, logger *slog.Logger, cb EventCallback) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("catalog watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("catalog watcher: stopped")
			return nil

		case <-fire:
			applied, syncErr := Sync(ctx, seeder, abs, logger)
			if syncErr != nil {
				logger.Warn("catalog watcher: sync failed", slog.String("path", abs), slog.String("error", syncErr.Error()))
				continue
			}
			if applied && cb != nil {
				cb(EventUpdated, abs)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				logger.Debug("catalog watcher: change", slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("catalog watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

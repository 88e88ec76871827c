package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a Catalog when its backing file changes. A file that fails
// to parse or validate leaves the current catalog in place.
type Watcher struct {
	path     string
	catalog  *Catalog
	log      *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	onReload []func([]Video)
}

// NewWatcher returns a watcher for the catalog file at path.
func NewWatcher(path string, c *Catalog, log *slog.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		catalog:  c,
		log:      log,
		debounce: defaultDebounce,
	}
}

// OnReload registers fn to run after every successful reload.
func (w *Watcher) OnReload(fn func([]Video)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Reload reads the file and replaces the catalog.
func (w *Watcher) Reload() error {
	videos, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	if err := w.catalog.Replace(videos); err != nil {
		return err
	}

	w.mu.Lock()
	listeners := slices.Clone(w.onReload)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(videos)
	}
	return nil
}

// Run watches the catalog directory until ctx is done. Rapid successive
// writes are coalesced into one reload.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	// Editors often replace the file via rename, so watch the directory.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch catalog dir: %w", err)
	}
	w.log.Info("watching catalog file", slog.String("path", w.path))

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("catalog watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.log.Debug("catalog file changed", slog.String("op", event.Op.String()))

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				if err := w.Reload(); err != nil {
					w.log.Error("catalog reload failed, keeping previous catalog", slog.String("error", err.Error()))
					return
				}
				w.log.Info("catalog reloaded", slog.Int("videos", w.catalog.Len()))
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("catalog watcher error", slog.String("error", err.Error()))
		}
	}
}

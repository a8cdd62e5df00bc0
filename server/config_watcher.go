package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultSettleDelay lets editors finish writing before the file is reloaded.
const defaultSettleDelay = 200 * time.Millisecond

// ConfigWatcher calls a reload function when the config file changes.
// It watches the file's directory so that editors which replace the file by
// renaming are handled.
type ConfigWatcher struct {
	path   string
	reload func() error
	logger *slog.Logger
	settle time.Duration

	watcher  *fsnotify.Watcher
	loadedAt time.Time
}

// NewConfigWatcher creates a ConfigWatcher for path.
func NewConfigWatcher(path string, reload func() error, logger *slog.Logger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &ConfigWatcher{
		path:     abs,
		reload:   reload,
		logger:   logger,
		settle:   defaultSettleDelay,
		watcher:  w,
		loadedAt: time.Now(),
	}, nil
}

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *ConfigWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Bursts of events collapse into one reload.
			settle = time.After(w.settle)
		case <-settle:
			settle = nil
			w.maybeReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *ConfigWatcher) maybeReload() {
	stat, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn("config file unavailable, keeping current config", "path", w.path, "error", err)
		return
	}
	if !stat.ModTime().After(w.loadedAt) {
		return
	}

	w.loadedAt = stat.ModTime()
	if err := w.reload(); err != nil {
		w.logger.Error("failed to reload changed config, keeping current config", "path", w.path, "error", err)
		return
	}
	w.logger.Info("config file changed, configuration reloaded", "path", w.path)
}

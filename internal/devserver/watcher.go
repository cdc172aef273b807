package devserver

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"catalog-lens/internal/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes under a directory tree, collapsing bursts of
// events (a bundler rewriting many chunks) into one notification.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(path string)
	logger   logger.ILogger
}

func NewWatcher(root string, debounce time.Duration, onChange func(path string), log logger.ILogger) *Watcher {
	return &Watcher{root: root, debounce: debounce, onChange: onChange, logger: log}
}

// Run watches until ctx is done. New subdirectories are picked up as they
// appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return err
	}
	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("LiveReload", "Watching for changes", map[string]interface{}{"root": w.root})

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	var (
		pending  string
		lastSeen time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						w.logger.Warn("LiveReload", "Failed to watch new directory", map[string]interface{}{"path": event.Name, "error": err.Error()})
					}
				}
			}
			pending = event.Name
			lastSeen = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("LiveReload", "Watcher error", map[string]interface{}{"error": err.Error()})

		case <-ticker.C:
			if pending != "" && time.Since(lastSeen) >= w.debounce {
				w.onChange(pending)
				pending = ""
			}
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

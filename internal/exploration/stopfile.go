package exploration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// StopFileName is the file whose creation requests a graceful stop.
const StopFileName = "STOP"

// WatchStopFile calls onStop once path exists, either already at start or
// when it is created later. It returns when ctx is done or after onStop ran.
func WatchStopFile(ctx context.Context, path string, onStop func(), log *slog.Logger) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stop file dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// The file may have appeared before the watch was registered.
	if _, err := os.Stat(path); err == nil {
		log.Info("stop file present", "path", path)
		onStop()
		return nil
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				log.Info("stop file detected", "path", path)
				onStop()
				return nil
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("stop file watcher error", "path", path, "error", err)
		}
	}
}

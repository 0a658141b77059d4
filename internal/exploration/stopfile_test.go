package exploration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
)

func TestWatchStopFileExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), StopFileName)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	called := 0
	if err := WatchStopFile(context.Background(), path, func() { called++ }, logger.Discard()); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if called != 1 {
		t.Fatalf("expected onStop once, got %d", called)
	}
}

func TestWatchStopFileCreatedLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, StopFileName)
	stopped := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = WatchStopFile(ctx, path, func() { close(stopped) }, logger.Discard())
	}()

	// Other files in the directory are ignored.
	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "checkpoint.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-stopped:
	case <-ctx.Done():
		t.Fatalf("stop file was not detected")
	}
}

func TestWatchStopFileContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), StopFileName)
	if err := WatchStopFile(ctx, path, func() { t.Errorf("onStop must not run") }, logger.Discard()); err != nil {
		t.Fatalf("watch: %v", err)
	}
}

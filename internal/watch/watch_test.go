package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ervinoro/dintact/internal/index"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestShouldIgnoreEvent_IgnoresIndexFile(t *testing.T) {
	event := fsnotify.Event{Name: filepath.Join("cold", index.FileName), Op: fsnotify.Write}
	if !shouldIgnoreEvent(event) {
		t.Error("expected index.txt writes to be ignored")
	}
}

func TestShouldIgnoreEvent_IgnoresChmodOnly(t *testing.T) {
	event := fsnotify.Event{Name: "a.txt", Op: fsnotify.Chmod}
	if !shouldIgnoreEvent(event) {
		t.Error("expected a bare chmod event to be ignored")
	}
}

func TestShouldIgnoreEvent_AcceptsWrite(t *testing.T) {
	event := fsnotify.Event{Name: "a.txt", Op: fsnotify.Write}
	if shouldIgnoreEvent(event) {
		t.Error("expected a write event to a regular file to be accepted")
	}
}

func TestWatcher_ReportsOnFileCreation(t *testing.T) {
	hot := t.TempDir()
	cold := t.TempDir()

	w := New(hot, cold, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watch loop time to register its fsnotify watches before
	// the filesystem event fires.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(hot, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case report := <-w.Reports():
		if report.Err != nil {
			t.Fatalf("unexpected report error: %v", report.Err)
		}
		if len(report.Changes) != 1 {
			t.Fatalf("expected 1 change, got %d: %+v", len(report.Changes), report.Changes)
		}
		if report.Changes[0].Path() != "a.txt" {
			t.Errorf("unexpected change path: %q", report.Changes[0].Path())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a watch report")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after cancel")
	}
}

// Package watch watches a hot tree for filesystem changes and reports a
// dry-run reconciliation whenever a debounced batch of events settles.
// It never applies anything: reconciliation still requires an
// interactive confirmation, which `dintact watch` does not offer
// (spec.md §1's "no conflict resolution without user confirmation").
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ervinoro/dintact/internal/change"
	"github.com/ervinoro/dintact/internal/index"
	"github.com/ervinoro/dintact/internal/progress"
	"github.com/ervinoro/dintact/internal/reconcile"
)

const debounceTime = 300 * time.Millisecond

// Report is one dry-run reconciliation triggered by a settled batch of
// filesystem events.
type Report struct {
	Changes []change.Change
	Err     error
}

// Watcher watches hotRoot recursively and emits a Report on Reports
// every time filesystem activity settles, until ctx is canceled.
type Watcher struct {
	hotRoot  string
	coldRoot string
	log      *slog.Logger
	reports  chan Report
}

// New builds a Watcher. Call Run to start watching; Reports yields one
// Report per settled batch of events until ctx is canceled.
func New(hotRoot, coldRoot string, log *slog.Logger) *Watcher {
	return &Watcher{hotRoot: hotRoot, coldRoot: coldRoot, log: log, reports: make(chan Report)}
}

// Reports returns the channel Run publishes reconciliation reports on.
// It is closed once Run returns.
func (w *Watcher) Reports() <-chan Report { return w.reports }

// Run watches the hot tree until ctx is canceled, blocking until the
// watch loop exits. It is safe to read Reports concurrently.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.reports)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	walkAndWatch(watcher, w.hotRoot, w.log)

	w.watchLoop(ctx, watcher)
	return nil
}

// walkAndWatch adds fsnotify watches to dir and every subdirectory
// beneath it; fsnotify does not recurse on its own. Missing or
// unreadable directories are silently skipped.
func walkAndWatch(watcher *fsnotify.Watcher, dir string, log *slog.Logger) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // skip unreadable entries, keep watching the rest
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := watcher.Add(path); addErr != nil {
			log.Warn("failed to watch directory", "dir", path, "err", addErr)
		}
		return nil
	})
	if err != nil {
		log.Warn("failed to walk hot tree for watching", "dir", dir, "err", err)
	}
}

func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	fire := func() {
		idx := w.loadIndex()
		changes, err := reconcile.Run(ctx, w.hotRoot, w.coldRoot, idx, progress.Noop, w.log)
		select {
		case w.reports <- Report{Changes: changes, Err: err}:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			w.log.Debug("change detected", "file", filepath.Base(event.Name), "op", event.Op.String())

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if addErr := watcher.Add(event.Name); addErr != nil {
						w.log.Warn("failed to watch new directory", "dir", event.Name, "err", addErr)
					}
				}
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceTime, fire)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "err", err)
		}
	}
}

func (w *Watcher) loadIndex() *index.Index {
	idx, err := index.Load(w.coldRoot)
	if err != nil {
		w.log.Warn("failed to reload index for watch report", "err", err)
		return index.New()
	}
	return idx
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	return base == index.FileName
}

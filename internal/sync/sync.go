// Package sync is the applier/driver that runs a full reconciliation:
// validate roots, load the index, diff, confirm, apply, persist
// (spec.md §4.H).
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ervinoro/dintact/internal/change"
	"github.com/ervinoro/dintact/internal/confirm"
	"github.com/ervinoro/dintact/internal/index"
	"github.com/ervinoro/dintact/internal/progress"
	"github.com/ervinoro/dintact/internal/reconcile"
	"github.com/ervinoro/dintact/internal/report"
	"github.com/ervinoro/dintact/internal/walk"
)

// ErrRootMissing is returned when a hot or cold root is not an existing
// directory (spec.md §7: RootMissing is fatal at startup).
var ErrRootMissing = errors.New("sync: root is not an existing directory")

// ErrUserAbort is returned when the user declines the final batch
// confirmation. It is not a failure: no changes are applied and the
// on-disk index is left untouched.
var ErrUserAbort = errors.New("sync: user declined to commence the batch")

// Driver runs reconciliations against a confirmation source and a
// logger, optionally emitting a Markdown report of what it did (or
// would have done).
type Driver struct {
	Confirm   *confirm.Confirmer
	Log       *slog.Logger
	ReportOut io.Writer // optional; nil disables report generation
}

// NewDriver builds a Driver with the given confirmer and logger.
func NewDriver(cf *confirm.Confirmer, log *slog.Logger) *Driver {
	return &Driver{Confirm: cf, Log: log}
}

// ValidateRoots checks that hotRoot and coldRoot both exist and are
// directories.
func ValidateRoots(hotRoot, coldRoot string) error {
	for _, root := range []string{hotRoot, coldRoot} {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRootMissing, root, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrRootMissing, root)
		}
	}
	return nil
}

// Sync performs one full reconciliation between hotRoot and coldRoot
// (spec.md §4.H, steps 1-10). On a clean user abort it returns
// ErrUserAbort with no error from applying anything; any other
// non-nil error means some or all of applied may not reflect index
// state (see spec.md §7's ApplyFailure disposition).
func (d *Driver) Sync(ctx context.Context, hotRoot, coldRoot string) (applied []change.Change, err error) {
	if err := ValidateRoots(hotRoot, coldRoot); err != nil {
		return nil, err
	}

	idx, err := index.Load(coldRoot)
	if err != nil {
		return nil, fmt.Errorf("sync: loading index: %w", err)
	}

	hotEntries, err := walk.Walk(hotRoot)
	if err != nil {
		return nil, fmt.Errorf("sync: scanning hot root: %w", err)
	}
	coldEntries, err := walk.Walk(coldRoot)
	if err != nil {
		return nil, fmt.Errorf("sync: scanning cold root: %w", err)
	}
	diffBar := progress.NewTerminal("Comparing", walk.TotalSize(hotEntries)+walk.TotalSize(coldEntries))

	changes, err := reconcile.Run(ctx, hotRoot, coldRoot, idx, diffBar, d.Log)
	diffBar.Stop()
	if err != nil {
		return nil, fmt.Errorf("sync: reconciling: %w", err)
	}

	var actions []change.Change
	for _, c := range changes {
		if d.Confirm.Change(c) {
			actions = append(actions, c)
		}
	}

	if len(actions) == 0 {
		d.writeReport("Sync report (nothing to do)", nil, false)
		return nil, nil
	}

	d.Confirm.Summary(actions)
	if !d.Confirm.Batch(len(actions)) {
		d.writeReport("Sync report (aborted)", actions, false)
		return nil, ErrUserAbort
	}

	applyBar := progress.NewTerminal("Applying", sumSizes(actions))
	defer applyBar.Stop()

	for _, c := range actions {
		if applyErr := c.Apply(hotRoot, coldRoot, idx, applyBar); applyErr != nil {
			d.writeReport("Sync report (partial, apply failed)", applied, true)
			return applied, fmt.Errorf("sync: applying %s: %w", c.Path(), applyErr)
		}
		applied = append(applied, c)
	}

	if err := idx.Store(); err != nil {
		return applied, fmt.Errorf("sync: persisting index: %w", err)
	}

	d.writeReport("Sync report", applied, true)
	return applied, nil
}

func (d *Driver) writeReport(title string, changes []change.Change, applied bool) {
	if d.ReportOut == nil {
		return
	}
	fmt.Fprint(d.ReportOut, report.Markdown(title, changes, applied))
}

func sumSizes(changes []change.Change) int64 {
	var total int64
	for _, c := range changes {
		total += c.Size()
	}
	return total
}

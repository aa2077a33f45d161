package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ervinoro/dintact/internal/checksum"
	"github.com/ervinoro/dintact/internal/index"
	"github.com/ervinoro/dintact/internal/progress"
)

// CheckResult is the outcome of a Check run: how many paths were
// verified and what went wrong, if anything.
type CheckResult struct {
	Verified int
	Failures int
}

// OK reports whether the cold tree exactly matches the index, with no
// unindexed stray files.
func (r CheckResult) OK() bool { return r.Failures == 0 }

// Check verifies that every path recorded in coldRoot's index hashes to
// its recorded checksum, and that every file under coldRoot (other than
// the index file itself) is recorded in the index (spec.md §6's `check`
// operation). Unlike the reconciliation walk, this enumerates the
// filesystem directly rather than through walk.Walk, since check must
// not silently skip ignored or "irrelevant" files.
//
// Every mismatch is written to errOut as "Verification failed: '<path>'."
// and counted; Check never aborts early on a mismatch (spec.md §7:
// verification failures are counted and reported but never fatal).
func Check(ctx context.Context, coldRoot string, errOut io.Writer, log *slog.Logger) (CheckResult, error) {
	idx, err := index.Load(coldRoot)
	if err != nil {
		return CheckResult{}, fmt.Errorf("check: loading index: %w", err)
	}

	var result CheckResult
	indexed := make(map[string]bool)

	for _, relPath := range idx.Iter() {
		indexed[relPath] = true
		result.Verified++

		want, err := idx.GetChecksum(relPath)
		if err != nil {
			result.Failures++
			fmt.Fprintf(errOut, "Verification failed: '%s'.\n", relPath)
			continue
		}

		absPath := filepath.Join(coldRoot, filepath.FromSlash(relPath))
		got := checksum.HashFile(ctx, absPath, progress.Noop, log)
		if got != want {
			result.Failures++
			fmt.Fprintf(errOut, "Verification failed: '%s'.\n", relPath)
		}
	}

	strayErr := filepath.WalkDir(coldRoot, func(absPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(coldRoot, absPath)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == index.FileName {
			return nil
		}
		if !indexed[relPath] {
			result.Failures++
			fmt.Fprintf(errOut, "Verification failed: '%s'.\n", relPath)
		}
		return nil
	})
	if strayErr != nil {
		return result, fmt.Errorf("check: scanning %s: %w", coldRoot, strayErr)
	}

	return result, nil
}

// Summary renders the final "OK: Data is intact!" / "FAIL: There were N
// failures!" line spec.md §6 and §8 scenario 6 specify verbatim.
func (r CheckResult) Summary() string {
	if r.OK() {
		return "OK: Data is intact!"
	}
	return fmt.Sprintf("FAIL: There were %d failures!", r.Failures)
}

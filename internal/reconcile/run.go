package reconcile

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ervinoro/dintact/internal/change"
	"github.com/ervinoro/dintact/internal/index"
	"github.com/ervinoro/dintact/internal/progress"
)

// Run performs a full reconciliation: the recursive tree-diff followed
// by the three post-processing passes in spec.md §4.G's order, with the
// result sorted by path for stable reporting and confirmation order
// (spec.md §4.H).
func Run(ctx context.Context, hotRoot, coldRoot string, idx *index.Index, bar progress.Bar, log *slog.Logger) ([]change.Change, error) {
	changes, err := WalkTrees(ctx, hotRoot, coldRoot, idx, bar, log)
	if err != nil {
		return nil, err
	}

	changes = IgnoreIndex(changes)
	changes = FindMoveds(changes)
	changes = FindDeduplications(changes, idx)

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path() < changes[j].Path() })
	return changes, nil
}

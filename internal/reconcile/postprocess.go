package reconcile

import (
	"github.com/ervinoro/dintact/internal/change"
	"github.com/ervinoro/dintact/internal/checksum"
	"github.com/ervinoro/dintact/internal/index"
	"github.com/ervinoro/dintact/internal/walk"
)

// IgnoreIndex drops an Appeared change for the cold index file itself
// (spec.md §4.G). walk.ListChildren already excludes index.txt from
// the walk root's listing, so in practice this never fires; it is kept as the
// same defensive pass the original reconciliation ran.
func IgnoreIndex(changes []change.Change) []change.Change {
	out := make([]change.Change, 0, len(changes))
	for _, c := range changes {
		if a, ok := c.(change.Appeared); ok && a.RelPath == walk.IndexFileName {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FindMoveds pairs an Added and a Removed that record the same content
// (file checksum, or structurally-equal directory sub-index) when
// exactly one of each shares that content, and replaces the pair with a
// synthesized Moved (spec.md §4.G). Ambiguous matches — more than one
// Added or Removed sharing the same content — are left as separate
// Added/Removed changes.
func FindMoveds(changes []change.Change) []change.Change {
	var addedIdx, removedIdx []int
	for i, c := range changes {
		switch c.(type) {
		case change.Added:
			addedIdx = append(addedIdx, i)
		case change.Removed:
			removedIdx = append(removedIdx, i)
		}
	}

	used := make(map[int]bool)
	var moves []change.Moved

	// File-checksum pairing: group by checksum directly, no pairwise scan.
	addedByChecksum := map[checksum.Sum][]int{}
	for _, i := range addedIdx {
		a := changes[i].(change.Added)
		if a.New.Dir == nil {
			addedByChecksum[a.New.Checksum] = append(addedByChecksum[a.New.Checksum], i)
		}
	}
	removedByChecksum := map[checksum.Sum][]int{}
	for _, i := range removedIdx {
		r := changes[i].(change.Removed)
		if r.OldValue.Dir == nil {
			removedByChecksum[r.OldValue.Checksum] = append(removedByChecksum[r.OldValue.Checksum], i)
		}
	}
	for sum, ais := range addedByChecksum {
		rIs := removedByChecksum[sum]
		if len(ais) == 1 && len(rIs) == 1 {
			moves = append(moves, pairMove(changes, ais[0], rIs[0]))
			used[ais[0]] = true
			used[rIs[0]] = true
		}
	}

	// Directory pairing: no hashable key for structural equality, so
	// changes are bucketed pairwise by index.Equal.
	type bucket struct {
		sample  *index.Index
		added   []int
		removed []int
	}
	var buckets []*bucket
	bucketFor := func(sample *index.Index) *bucket {
		for _, b := range buckets {
			if index.Equal(b.sample, sample) {
				return b
			}
		}
		b := &bucket{sample: sample}
		buckets = append(buckets, b)
		return b
	}
	for _, i := range addedIdx {
		a := changes[i].(change.Added)
		if a.New.Dir != nil {
			b := bucketFor(a.New.Dir)
			b.added = append(b.added, i)
		}
	}
	for _, i := range removedIdx {
		r := changes[i].(change.Removed)
		if r.OldValue.Dir != nil {
			b := bucketFor(r.OldValue.Dir)
			b.removed = append(b.removed, i)
		}
	}
	for _, b := range buckets {
		if len(b.added) == 1 && len(b.removed) == 1 {
			moves = append(moves, pairMove(changes, b.added[0], b.removed[0]))
			used[b.added[0]] = true
			used[b.removed[0]] = true
		}
	}

	out := make([]change.Change, 0, len(changes))
	for i, c := range changes {
		if used[i] {
			continue
		}
		out = append(out, c)
	}
	for _, m := range moves {
		out = append(out, m)
	}
	return out
}

func pairMove(changes []change.Change, addedI, removedI int) change.Moved {
	a := changes[addedI].(change.Added)
	r := changes[removedI].(change.Removed)
	return change.Moved{
		Base:       change.Base{RelPath: a.RelPath, ByteSize: a.ByteSize},
		SrcPath:    r.RelPath,
		New:        a.New,
		Superseded: r,
	}
}

// FindDeduplications annotates every surviving Removed change (one
// whose content was not paired into a Moved) whose checksum also
// appears at other paths still in idx, so the report can tell the user
// the path being removed is a duplicate rather than a unique loss
// (spec.md §4.G).
func FindDeduplications(changes []change.Change, idx *index.Index) []change.Change {
	rev := idx.ReverseMap()
	out := make([]change.Change, len(changes))
	for i, c := range changes {
		r, ok := c.(change.Removed)
		if !ok || r.OldValue.Dir != nil {
			out[i] = c
			continue
		}
		var others []string
		for _, p := range rev[r.OldValue.Checksum] {
			if p != r.RelPath {
				others = append(others, p)
			}
		}
		if len(others) > 0 {
			r.DuplicateOf = others
		}
		out[i] = r
	}
	return out
}

package reconcile

import (
	"testing"

	"github.com/ervinoro/dintact/internal/change"
	"github.com/ervinoro/dintact/internal/index"
)

// ---------------------------------------------------------------------------
// Tests for IgnoreIndex
// ---------------------------------------------------------------------------

func TestIgnoreIndex_DropsIndexFileAppeared(t *testing.T) {
	in := []change.Change{
		change.Appeared{Base: change.Base{RelPath: "index.txt"}},
		change.Appeared{Base: change.Base{RelPath: "other.txt"}},
	}
	out := IgnoreIndex(in)
	if len(out) != 1 || out[0].Path() != "other.txt" {
		t.Fatalf("got %+v, want only other.txt to survive", out)
	}
}

// ---------------------------------------------------------------------------
// Tests for FindMoveds
// ---------------------------------------------------------------------------

func TestFindMoveds_PairsUniqueChecksumMatch(t *testing.T) {
	sum := checksumOf("content")
	in := []change.Change{
		change.Removed{Base: change.Base{RelPath: "old/path.txt"}, OldValue: change.Payload{Checksum: sum}},
		change.Added{Base: change.Base{RelPath: "new/path.txt"}, New: change.Payload{Checksum: sum}},
	}
	out := FindMoveds(in)
	if len(out) != 1 {
		t.Fatalf("expected the pair to collapse into one Moved, got %d: %+v", len(out), out)
	}
	m, ok := out[0].(change.Moved)
	if !ok {
		t.Fatalf("got %T, want change.Moved", out[0])
	}
	if m.SrcPath != "old/path.txt" || m.Path() != "new/path.txt" {
		t.Errorf("Moved{SrcPath: %q, Path: %q}, want old/path.txt -> new/path.txt", m.SrcPath, m.Path())
	}
}

func TestFindMoveds_LeavesAmbiguousMatchesAlone(t *testing.T) {
	sum := checksumOf("content")
	in := []change.Change{
		change.Removed{Base: change.Base{RelPath: "old1.txt"}, OldValue: change.Payload{Checksum: sum}},
		change.Removed{Base: change.Base{RelPath: "old2.txt"}, OldValue: change.Payload{Checksum: sum}},
		change.Added{Base: change.Base{RelPath: "new.txt"}, New: change.Payload{Checksum: sum}},
	}
	out := FindMoveds(in)
	if len(out) != 3 {
		t.Fatalf("expected no pairing when multiplicity > 1, got %d: %+v", len(out), out)
	}
	for _, c := range out {
		if _, ok := c.(change.Moved); ok {
			t.Errorf("did not expect a Moved among ambiguous matches, got %+v", out)
		}
	}
}

func TestFindMoveds_PairsEqualDirectoryPayloads(t *testing.T) {
	dir := index.New()
	if err := dir.Set("a.txt", checksumOf("a")); err != nil {
		t.Fatal(err)
	}
	dirCopy := index.New()
	if err := dirCopy.Set("a.txt", checksumOf("a")); err != nil {
		t.Fatal(err)
	}

	in := []change.Change{
		change.Removed{Base: change.Base{RelPath: "old"}, OldValue: change.Payload{Dir: dir}},
		change.Added{Base: change.Base{RelPath: "new"}, New: change.Payload{Dir: dirCopy}},
	}
	out := FindMoveds(in)
	if len(out) != 1 {
		t.Fatalf("expected structurally-equal directory payloads to pair, got %d: %+v", len(out), out)
	}
	if _, ok := out[0].(change.Moved); !ok {
		t.Errorf("got %T, want change.Moved", out[0])
	}
}

// ---------------------------------------------------------------------------
// Tests for FindDeduplications
// ---------------------------------------------------------------------------

func TestFindDeduplications_AnnotatesSharedChecksum(t *testing.T) {
	sum := checksumOf("shared")
	idx := index.New()
	if err := idx.Set("keep/a.txt", sum); err != nil {
		t.Fatal(err)
	}
	if err := idx.Set("removed.txt", sum); err != nil {
		t.Fatal(err)
	}

	in := []change.Change{
		change.Removed{Base: change.Base{RelPath: "removed.txt"}, OldValue: change.Payload{Checksum: sum}},
	}
	out := FindDeduplications(in, idx)
	r, ok := out[0].(change.Removed)
	if !ok {
		t.Fatalf("got %T, want change.Removed", out[0])
	}
	if len(r.DuplicateOf) != 1 || r.DuplicateOf[0] != "keep/a.txt" {
		t.Errorf("DuplicateOf = %v, want [keep/a.txt]", r.DuplicateOf)
	}
}

func TestFindDeduplications_NoAnnotationWhenUnique(t *testing.T) {
	sum := checksumOf("unique")
	idx := index.New()
	if err := idx.Set("removed.txt", sum); err != nil {
		t.Fatal(err)
	}

	in := []change.Change{
		change.Removed{Base: change.Base{RelPath: "removed.txt"}, OldValue: change.Payload{Checksum: sum}},
	}
	out := FindDeduplications(in, idx)
	r := out[0].(change.Removed)
	if len(r.DuplicateOf) != 0 {
		t.Errorf("DuplicateOf = %v, want empty", r.DuplicateOf)
	}
}

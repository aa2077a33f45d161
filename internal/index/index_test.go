package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ervinoro/dintact/internal/checksum"
)

func sum(s string) checksum.Sum { return checksum.HashBytes([]byte(s)) }

func TestLoad_MissingFileCreatesEmptyIndexOnDisk(t *testing.T) {
	coldRoot := t.TempDir()

	idx, err := Load(coldRoot)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for a freshly-created index", idx.Len())
	}
	if _, err := os.Stat(filepath.Join(coldRoot, FileName)); err != nil {
		t.Errorf("expected Load to create %s on disk, stat error: %v", FileName, err)
	}
}

func TestStoreLoad_RoundTripPreservesAllEntries(t *testing.T) {
	coldRoot := t.TempDir()
	idx := New()
	idx.SetPath(coldRoot)

	entries := map[string]checksum.Sum{
		"a.txt":         sum("a"),
		"dir/b.txt":     sum("b"),
		"dir/sub/c.txt": sum("c"),
	}
	for p, s := range entries {
		if err := idx.Set(p, s); err != nil {
			t.Fatalf("Set(%q): %v", p, err)
		}
	}

	if err := idx.Store(); err != nil {
		t.Fatalf("Store: %v", err)
	}

	reloaded, err := Load(coldRoot)
	if err != nil {
		t.Fatalf("Load after Store: %v", err)
	}

	if reloaded.Len() != len(entries) {
		t.Errorf("Len() = %d, want %d", reloaded.Len(), len(entries))
	}
	for p, want := range entries {
		got, err := reloaded.GetChecksum(p)
		if err != nil {
			t.Errorf("GetChecksum(%q): %v", p, err)
			continue
		}
		if got != want {
			t.Errorf("GetChecksum(%q) = %q, want %q", p, got, want)
		}
	}
	if !Equal(idx, reloaded) {
		t.Error("reloaded index is not structurally Equal to the original")
	}
}

func TestSet_NameCollisionBetweenFileAndDirectory(t *testing.T) {
	idx := New()
	if err := idx.Set("a/b.txt", sum("b")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// "a" is already a directory node; setting it as a file should collide.
	if err := idx.Set("a", sum("x")); !errors.Is(err, ErrNameCollision) {
		t.Errorf("Set(\"a\") error = %v, want ErrNameCollision", err)
	}

	idx2 := New()
	if err := idx2.Set("a", sum("a")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// "a" is already a file leaf; setting a/b.txt should collide.
	if err := idx2.Set("a/b.txt", sum("b")); !errors.Is(err, ErrNameCollision) {
		t.Errorf("Set(\"a/b.txt\") error = %v, want ErrNameCollision", err)
	}
}

func TestSetDir_NameCollisionWithExistingFile(t *testing.T) {
	idx := New()
	if err := idx.Set("a", sum("a")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	sub := New()
	if err := idx.SetDir("a", sub); !errors.Is(err, ErrNameCollision) {
		t.Errorf("SetDir(\"a\") error = %v, want ErrNameCollision", err)
	}
}

func TestDelete_PrunesEmptyDirectoryNodes(t *testing.T) {
	idx := New()
	if err := idx.Set("dir/only.txt", sum("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !idx.Contains("dir") {
		t.Fatal("expected dir to be present before deletion")
	}

	if err := idx.Delete("dir/only.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if idx.Contains("dir") {
		t.Error("expected dir to be pruned after its only child was deleted")
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", idx.Len())
	}
}

func TestDelete_LeavesSiblingDirectoriesIntact(t *testing.T) {
	idx := New()
	if err := idx.Set("dir/a.txt", sum("a")); err != nil {
		t.Fatal(err)
	}
	if err := idx.Set("dir/b.txt", sum("b")); err != nil {
		t.Fatal(err)
	}

	if err := idx.Delete("dir/a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if !idx.Contains("dir") {
		t.Error("expected dir to survive since b.txt remains")
	}
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
}

func TestDelete_NotFoundReturnsErrNotFound(t *testing.T) {
	idx := New()
	if err := idx.Delete("nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
	if err := idx.Delete("missing/dir/x.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestLen_CountsFileLeavesAcrossNestedDirectories(t *testing.T) {
	idx := New()
	paths := []string{"a.txt", "dir/b.txt", "dir/sub/c.txt", "dir/sub/d.txt"}
	for _, p := range paths {
		if err := idx.Set(p, sum(p)); err != nil {
			t.Fatalf("Set(%q): %v", p, err)
		}
	}
	if idx.Len() != len(paths) {
		t.Errorf("Len() = %d, want %d", idx.Len(), len(paths))
	}
}

func TestEqual_DetectsStructuralDifferences(t *testing.T) {
	a := New()
	_ = a.Set("x.txt", sum("x"))
	b := New()
	_ = b.Set("x.txt", sum("x"))
	if !Equal(a, b) {
		t.Error("expected equal indexes built the same way to be Equal")
	}

	c := New()
	_ = c.Set("x.txt", sum("different"))
	if Equal(a, c) {
		t.Error("expected indexes with different checksums to not be Equal")
	}

	d := New()
	_ = d.Set("y.txt", sum("x"))
	if Equal(a, d) {
		t.Error("expected indexes with different paths to not be Equal")
	}
}

func TestEqual_NilHandling(t *testing.T) {
	if !Equal(nil, nil) {
		t.Error("Equal(nil, nil) should be true")
	}
	if Equal(New(), nil) || Equal(nil, New()) {
		t.Error("Equal(non-nil, nil) should be false")
	}
}

func TestReverseMap_GroupsPathsBySharedChecksum(t *testing.T) {
	idx := New()
	shared := sum("shared")
	if err := idx.Set("a.txt", shared); err != nil {
		t.Fatal(err)
	}
	if err := idx.Set("dir/b.txt", shared); err != nil {
		t.Fatal(err)
	}
	if err := idx.Set("unique.txt", sum("unique")); err != nil {
		t.Fatal(err)
	}

	rev := idx.ReverseMap()
	paths := rev[shared]
	if len(paths) != 2 || paths[0] != "a.txt" || paths[1] != "dir/b.txt" {
		t.Errorf("ReverseMap()[shared] = %v, want [a.txt dir/b.txt]", paths)
	}
	if len(rev[sum("unique")]) != 1 {
		t.Errorf("ReverseMap()[unique] = %v, want one entry", rev[sum("unique")])
	}
}

func TestContainsAndGetDir(t *testing.T) {
	idx := New()
	if err := idx.Set("dir/sub/file.txt", sum("x")); err != nil {
		t.Fatal(err)
	}

	if !idx.Contains("dir") || !idx.Contains("dir/sub") || !idx.Contains("dir/sub/file.txt") {
		t.Error("expected Contains to be true for every component of the path")
	}
	if idx.Contains("dir/sub/other.txt") {
		t.Error("expected Contains to be false for a non-existent leaf")
	}

	sub := idx.GetDir("dir/sub")
	if sub == nil {
		t.Fatal("GetDir(\"dir/sub\") = nil, want the sub-index")
	}
	if !sub.Contains("file.txt") {
		t.Error("sub-index returned by GetDir does not contain its own leaf")
	}
	if idx.GetDir("nope") != nil {
		t.Error("GetDir on a non-existent path should return nil")
	}
}

func TestGetChecksum_DirectoryPathIsAnError(t *testing.T) {
	idx := New()
	if err := idx.Set("dir/file.txt", sum("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.GetChecksum("dir"); err == nil {
		t.Error("expected an error asking for the checksum of a directory path")
	}
	if _, err := idx.GetChecksum("missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetChecksum error = %v, want ErrNotFound", err)
	}
}

func TestLoad_IncompatibleHeaderIsRejected(t *testing.T) {
	coldRoot := t.TempDir()
	idx := New()
	idx.SetPath(coldRoot)
	idx.Meta.Algorithm = "SHA256"
	if err := idx.Store(); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, err := Load(coldRoot); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Load error = %v, want ErrIncompatible", err)
	}
}

func TestIterDir_SortsDirsBeforeFilesEachAlphabetical(t *testing.T) {
	idx := New()
	for _, p := range []string{"z.txt", "a.txt", "zdir/x.txt", "adir/x.txt"} {
		if err := idx.Set(p, sum(p)); err != nil {
			t.Fatal(err)
		}
	}

	entries := idx.IterDir()
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"adir", "zdir", "a.txt", "z.txt"}
	if len(names) != len(want) {
		t.Fatalf("IterDir() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("IterDir()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

// Package change defines the closed taxonomy of reconciling actions a
// three-way hot/cold/index comparison can produce (spec.md §3, §4.E): a
// tagged union of thirteen base variants plus a synthesized Moved,
// realized as a Go interface over a family of structs rather than a class
// hierarchy (spec.md §9's "closed-world variant vs inheritance" note).
package change

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ervinoro/dintact/internal/checksum"
	"github.com/ervinoro/dintact/internal/index"
	"github.com/ervinoro/dintact/internal/progress"
)

// Change is the interface every variant implements. Apply must leave idx
// consistent with the post-action filesystem state.
type Change interface {
	// Path returns the relative path the change concerns.
	Path() string
	// Size is the byte count to move to cold storage, for progress
	// accounting; it is not part of the change's identity.
	Size() int64
	// HasBeen describes what happened in the hot/cold/index triple.
	HasBeen() string
	// Action describes what applying the change will do.
	Action() string
	// Apply executes the change against the filesystem and idx.
	Apply(hotRoot, coldRoot string, idx *index.Index, bar progress.Bar) error
	// id returns the (variant-tag, path) identity pair Change equality
	// and hashing are defined over (spec.md §3: "size and checksum are
	// not identity").
	id() (tag, path string)
}

// Base carries the fields every variant shares.
type Base struct {
	RelPath string
	ByteSize int64
}

func (b Base) Path() string { return b.RelPath }
func (b Base) Size() int64  { return b.ByteSize }

// Equal reports whether two changes share the same (variant-tag, path)
// identity, per spec.md §3.
func Equal(a, b Change) bool {
	at, ap := a.id()
	bt, bp := b.id()
	return at == bt && ap == bp
}

// Key returns a value suitable for use as a map key encoding a change's
// identity, for use by post-processing passes and tests.
func Key(c Change) string {
	tag, path := c.id()
	return tag + "\x00" + path
}

func cp(hotRoot, coldRoot, rel string) error {
	src := filepath.Join(hotRoot, rel)
	dst := filepath.Join(coldRoot, rel)
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("change: stat %s: %w", src, err)
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("change: mkdir for %s: %w", dst, err)
	}
	//nolint:gosec // G304: src/dst are derived from the hot/cold roots being reconciled
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("change: opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("change: stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("change: creating %s: %w", dst, err)
	}
	defer out.Close()

	buf := make([]byte, 64*1024)
	if _, err := copyBuf(out, in, buf); err != nil {
		return fmt.Errorf("change: copying %s to %s: %w", src, dst, err)
	}
	return nil
}

func copyBuf(dst *os.File, src *os.File, buf []byte) (int64, error) {
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("change: mkdir %s: %w", dst, err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("change: reading %s: %w", src, err)
	}
	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyDir(s, d); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(s, d); err != nil {
			return err
		}
	}
	return nil
}

func rm(root, rel string) error {
	target := filepath.Join(root, rel)
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("change: removing %s: %w", target, err)
	}
	return nil
}

// ---------------------------------------------------------------------
// Payload carries the new checksum (file leaf) or recursively-hashed
// sub-index (directory) a variant records into the cold index.
// ---------------------------------------------------------------------

// Payload is either a file Checksum or a directory *index.Index.
type Payload struct {
	Checksum checksum.Sum
	Dir      *index.Index
}

func (p Payload) apply(idx *index.Index, path string) error {
	if p.Dir != nil {
		return idx.SetDir(path, p.Dir)
	}
	return idx.Set(path, p.Checksum)
}

// ---------------------------------------------------------------------
// Variants. H/C/I convention per spec.md §3 table.
// ---------------------------------------------------------------------

// AddedCopied: H1 C1 I0. The file was added and manually copied to cold
// without updating the index.
type AddedCopied struct {
	Base
	New Payload
}

func (c AddedCopied) HasBeen() string { return "added and manually copied (without updating the index)" }
func (c AddedCopied) Action() string  { return "add it to the cold index" }
func (c AddedCopied) id() (string, string) { return "AddedCopied", c.RelPath }
func (c AddedCopied) Apply(_, _ string, idx *index.Index, _ progress.Bar) error {
	return c.New.apply(idx, c.RelPath)
}

// ModifiedCopied: H1 C1 I2. Modified and manually copied without
// updating the index.
type ModifiedCopied struct {
	Base
	New Payload
}

func (c ModifiedCopied) HasBeen() string { return "modified and manually copied (without updating the index)" }
func (c ModifiedCopied) Action() string  { return "update the cold index" }
func (c ModifiedCopied) id() (string, string) { return "ModifiedCopied", c.RelPath }
func (c ModifiedCopied) Apply(_, _ string, idx *index.Index, _ progress.Bar) error {
	return c.New.apply(idx, c.RelPath)
}

// Modified: H2 C1 I1. Hot changed; cold still matches the old index
// entry.
type Modified struct {
	Base
	New Payload
}

func (c Modified) HasBeen() string { return "modified" }
func (c Modified) Action() string  { return "copy it to cold backup" }
func (c Modified) id() (string, string) { return "Modified", c.RelPath }
func (c Modified) Apply(hotRoot, coldRoot string, idx *index.Index, bar progress.Bar) error {
	if err := rm(coldRoot, c.RelPath); err != nil {
		return err
	}
	if err := cp(hotRoot, coldRoot, c.RelPath); err != nil {
		return err
	}
	bar.Add(c.ByteSize)
	return c.New.apply(idx, c.RelPath)
}

// Corrupted: H1 C2 I1. Cold copy has bit-rotted; hot still matches the
// index.
type Corrupted struct {
	Base
}

func (c Corrupted) HasBeen() string { return "corrupted (in cold backup)" }
func (c Corrupted) Action() string  { return "overwrite it from hot to cold" }
func (c Corrupted) id() (string, string) { return "Corrupted", c.RelPath }
func (c Corrupted) Apply(hotRoot, coldRoot string, _ *index.Index, bar progress.Bar) error {
	if err := rm(coldRoot, c.RelPath); err != nil {
		return err
	}
	if err := cp(hotRoot, coldRoot, c.RelPath); err != nil {
		return err
	}
	bar.Add(c.ByteSize)
	return nil
}

// ModifiedCorrupted: H1 C2 I3. Both hot and cold diverged from the index,
// independently.
type ModifiedCorrupted struct {
	Base
	New Payload
}

func (c ModifiedCorrupted) HasBeen() string {
	return "modified (in hot storage) and corrupted (in cold backup)"
}
func (c ModifiedCorrupted) Action() string { return "overwrite it from hot to cold" }
func (c ModifiedCorrupted) id() (string, string) { return "ModifiedCorrupted", c.RelPath }
func (c ModifiedCorrupted) Apply(hotRoot, coldRoot string, idx *index.Index, bar progress.Bar) error {
	if err := rm(coldRoot, c.RelPath); err != nil {
		return err
	}
	if err := cp(hotRoot, coldRoot, c.RelPath); err != nil {
		return err
	}
	bar.Add(c.ByteSize)
	return c.New.apply(idx, c.RelPath)
}

// AddedAppeared: H1 C2 I0. Both hot and cold gained the path
// independently, with different content.
type AddedAppeared struct {
	Base
	New Payload
}

func (c AddedAppeared) HasBeen() string { return "added to both (with different content)" }
func (c AddedAppeared) Action() string  { return "overwrite it from hot to cold" }
func (c AddedAppeared) id() (string, string) { return "AddedAppeared", c.RelPath }
func (c AddedAppeared) Apply(hotRoot, coldRoot string, idx *index.Index, bar progress.Bar) error {
	if err := rm(coldRoot, c.RelPath); err != nil {
		return err
	}
	if err := cp(hotRoot, coldRoot, c.RelPath); err != nil {
		return err
	}
	bar.Add(c.ByteSize)
	return c.New.apply(idx, c.RelPath)
}

// Added: H1 C0 I0. A genuinely new path in hot.
type Added struct {
	Base
	New Payload
}

func (c Added) HasBeen() string { return "added" }
func (c Added) Action() string  { return "copy it to cold backup" }
func (c Added) id() (string, string) { return "Added", c.RelPath }
func (c Added) Apply(hotRoot, coldRoot string, idx *index.Index, bar progress.Bar) error {
	if err := cp(hotRoot, coldRoot, c.RelPath); err != nil {
		return err
	}
	bar.Add(c.ByteSize)
	return c.New.apply(idx, c.RelPath)
}

// ModifiedLost: H1 C0 I2. Modified in hot and lost from cold backup.
type ModifiedLost struct {
	Base
	New Payload
}

func (c ModifiedLost) HasBeen() string { return "modified in hot and lost from cold backup" }
func (c ModifiedLost) Action() string  { return "copy it to cold backup" }
func (c ModifiedLost) id() (string, string) { return "ModifiedLost", c.RelPath }
func (c ModifiedLost) Apply(hotRoot, coldRoot string, idx *index.Index, bar progress.Bar) error {
	if err := cp(hotRoot, coldRoot, c.RelPath); err != nil {
		return err
	}
	bar.Add(c.ByteSize)
	return c.New.apply(idx, c.RelPath)
}

// Lost: H1 C0 I1. Missing from cold backup, but hot still matches the
// index.
type Lost struct {
	Base
}

func (c Lost) HasBeen() string { return "lost from cold backup" }
func (c Lost) Action() string  { return "copy it to cold backup" }
func (c Lost) id() (string, string) { return "Lost", c.RelPath }
func (c Lost) Apply(hotRoot, coldRoot string, _ *index.Index, bar progress.Bar) error {
	if err := cp(hotRoot, coldRoot, c.RelPath); err != nil {
		return err
	}
	bar.Add(c.ByteSize)
	return nil
}

// Removed: H0 C1 I1. Removed from hot; cold and index still agree.
//
// OldValue is the index's recorded value for this path before removal
// (file checksum or directory sub-index); find_deduplications fills in
// DuplicateOf with other index paths sharing OldValue's checksum.
type Removed struct {
	Base
	OldValue     Payload
	DuplicateOf []string
}

func (c Removed) HasBeen() string {
	if len(c.DuplicateOf) == 0 {
		return "removed"
	}
	return fmt.Sprintf("removed (duplicate of %s)", joinPaths(c.DuplicateOf))
}
func (c Removed) Action() string  { return "remove it from cold backup" }
func (c Removed) id() (string, string) { return "Removed", c.RelPath }
func (c Removed) Apply(_, coldRoot string, idx *index.Index, _ progress.Bar) error {
	if err := rm(coldRoot, c.RelPath); err != nil {
		return err
	}
	return idx.Delete(c.RelPath)
}

func joinPaths(paths []string) string {
	out := ""
	for i, p := range paths {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// RemovedCorrupted: H0 C2 I1. Removed from hot; cold independently
// corrupted.
type RemovedCorrupted struct {
	Base
	OldValue Payload
}

func (c RemovedCorrupted) HasBeen() string {
	return "removed (from hot storage) and corrupted (in cold backup)"
}
func (c RemovedCorrupted) Action() string { return "remove it from cold backup" }
func (c RemovedCorrupted) id() (string, string) { return "RemovedCorrupted", c.RelPath }
func (c RemovedCorrupted) Apply(_, coldRoot string, idx *index.Index, _ progress.Bar) error {
	if err := rm(coldRoot, c.RelPath); err != nil {
		return err
	}
	return idx.Delete(c.RelPath)
}

// Appeared: H0 C1 I0. Manually added to cold, never indexed.
type Appeared struct {
	Base
}

func (c Appeared) HasBeen() string { return "manually added to cold backup (but not the index)" }
func (c Appeared) Action() string  { return "delete it from cold backup" }
func (c Appeared) id() (string, string) { return "Appeared", c.RelPath }
func (c Appeared) Apply(_, coldRoot string, _ *index.Index, _ progress.Bar) error {
	return rm(coldRoot, c.RelPath)
}

// RemovedLost: H0 C0 I1. Gone from both hot and cold; only the index
// remembers it.
type RemovedLost struct {
	Base
}

func (c RemovedLost) HasBeen() string { return "removed from hot and lost from cold backup" }
func (c RemovedLost) Action() string  { return "remove it from the index" }
func (c RemovedLost) id() (string, string) { return "RemovedLost", c.RelPath }
func (c RemovedLost) Apply(_, _ string, idx *index.Index, _ progress.Bar) error {
	return idx.Delete(c.RelPath)
}

// Moved is synthesized by reconcile.FindMoveds from a paired Added and
// Removed that share a checksum (spec.md §4.G). Applying it renames the
// cold entry instead of copying, and its index update covers both the
// source and destination paths in one step.
type Moved struct {
	Base        // RelPath is the destination path
	SrcPath     string
	New         Payload
	Superseded  Removed // kept for inspection/reporting only; not re-applied
}

func (c Moved) HasBeen() string { return fmt.Sprintf("moved from %s", c.SrcPath) }
func (c Moved) Action() string  { return "rename it within cold backup" }
func (c Moved) id() (string, string) { return "Moved", c.RelPath }
func (c Moved) Apply(_, coldRoot string, idx *index.Index, _ progress.Bar) error {
	src := filepath.Join(coldRoot, c.SrcPath)
	dst := filepath.Join(coldRoot, c.RelPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("change: mkdir for %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("change: renaming %s to %s: %w", src, dst, err)
	}
	if err := c.New.apply(idx, c.RelPath); err != nil {
		return err
	}
	return idx.Delete(c.SrcPath)
}

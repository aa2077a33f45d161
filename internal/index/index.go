// Package index implements the persistent, tree-shaped checksum index
// that serves as the third witness in hot/cold reconciliation (spec.md
// §3, §4.D): a recursive node with disjoint file and directory children,
// backed by a textual on-disk format with a JSON metadata header.
package index

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ervinoro/dintact/internal/checksum"
)

const (
	// FileName is the name of the index file inside the cold root.
	FileName = "index.txt"

	// headerPrefix begins the mandatory first line of the index file.
	headerPrefix = "# dintact index "

	formatVersion  = 1
	algorithmXXH128 = "XXH128"
	codingUTF8      = "utf8"
)

// Sentinel errors for the kinds spec.md §7 assigns to index loading and
// mutation.
var (
	// ErrHeaderMissing is returned when the index file exists but its
	// first non-blank line is not a valid header.
	ErrHeaderMissing = errors.New("index: missing or malformed header line")
	// ErrIncompatible is returned when the header's version, algorithm,
	// or coding field does not match what this build expects.
	ErrIncompatible = errors.New("index: incompatible version, algorithm, or coding")
	// ErrNameCollision is returned when a set would make the same
	// path component both a file leaf and a directory node.
	ErrNameCollision = errors.New("index: file/directory name collision")
	// ErrNotFound is returned by Get/Delete for a path with no entry.
	ErrNotFound = errors.New("index: path not found")
)

// Meta holds the parsed header metadata.
type Meta struct {
	Version   int    `json:"version"`
	Algorithm string `json:"algorithm"`
	Coding    string `json:"coding"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Index is a recursive node mapping single path components to either a
// Checksum (file leaf) or a nested *Index (directory). A component name
// appears in at most one of Files or Dirs.
type Index struct {
	Meta  Meta
	Files map[string]checksum.Sum
	Dirs  map[string]*Index

	// path is the absolute path to the backing index.txt, set only on the
	// root Index returned by Load; empty on every sub-index.
	path string
}

// New returns an empty, freshly-initialized Index (not backed by any
// file), with metadata set the way a brand-new index is initialized.
func New() *Index {
	return &Index{
		Meta:  Meta{Version: formatVersion, Algorithm: algorithmXXH128, Coding: codingUTF8},
		Files: make(map[string]checksum.Sum),
		Dirs:  make(map[string]*Index),
	}
}

// Load reads <coldRoot>/index.txt. If the file does not exist, Load
// creates it empty and returns a freshly-initialized Index (spec.md
// §4.D). If it exists, its header is validated against formatVersion,
// algorithmXXH128, and codingUTF8; a mismatch returns ErrIncompatible,
// and a missing/malformed header returns ErrHeaderMissing.
func Load(coldRoot string) (*Index, error) {
	path := filepath.Join(coldRoot, FileName)

	//nolint:gosec // G304: coldRoot is caller-controlled, the backup root being reconciled
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		idx := New()
		idx.path = path
		if err := idx.Store(); err != nil {
			return nil, fmt.Errorf("index: creating empty index: %w", err)
		}
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: opening %s: %w", path, err)
	}
	defer f.Close()

	idx := New()
	idx.path = path

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	headerSeen := false
	for scanner.Scan() {
		line := scanner.Text()
		if !headerSeen {
			if !strings.HasPrefix(line, headerPrefix) {
				if line == "" {
					continue
				}
				return nil, ErrHeaderMissing
			}
			var meta Meta
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, headerPrefix)), &meta); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrHeaderMissing, err)
			}
			if meta.Version != formatVersion || meta.Algorithm != algorithmXXH128 || meta.Coding != codingUTF8 {
				return nil, ErrIncompatible
			}
			idx.Meta = meta
			headerSeen = true
			continue
		}

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sep := strings.Index(line, "  ")
		if sep < 0 {
			return nil, fmt.Errorf("index: malformed body line %q", line)
		}
		sum, relPath := line[:sep], line[sep+2:]
		if err := idx.Set(relPath, checksum.Sum(sum)); err != nil {
			return nil, fmt.Errorf("index: loading %q: %w", relPath, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("index: reading %s: %w", path, err)
	}
	if !headerSeen {
		return nil, ErrHeaderMissing
	}
	return idx, nil
}

// Store rewrites the backing index file from the in-memory state,
// updating created_at to the current time. Store may only be called on
// the root Index returned by Load or New with a path assigned (an index
// built with New needs SetPath before its first Store).
func (idx *Index) Store() error {
	if idx.path == "" {
		return fmt.Errorf("index: Store called on an index with no backing path")
	}

	idx.Meta.CreatedAt = time.Now().Format(time.RFC3339)

	tmp := idx.path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // G304: idx.path is set from a caller-controlled cold root
	if err != nil {
		return fmt.Errorf("index: creating %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	headerJSON, err := json.Marshal(idx.Meta)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("index: marshaling header: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s%s\n", headerPrefix, headerJSON); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("index: writing header: %w", err)
	}

	for _, p := range idx.Iter() {
		sum, err := idx.GetChecksum(p)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("index: internal error iterating %q: %w", p, err)
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", sum, filepath.ToSlash(p)); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("index: writing body line: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("index: flushing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("index: closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("index: renaming %s to %s: %w", tmp, idx.path, err)
	}
	return nil
}

// SetPath assigns the backing file path for an in-memory Index that was
// not produced by Load (used by tests that build an index with New).
func (idx *Index) SetPath(coldRoot string) { idx.path = filepath.Join(coldRoot, FileName) }

// splitFirst splits a relative path into its first component and the
// remainder, returning ok=false if p has only one component.
func splitFirst(p string) (head, rest string, ok bool) {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i], p[i+1:], true
	}
	return p, "", false
}

// Contains reports whether p is present as a file leaf or directory node.
func (idx *Index) Contains(p string) bool {
	if p == "" {
		return true
	}
	head, rest, multi := splitFirst(p)
	if !multi {
		_, isFile := idx.Files[head]
		_, isDir := idx.Dirs[head]
		return isFile || isDir
	}
	sub, ok := idx.Dirs[head]
	return ok && sub.Contains(rest)
}

// GetChecksum returns the checksum recorded for file path p.
func (idx *Index) GetChecksum(p string) (checksum.Sum, error) {
	head, rest, multi := splitFirst(p)
	if multi {
		sub, ok := idx.Dirs[head]
		if !ok {
			return "", ErrNotFound
		}
		return sub.GetChecksum(rest)
	}
	if sum, ok := idx.Files[head]; ok {
		return sum, nil
	}
	if _, ok := idx.Dirs[head]; ok {
		return "", fmt.Errorf("index: %q is a directory, not a file", p)
	}
	return "", ErrNotFound
}

// GetDir returns the sub-index for directory path p, or nil if absent.
func (idx *Index) GetDir(p string) *Index {
	if p == "" {
		return idx
	}
	head, rest, multi := splitFirst(p)
	sub, ok := idx.Dirs[head]
	if !ok {
		return nil
	}
	if !multi {
		return sub
	}
	return sub.GetDir(rest)
}

// Set records sum as the checksum for file path p, creating any missing
// intermediate directory nodes. It returns ErrNameCollision if p (or an
// ancestor of p) already names a node of the other kind.
func (idx *Index) Set(p string, sum checksum.Sum) error {
	head, rest, multi := splitFirst(p)
	if !multi {
		if _, isDir := idx.Dirs[head]; isDir {
			return fmt.Errorf("%w: %q", ErrNameCollision, p)
		}
		idx.Files[head] = sum
		return nil
	}
	if _, isFile := idx.Files[head]; isFile {
		return fmt.Errorf("%w: %q", ErrNameCollision, p)
	}
	sub, ok := idx.Dirs[head]
	if !ok {
		sub = New()
		idx.Dirs[head] = sub
	}
	return sub.Set(rest, sum)
}

// SetDir replaces (or creates) the sub-index at directory path p wholesale
// — used when applying a recursively-hashed subtree in one step (Added /
// ModifiedLost / AddedAppeared over a directory).
func (idx *Index) SetDir(p string, sub *Index) error {
	if p == "" {
		idx.Files = sub.Files
		idx.Dirs = sub.Dirs
		return nil
	}
	head, rest, multi := splitFirst(p)
	if _, isFile := idx.Files[head]; isFile {
		return fmt.Errorf("%w: %q", ErrNameCollision, p)
	}
	if !multi {
		idx.Dirs[head] = sub
		return nil
	}
	child, ok := idx.Dirs[head]
	if !ok {
		child = New()
		idx.Dirs[head] = child
	}
	return child.SetDir(rest, sub)
}

// Delete removes path p (file leaf or directory node). Deleting a
// non-existent path returns ErrNotFound. Empty directory nodes are
// pruned eagerly after a deletion leaves them empty.
func (idx *Index) Delete(p string) error {
	head, rest, multi := splitFirst(p)
	if !multi {
		if _, ok := idx.Files[head]; ok {
			delete(idx.Files, head)
			return nil
		}
		if _, ok := idx.Dirs[head]; ok {
			delete(idx.Dirs, head)
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNotFound, p)
	}
	sub, ok := idx.Dirs[head]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, p)
	}
	if err := sub.Delete(rest); err != nil {
		return err
	}
	if len(sub.Files) == 0 && len(sub.Dirs) == 0 {
		delete(idx.Dirs, head)
	}
	return nil
}

// Len returns the total count of file leaves in the whole subtree.
func (idx *Index) Len() int {
	n := len(idx.Files)
	for _, d := range idx.Dirs {
		n += d.Len()
	}
	return n
}

// Iter returns every file leaf path in the subtree, each exactly once.
// At every level the subdirectories are visited first, in name order,
// and then that level's own files are listed, in name order.
func (idx *Index) Iter() []string {
	var out []string
	idx.iter("", &out)
	return out
}

func (idx *Index) iter(prefix string, out *[]string) {
	dirNames := make([]string, 0, len(idx.Dirs))
	for name := range idx.Dirs {
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)
	for _, name := range dirNames {
		idx.Dirs[name].iter(prefix+name+"/", out)
	}

	fileNames := make([]string, 0, len(idx.Files))
	for name := range idx.Files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)
	for _, name := range fileNames {
		*out = append(*out, prefix+name)
	}
}

// IterDirEntry is one immediate child reported by IterDir.
type IterDirEntry struct {
	Name  string
	IsDir bool
}

// IterDir returns the immediate children of the index (directories
// first, then files, each name-sorted).
func (idx *Index) IterDir() []IterDirEntry {
	dirNames := make([]string, 0, len(idx.Dirs))
	for name := range idx.Dirs {
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)

	fileNames := make([]string, 0, len(idx.Files))
	for name := range idx.Files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	out := make([]IterDirEntry, 0, len(dirNames)+len(fileNames))
	for _, n := range dirNames {
		out = append(out, IterDirEntry{Name: n, IsDir: true})
	}
	for _, n := range fileNames {
		out = append(out, IterDirEntry{Name: n, IsDir: false})
	}
	return out
}

// Equal reports structural equality of two indexes: same file leaves with
// the same checksums, same directory names with structurally equal
// sub-indexes. Metadata and backing path are not compared.
func Equal(a, b *Index) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Files) != len(b.Files) || len(a.Dirs) != len(b.Dirs) {
		return false
	}
	for name, sum := range a.Files {
		if b.Files[name] != sum {
			return false
		}
	}
	for name, sub := range a.Dirs {
		bsub, ok := b.Dirs[name]
		if !ok || !Equal(sub, bsub) {
			return false
		}
	}
	return true
}

// ReverseMap computes checksum -> sorted list of relative paths, for
// duplicate reporting (spec.md §4.G find_deduplications). It is built on
// demand, never cached, since it is only used by one post-processing pass
// per reconciliation.
func (idx *Index) ReverseMap() map[checksum.Sum][]string {
	rev := make(map[checksum.Sum][]string)
	for _, p := range idx.Iter() {
		sum, err := idx.GetChecksum(p)
		if err != nil {
			continue
		}
		rev[sum] = append(rev[sum], p)
	}
	for _, paths := range rev {
		sort.Strings(paths)
	}
	return rev
}

// Package walk enumerates the "relevant" files under a root directory: a
// single-threaded, depth-first, cooperative walk that honors an
// ignore.Rules stack inherited additively down each branch (spec.md §4.C).
package walk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ervinoro/dintact/internal/ignore"
)

// IndexFileName is always ignored, regardless of .gitignore content
// (spec.md §4.B: "The root index.txt is always ignored").
const IndexFileName = "index.txt"

// Entry is one yielded file: its path relative to the walk root
// (slash-separated) and its absolute filesystem path.
type Entry struct {
	RelPath string
	AbsPath string
	Size    int64
}

// Child is one immediate, relevant child of a directory, as reported by
// ListChildren.
type Child struct {
	Name    string // single path component
	AbsPath string
	IsDir   bool
	Size    int64 // file size; meaningless for directories
}

// Walk enumerates every relevant regular file under root, in a stable,
// name-sorted order at each directory level, seeding a fresh ignore rule
// stack. An empty directory (or one whose transitive contents are
// entirely ignored) never appears, matching spec.md's "relevant path"
// definition. Unknown file types are reported as errors.
func Walk(root string) ([]Entry, error) {
	return WalkFrom(root, "", nil)
}

// WalkFrom behaves like Walk but starts the recursion at absDir (whose
// path relative to some outer root is relPrefix, "" or trailing-slash
// terminated) with an already-accumulated rule stack. It is used by the
// tree-diff to summarize a one-sided subtree (an Added or Removed
// directory) into a flat file list, without re-discovering the
// .gitignore rules above absDir.
func WalkFrom(absDir, relPrefix string, rules ignore.Rules) ([]Entry, error) {
	var out []Entry
	if err := walkInto(absDir, relPrefix, rules, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkInto(absDir, relPrefix string, rules ignore.Rules, out *[]Entry) error {
	rules = ignore.Load(rules, absDir, relPrefix)

	children, err := ListChildren(absDir, relPrefix, rules)
	if err != nil {
		return err
	}

	for _, c := range children {
		if c.IsDir {
			if err := walkInto(c.AbsPath, relPrefix+c.Name+"/", rules, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, Entry{RelPath: relPrefix + c.Name, AbsPath: c.AbsPath, Size: c.Size})
	}
	return nil
}

// ListChildren returns the immediate, relevant children of absDir (whose
// path relative to the walk root is relPrefix), already filtered by
// rules, in name-sorted order. A child directory is relevant only if it
// contains at least one relevant descendant file; ListChildren performs a
// bounded look-ahead to decide this without yielding the descendants
// themselves.
//
// rules must already include any .gitignore discovered at or above
// absDir (callers typically pass the result of ignore.Load for absDir).
func ListChildren(absDir, relPrefix string, rules ignore.Rules) ([]Child, error) {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("walk: reading directory %s: %w", absDir, err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)

	var out []Child
	for _, name := range names {
		if relPrefix == "" && name == IndexFileName {
			continue
		}

		absPath := filepath.Join(absDir, name)
		relPath := relPrefix + name

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("walk: stat %s: %w", absPath, err)
		}

		switch {
		case info.Mode().IsRegular():
			if ignore.IsIgnored(rules, relPath, false) {
				continue
			}
			out = append(out, Child{Name: name, AbsPath: absPath, IsDir: false, Size: info.Size()})
		case info.IsDir():
			if ignore.IsIgnored(rules, relPath, true) {
				continue
			}
			relevant, err := hasRelevantDescendant(absPath, relPath+"/", rules)
			if err != nil {
				return nil, err
			}
			if relevant {
				out = append(out, Child{Name: name, AbsPath: absPath, IsDir: true})
			}
		default:
			return nil, fmt.Errorf("walk: unsupported file type at %s: %s", absPath, info.Mode())
		}
	}
	return out, nil
}

// hasRelevantDescendant reports whether absDir contains at least one
// relevant file anywhere in its subtree (spec.md §4.B: "A directory is
// relevant only if it contains at least one relevant descendant file").
func hasRelevantDescendant(absDir, relPrefix string, rules ignore.Rules) (bool, error) {
	rules = ignore.Load(rules, absDir, relPrefix)
	children, err := ListChildren(absDir, relPrefix, rules)
	if err != nil {
		return false, err
	}
	for _, c := range children {
		if !c.IsDir {
			return true, nil
		}
		relevant, err := hasRelevantDescendant(c.AbsPath, relPrefix+c.Name+"/", rules)
		if err != nil {
			return false, err
		}
		if relevant {
			return true, nil
		}
	}
	return false, nil
}

// TotalSize sums the Size of every entry.
func TotalSize(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}

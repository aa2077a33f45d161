// Package reconcile implements the three-way hot/cold/index comparison
// (spec.md §4.F) and the post-processing passes that turn the raw
// per-path diff into the final reported change set (spec.md §4.G).
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ervinoro/dintact/internal/change"
	"github.com/ervinoro/dintact/internal/checksum"
	"github.com/ervinoro/dintact/internal/ignore"
	"github.com/ervinoro/dintact/internal/index"
	"github.com/ervinoro/dintact/internal/progress"
	"github.com/ervinoro/dintact/internal/walk"
)

// ErrNameCollision is returned when the same relative path is a regular
// file on one side of the comparison and a directory on another
// (hot vs. cold, or either vs. what the index records).
var ErrNameCollision = errors.New("reconcile: file/directory name collision")

// WalkTrees recurses over hotRoot and coldRoot together, guided by idx
// (the cold index loaded before reconciliation began), and returns every
// Change it finds. bar is advanced by the number of content bytes read
// while hashing or comparing; it is not advanced for changes whose
// detection requires no read (Appeared, RemovedLost).
func WalkTrees(ctx context.Context, hotRoot, coldRoot string, idx *index.Index, bar progress.Bar, log *slog.Logger) ([]change.Change, error) {
	return walkTrees(ctx, "", indexEntry{kind: kindDir, sub: idx}, hotRoot, coldRoot, nil, nil, bar, log)
}

type entryKind int

const (
	kindAbsent entryKind = iota
	kindFile
	kindDir
)

// indexEntry is what the cold index records for a path: absent, a file
// checksum, or a directory sub-index.
type indexEntry struct {
	kind entryKind
	sum  checksum.Sum
	sub  *index.Index
}

func lookupChild(sub *index.Index, name string) indexEntry {
	if sub == nil {
		return indexEntry{kind: kindAbsent}
	}
	if sum, ok := sub.Files[name]; ok {
		return indexEntry{kind: kindFile, sum: sum}
	}
	if d, ok := sub.Dirs[name]; ok {
		return indexEntry{kind: kindDir, sub: d}
	}
	return indexEntry{kind: kindAbsent}
}

func (e indexEntry) payload() change.Payload {
	if e.kind == kindDir {
		return change.Payload{Dir: e.sub}
	}
	return change.Payload{Checksum: e.sum}
}

// payloadEqual reports whether a freshly-computed Payload matches what
// the index recorded for the same path.
func payloadEqual(p change.Payload, e indexEntry) bool {
	switch e.kind {
	case kindFile:
		return p.Dir == nil && p.Checksum == e.sum
	case kindDir:
		return p.Dir != nil && index.Equal(p.Dir, e.sub)
	default:
		return false
	}
}

func walkTrees(ctx context.Context, relPath string, idxEntry indexEntry, hotAbs, coldAbs string, hotRules, coldRules ignore.Rules, bar progress.Bar, log *slog.Logger) ([]change.Change, error) {
	hotInfo, err := os.Stat(hotAbs)
	if err != nil {
		return nil, fmt.Errorf("reconcile: stat %s: %w", hotAbs, err)
	}
	coldInfo, err := os.Stat(coldAbs)
	if err != nil {
		return nil, fmt.Errorf("reconcile: stat %s: %w", coldAbs, err)
	}

	switch {
	case !hotInfo.IsDir() && !coldInfo.IsDir():
		if idxEntry.kind == kindDir {
			return nil, fmt.Errorf("%w: %q is a directory in the index but a file in hot and cold", ErrNameCollision, relPath)
		}
		return diffFile(ctx, relPath, idxEntry, hotAbs, coldAbs, hotInfo.Size(), bar, log)

	case hotInfo.IsDir() != coldInfo.IsDir():
		return nil, fmt.Errorf("%w: %q is a file on one side and a directory on the other", ErrNameCollision, relPath)

	case idxEntry.kind == kindFile:
		return nil, fmt.Errorf("%w: %q is a file in the index but a directory in hot and cold", ErrNameCollision, relPath)

	default:
		return diffDir(ctx, relPath, idxEntry, hotAbs, coldAbs, hotRules, coldRules, bar, log)
	}
}

// diffFile implements the file-case truth table of spec.md §4.F.
func diffFile(ctx context.Context, relPath string, idxEntry indexEntry, hotAbs, coldAbs string, size int64, bar progress.Bar, log *slog.Logger) ([]change.Change, error) {
	hotHash, coldHash, equal := checksum.CompareFiles(ctx, hotAbs, coldAbs, bar, log)
	base := change.Base{RelPath: relPath, ByteSize: size}

	if idxEntry.kind == kindAbsent {
		if equal {
			return []change.Change{change.AddedCopied{Base: base, New: change.Payload{Checksum: hotHash}}}, nil
		}
		return []change.Change{change.AddedAppeared{Base: base, New: change.Payload{Checksum: hotHash}}}, nil
	}

	coldEq := coldHash == idxEntry.sum
	hotEq := hotHash == idxEntry.sum

	switch {
	case coldEq && hotEq && equal:
		return nil, nil
	case (!coldEq || !hotEq) && equal:
		// Hot and cold agree with each other but at least one drifted from
		// the index: a manual re-copy that never updated the index.
		return []change.Change{change.ModifiedCopied{Base: base, New: change.Payload{Checksum: hotHash}}}, nil
	case coldEq && !hotEq && !equal:
		return []change.Change{change.Modified{Base: base, New: change.Payload{Checksum: hotHash}}}, nil
	case !coldEq && hotEq && !equal:
		return []change.Change{change.Corrupted{Base: base}}, nil
	default:
		// !coldEq && !hotEq && !equal, plus any checksum-collision
		// combination the truth table does not list: both sides have
		// drifted from the index, so treat it the same as ModifiedCorrupted.
		return []change.Change{change.ModifiedCorrupted{Base: base, New: change.Payload{Checksum: hotHash}}}, nil
	}
}

func diffDir(ctx context.Context, relPath string, idxEntry indexEntry, hotAbs, coldAbs string, hotRules, coldRules ignore.Rules, bar progress.Bar, log *slog.Logger) ([]change.Change, error) {
	relPrefix := ""
	if relPath != "" {
		relPrefix = relPath + "/"
	}

	hotRules = ignore.Load(hotRules, hotAbs, relPrefix)
	coldRules = ignore.Load(coldRules, coldAbs, relPrefix)

	hotChildren, err := walk.ListChildren(hotAbs, relPrefix, hotRules)
	if err != nil {
		return nil, err
	}
	coldChildren, err := walk.ListChildren(coldAbs, relPrefix, coldRules)
	if err != nil {
		return nil, err
	}

	hotByName := make(map[string]walk.Child, len(hotChildren))
	for _, c := range hotChildren {
		hotByName[c.Name] = c
	}
	coldByName := make(map[string]walk.Child, len(coldChildren))
	for _, c := range coldChildren {
		coldByName[c.Name] = c
	}

	var indexNames []string
	if idxEntry.sub != nil {
		for _, e := range idxEntry.sub.IterDir() {
			indexNames = append(indexNames, e.Name)
		}
	}

	var out []change.Change

	for name, hc := range hotByName {
		if _, inCold := coldByName[name]; inCold {
			continue
		}
		cs, err := hotOnly(ctx, relPrefix+name, hc, lookupChild(idxEntry.sub, name), hotRules, bar, log)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}

	for name, cc := range coldByName {
		if _, inHot := hotByName[name]; inHot {
			continue
		}
		cs, err := coldOnly(ctx, relPrefix+name, cc, lookupChild(idxEntry.sub, name), coldRules, bar, log)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}

	for _, name := range indexNames {
		_, inHot := hotByName[name]
		_, inCold := coldByName[name]
		if inHot || inCold {
			continue
		}
		out = append(out, change.RemovedLost{Base: change.Base{RelPath: relPrefix + name}})
	}

	for name, hc := range hotByName {
		cc, ok := coldByName[name]
		if !ok {
			continue
		}
		sub, err := walkTrees(ctx, relPrefix+name, lookupChild(idxEntry.sub, name), hc.AbsPath, cc.AbsPath, hotRules, coldRules, bar, log)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}

	return out, nil
}

// hotOnly handles a child present in hot but not in cold: the outermost
// enclosing Added/Lost/ModifiedLost for the whole subtree at c, per
// spec.md §4.F's "Hot-only region" rule.
func hotOnly(ctx context.Context, relPath string, c walk.Child, idxEntry indexEntry, hotRules ignore.Rules, bar progress.Bar, log *slog.Logger) ([]change.Change, error) {
	payload, size, err := hashSide(ctx, relPath, c, hotRules, bar, log)
	if err != nil {
		return nil, err
	}
	base := change.Base{RelPath: relPath, ByteSize: size}

	switch {
	case idxEntry.kind == kindAbsent:
		return []change.Change{change.Added{Base: base, New: payload}}, nil
	case payloadEqual(payload, idxEntry):
		return []change.Change{change.Lost{Base: base}}, nil
	default:
		return []change.Change{change.ModifiedLost{Base: base, New: payload}}, nil
	}
}

// coldOnly handles a child present in cold but not in hot: Appeared (if
// the index never recorded it) or Removed/RemovedCorrupted, per
// spec.md §4.F's "Cold-only region" rule.
func coldOnly(ctx context.Context, relPath string, c walk.Child, idxEntry indexEntry, coldRules ignore.Rules, bar progress.Bar, log *slog.Logger) ([]change.Change, error) {
	base := change.Base{RelPath: relPath}

	if idxEntry.kind == kindAbsent {
		return []change.Change{change.Appeared{Base: base}}, nil
	}

	payload, _, err := hashSide(ctx, relPath, c, coldRules, bar, log)
	if err != nil {
		return nil, err
	}
	if payloadEqual(payload, idxEntry) {
		return []change.Change{change.Removed{Base: base, OldValue: idxEntry.payload()}}, nil
	}
	return []change.Change{change.RemovedCorrupted{Base: base, OldValue: idxEntry.payload()}}, nil
}

// hashSide reduces one side's subtree at c (file or directory) to a
// Payload plus its total byte size, recursively hashing directories and
// respecting rules for any nested .gitignore files along the way.
func hashSide(ctx context.Context, relPath string, c walk.Child, rules ignore.Rules, bar progress.Bar, log *slog.Logger) (change.Payload, int64, error) {
	if !c.IsDir {
		sum := checksum.HashFile(ctx, c.AbsPath, bar, log)
		return change.Payload{Checksum: sum}, c.Size, nil
	}
	sub, size, err := hashSubtree(ctx, c.AbsPath, relPath+"/", rules, bar, log)
	if err != nil {
		return change.Payload{}, 0, err
	}
	return change.Payload{Dir: sub}, size, nil
}

func hashSubtree(ctx context.Context, absPath, relPrefix string, rules ignore.Rules, bar progress.Bar, log *slog.Logger) (*index.Index, int64, error) {
	entries, err := walk.WalkFrom(absPath, relPrefix, rules)
	if err != nil {
		return nil, 0, err
	}
	sub := index.New()
	for _, e := range entries {
		sum := checksum.HashFile(ctx, e.AbsPath, bar, log)
		if err := sub.Set(strings.TrimPrefix(e.RelPath, relPrefix), sum); err != nil {
			return nil, 0, fmt.Errorf("reconcile: hashing subtree %s: %w", absPath, err)
		}
	}
	return sub, walk.TotalSize(entries), nil
}


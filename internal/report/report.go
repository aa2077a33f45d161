// Package report renders a reconciliation's change list as Markdown,
// and optionally as a standalone HTML fragment, for the audit trail a
// backup tool's users expect alongside the interactive prompts
// (spec.md is silent on reporting; this supplements it).
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/yuin/goldmark"

	"github.com/ervinoro/dintact/internal/change"
)

// Markdown renders changes as a Markdown document: a heading, a
// generation timestamp, and one bullet per change grouped by variant,
// each naming the path, what happened, and what applying it will do
// (or did, if applied is true).
func Markdown(title string, changes []change.Change, applied bool) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "_Generated %s_\n\n", generatedAt())

	if len(changes) == 0 {
		buf.WriteString("No changes found.\n")
		return buf.String()
	}

	grouped := groupByVariant(changes)
	variants := make([]string, 0, len(grouped))
	for v := range grouped {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	verb := "would be applied"
	if applied {
		verb = "applied"
	}

	for _, v := range variants {
		fmt.Fprintf(&buf, "## %s\n\n", v)
		for _, c := range grouped[v] {
			fmt.Fprintf(&buf, "- `%s` — %s; %s (%s)\n", c.Path(), c.HasBeen(), c.Action(), verb)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// generatedAt is a seam so tests can produce deterministic output;
// production code always uses the wall clock.
var generatedAt = func() string { return time.Now().Format(time.RFC3339) }

func groupByVariant(changes []change.Change) map[string][]change.Change {
	out := make(map[string][]change.Change)
	for _, c := range changes {
		v := variantName(c)
		out[v] = append(out[v], c)
	}
	return out
}

func variantName(c change.Change) string {
	switch c.(type) {
	case change.AddedCopied:
		return "AddedCopied"
	case change.ModifiedCopied:
		return "ModifiedCopied"
	case change.Modified:
		return "Modified"
	case change.Corrupted:
		return "Corrupted"
	case change.ModifiedCorrupted:
		return "ModifiedCorrupted"
	case change.AddedAppeared:
		return "AddedAppeared"
	case change.Added:
		return "Added"
	case change.ModifiedLost:
		return "ModifiedLost"
	case change.Lost:
		return "Lost"
	case change.Removed:
		return "Removed"
	case change.RemovedCorrupted:
		return "RemovedCorrupted"
	case change.Appeared:
		return "Appeared"
	case change.RemovedLost:
		return "RemovedLost"
	case change.Moved:
		return "Moved"
	default:
		return "Unknown"
	}
}

// HTML converts a Markdown report into a standalone HTML fragment.
func HTML(w io.Writer, markdown string) error {
	return goldmark.Convert([]byte(markdown), w)
}

// Package confirm prompts the user for the yes/no decisions the sync
// driver needs (spec.md §4.H steps 7-8): one per proposed change, then
// one for the batch as a whole. Every prompt defaults to No.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/pterm/pterm"

	"github.com/ervinoro/dintact/internal/change"
	"github.com/ervinoro/dintact/internal/termcolor"
)

// Confirmer asks yes/no questions on stdin/stdout, using pterm's
// interactive confirm widget when stdin is a terminal and a plain
// bufio scanner otherwise (so scripted or piped runs still work: the
// fallback reads one line, and "y" or "yes" in any case means yes while
// anything else, an empty line included, means No).
type Confirmer struct {
	interactive bool
	in          *bufio.Reader
	out         io.Writer
}

// New builds a Confirmer reading from stdin and writing to stdout.
func New() *Confirmer {
	return newConfirmer(os.Stdin, os.Stdout, termcolor.IsTerminal(os.Stdin.Fd()))
}

func newConfirmer(in io.Reader, out io.Writer, interactive bool) *Confirmer {
	return &Confirmer{interactive: interactive, in: bufio.NewReader(in), out: out}
}

// NewNonInteractive builds a Confirmer that always uses the plain
// scanner fallback, regardless of whether stdin is attached to a
// terminal. Callers driving a Confirmer from a script or a test harness
// use this instead of New.
func NewNonInteractive(in io.Reader, out io.Writer) *Confirmer {
	return newConfirmer(in, out, false)
}

// Change asks whether to apply c, describing what was found and what
// applying it will do.
func (cf *Confirmer) Change(c change.Change) bool {
	return cf.ask(fmt.Sprintf("%s has been %s. %s?", c.Path(), c.HasBeen(), capitalize(c.Action())))
}

// Summary prints a bullet list of the changes the user is about to be
// asked to commit to, one line per change, before the batch prompt.
func (cf *Confirmer) Summary(actions []change.Change) {
	if len(actions) == 0 {
		return
	}
	items := make([]string, len(actions))
	for i, c := range actions {
		items[i] = fmt.Sprintf("%s (%s)", c.Path(), c.HasBeen())
	}
	if cf.interactive {
		bullets := make([]pterm.BulletListItem, len(items))
		for i, s := range items {
			bullets[i] = pterm.BulletListItem{Level: 0, Text: s}
		}
		_ = pterm.DefaultBulletList.WithItems(bullets).Render()
		return
	}
	for _, s := range items {
		fmt.Fprintln(cf.out, "-", s)
	}
}

// Batch asks whether to commence applying n actions.
func (cf *Confirmer) Batch(n int) bool {
	return cf.ask(fmt.Sprintf("Commence %d action(s)?", n))
}

func (cf *Confirmer) ask(prompt string) bool {
	if cf.interactive {
		result, _ := pterm.DefaultInteractiveConfirm.
			WithDefaultText(prompt).
			WithDefaultValue(false).
			Show()
		return result
	}

	fmt.Fprintf(cf.out, "%s [y/N] ", prompt)
	line, _ := cf.in.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

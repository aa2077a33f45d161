package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ervinoro/dintact/internal/confirm"
	"github.com/ervinoro/dintact/internal/report"
	"github.com/ervinoro/dintact/internal/sync"
)

func runSync(args []string, log *slog.Logger) int {
	htmlOut, positional := extractHTMLFlag(args)
	if len(positional) != 2 {
		fmt.Fprintln(os.Stderr, "usage: dintact sync [--html <file>] <hot_dir> <cold_dir>")
		return 2
	}
	hotRoot, coldRoot := positional[0], positional[1]

	driver := sync.NewDriver(confirm.New(), log)
	if htmlOut != "" {
		f, err := os.Create(htmlOut) // #nosec G304 -- path is an explicit CLI argument
		if err != nil {
			fmt.Fprintf(os.Stderr, "dintact: opening report file: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()
		driver.ReportOut = &htmlReportWriter{w: f}
	}

	_, err := driver.Sync(context.Background(), hotRoot, coldRoot)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, sync.ErrRootMissing):
		fmt.Fprintf(os.Stderr, "dintact: %v\n", err)
		return 2
	case errors.Is(err, sync.ErrUserAbort):
		fmt.Fprintln(os.Stderr, "dintact: aborted")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "dintact: %v\n", err)
		return 1
	}
}

// htmlReportWriter adapts an os.File into an io.Writer that converts
// the Markdown report handed to it by sync.Driver into the HTML
// fragment --html asked for.
type htmlReportWriter struct {
	w *os.File
}

func (h *htmlReportWriter) Write(p []byte) (int, error) {
	if err := report.HTML(h.w, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

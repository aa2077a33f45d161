package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ervinoro/dintact/internal/report"
	"github.com/ervinoro/dintact/internal/sync"
)

func runCheck(args []string, log *slog.Logger) int {
	htmlOut, positional := extractHTMLFlag(args)
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "usage: dintact check [--html <file>] <cold_dir>")
		return 2
	}
	coldRoot := positional[0]

	result, err := sync.Check(context.Background(), coldRoot, os.Stderr, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dintact: %v\n", err)
		return 1
	}

	fmt.Println(result.Summary())

	if htmlOut != "" {
		if err := writeCheckReport(htmlOut, result); err != nil {
			fmt.Fprintf(os.Stderr, "dintact: writing report: %v\n", err)
			return 1
		}
	}

	if !result.OK() {
		return 1
	}
	return 0
}

func writeCheckReport(path string, result sync.CheckResult) error {
	f, err := os.Create(path) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	title := "Check report"
	md := fmt.Sprintf("%s\n\n%s\n", title, result.Summary())
	return report.HTML(f, md)
}

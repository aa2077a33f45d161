package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/ervinoro/dintact/internal/cli"
	"github.com/ervinoro/dintact/internal/termcolor"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	gf, args := parseGlobalFlags(os.Args[1:])

	// --version is handled before app.Run because "--" prefixed args
	// would be treated as unknown commands by the dispatcher.
	for _, a := range args {
		if a == "--version" {
			printVersion()
			os.Exit(0)
		}
	}

	cw := termcolor.NewWriter(os.Stdout, gf.colorMode)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	app := cli.NewApp("dintact", version)
	app.Stderr = os.Stderr

	app.Register(&cli.Command{
		Name:       "check",
		Summary:    "Verify cold storage against the index",
		Usage:      "dintact check [--html <file>] <cold_dir>",
		Examples:   []string{"dintact check /mnt/backup", "dintact check --html report.html /mnt/backup"},
		NeedsRoots: false,
		Run:        func(args []string) int { return runCheck(args, log) },
	})

	app.Register(&cli.Command{
		Name:       "sync",
		Summary:    "Reconcile hot and cold directory trees",
		Usage:      "dintact sync [--html <file>] <hot_dir> <cold_dir>",
		Examples:   []string{"dintact sync ~/projects /mnt/backup", "dintact sync --html report.html ~/projects /mnt/backup"},
		NeedsRoots: true,
		Run:        func(args []string) int { return runSync(args, log) },
	})

	app.Register(&cli.Command{
		Name:       "watch",
		Summary:    "Watch the hot tree and report would-be changes",
		Usage:      "dintact watch <hot_dir> <cold_dir>",
		Examples:   []string{"dintact watch ~/projects /mnt/backup"},
		NeedsRoots: true,
		Run:        func(args []string) int { return runWatch(args, log) },
	})

	app.Register(&cli.Command{
		Name:       "serve",
		Summary:    "Run one reconciliation and serve a progress dashboard",
		Usage:      "dintact serve [--addr <host:port>] <hot_dir> <cold_dir>",
		Examples:   []string{"dintact serve ~/projects /mnt/backup", "dintact serve --addr :8080 ~/projects /mnt/backup"},
		NeedsRoots: true,
		Run:        func(args []string) int { return runServe(args, log) },
	})

	app.Register(&cli.Command{
		Name:    "update",
		Summary: "Update to the latest release",
		Usage:   "dintact update [--check]",
		Examples: []string{
			"dintact update",
			"dintact update --check",
		},
		Run: func(args []string) int { return runUpdate(args) },
	})

	app.Register(&cli.Command{
		Name:    "version",
		Summary: "Show version information",
		Usage:   "dintact version",
		Run:     func([]string) int { printVersion(); return 0 },
	})

	os.Exit(app.Run(args, cw))
}

func printVersion() {
	fmt.Printf("dintact %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

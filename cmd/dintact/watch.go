package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ervinoro/dintact/internal/watch"
)

func runWatch(args []string, log *slog.Logger) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: dintact watch <hot_dir> <cold_dir>")
		return 2
	}
	hotRoot, coldRoot := args[0], args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watch.New(hotRoot, coldRoot, log)
	fmt.Printf("watching %s, reporting against %s — press Ctrl-C to stop\n", hotRoot, coldRoot)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	reports := w.Reports()
	for {
		select {
		case rep, ok := <-reports:
			if !ok {
				reports = nil
				continue
			}
			if rep.Err != nil {
				fmt.Fprintf(os.Stderr, "dintact: %v\n", rep.Err)
				continue
			}
			if len(rep.Changes) == 0 {
				fmt.Println("no changes")
				continue
			}
			for _, c := range rep.Changes {
				fmt.Printf("%s has been %s\n", c.Path(), c.HasBeen())
			}
		case err := <-done:
			if err != nil {
				fmt.Fprintf(os.Stderr, "dintact: %v\n", err)
				return 1
			}
			return 0
		}
	}
}

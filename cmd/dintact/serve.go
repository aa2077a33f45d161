package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ervinoro/dintact/internal/statusweb"
)

func runServe(args []string, log *slog.Logger) int {
	addr := ":8080"
	var positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--addr" && i+1 < len(args) {
			addr = args[i+1]
			i++
			continue
		}
		positional = append(positional, args[i])
	}
	if len(positional) != 2 {
		fmt.Fprintln(os.Stderr, "usage: dintact serve [--addr <host:port>] <hot_dir> <cold_dir>")
		return 2
	}
	hotRoot, coldRoot := positional[0], positional[1]

	srv := statusweb.New(addr, hotRoot, coldRoot, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		srv.Shutdown()
	}()

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "dintact: %v\n", err)
		return 1
	}
	return 0
}

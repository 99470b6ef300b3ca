// Package main implements the filequeue command: it pushes jobs, runs
// workers against one or more channels, replays deadlettered jobs and
// maintains the relational schema.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/filequeue/internal/task"
)

func main() {
	registry := task.NewRegistry()
	if err := task.RegisterBuiltins(registry); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register built-in jobs: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(rootOptions{registry: registry})
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

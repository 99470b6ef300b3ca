package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/phrazzld/filequeue/internal/task"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type consumeOptions struct {
	once        bool
	verbose     bool
	channel     string
	channels    string
	maxJobs     int
	maxRuntime  time.Duration
	concurrency int
}

func newConsumeCmd(root *rootOptions) *cobra.Command {
	var o consumeOptions

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Run the queue worker",
		Long: "Poll the given channels in order and execute jobs. Failed jobs are re-pushed " +
			"to their channel after the retry delay and deadlettered once they reach the " +
			"maximum number of attempts. Limits apply to each worker loop.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				return runConsume(ctx, cmd, app, o)
			})
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.once, "once", false, "process a single job, or none if the queue is empty, then exit")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "print progress for every job")
	f.StringVar(&o.channel, "channel", "", "channel to consume")
	f.StringVar(&o.channels, "channels", "", "comma-separated channels to consume, in priority order")
	f.IntVar(&o.maxJobs, "max-jobs", 0, "exit after processing this many jobs (0 = no limit)")
	f.DurationVar(&o.maxRuntime, "max-runtime", 0, "exit after running this long, e.g. 1h (0 = no limit)")
	f.IntVar(&o.concurrency, "concurrency", 1, "number of worker loops to run in this process")
	return cmd
}

func runConsume(ctx context.Context, cmd *cobra.Command, app *application, o consumeOptions) error {
	if o.concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", o.concurrency)
	}

	qc := app.cfg.Queue
	wc := task.WorkerConfig{
		Channels:     task.ResolveChannels(o.channel, o.channels),
		Once:         o.once,
		Verbose:      o.verbose,
		MaxJobs:      o.maxJobs,
		MaxRuntime:   o.maxRuntime,
		MaxAttempts:  qc.MaxAttempts,
		RetryDelay:   qc.RetryDelay,
		PollInterval: qc.PollInterval,
		ClaimTimeout: qc.ClaimTimeout,
	}

	out := cmd.OutOrStdout()
	if o.concurrency > 1 {
		out = &syncWriter{w: out}
	}

	workers := make([]*task.Worker, o.concurrency)
	for i := range workers {
		w, err := task.NewWorker(app.manager, app.registry, wc, out,
			app.logger.With("worker_id", i))
		if err != nil {
			return err
		}
		workers[i] = w
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error { return w.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var total task.Stats
	for _, w := range workers {
		total = total.Add(w.Stats())
	}
	app.logger.Info("consume finished",
		"workers", len(workers),
		"processed", total.Processed,
		"succeeded", total.Succeeded,
		"retried", total.Retried,
		"deadlettered", total.Deadlettered,
		"skipped", total.Skipped)
	return nil
}

// syncWriter serializes writes from concurrent worker loops.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

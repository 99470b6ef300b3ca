package task

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/queue"
	"github.com/phrazzld/filequeue/internal/store"
)

// WorkerConfig holds configuration for a Worker.
type WorkerConfig struct {
	// Channels to poll, in priority order. Empty means the default channel.
	Channels []string

	// Once stops the worker after one job, or immediately if none is queued.
	Once bool

	// Verbose writes progress lines to the worker output.
	Verbose bool

	// MaxJobs stops the worker once this many jobs were processed.
	// Zero means no limit.
	MaxJobs int

	// MaxRuntime stops the worker once it has run this long.
	// Zero means no limit.
	MaxRuntime time.Duration

	// MaxAttempts is the number of failed executions after which a job is
	// deadlettered. Values below 1 use the default.
	MaxAttempts int

	// RetryDelay is the pause between a failed execution and its re-push.
	// Negative values use the default.
	RetryDelay time.Duration

	// PollInterval is the pause between polls when no job is available.
	// Zero or negative values use the default.
	PollInterval time.Duration

	// ClaimTimeout, when positive, makes the worker return claims older
	// than this to their channel before the first poll and again at most
	// once per timeout while idle.
	ClaimTimeout time.Duration
}

// DefaultWorkerConfig returns a WorkerConfig with reasonable defaults
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Channels:     []string{domain.DefaultChannel},
		MaxAttempts:  3,
		RetryDelay:   5 * time.Second,
		PollInterval: time.Second,
	}
}

// Worker polls channels and executes the jobs it claims.
type Worker struct {
	manager  *queue.Manager
	registry *Registry
	config   WorkerConfig
	out      *bufio.Writer
	logger   *slog.Logger
	stats    counters

	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	lastReclaim time.Time
}

// NewWorker creates a worker. Channel names are validated up front so an
// unsafe name fails here instead of on every poll. Job output and verbose
// progress go to out; a nil out discards them.
func NewWorker(manager *queue.Manager, registry *Registry, config WorkerConfig, out io.Writer, logger *slog.Logger) (*Worker, error) {
	if manager == nil || registry == nil {
		return nil, fmt.Errorf("%w: worker requires a queue manager and a registry", domain.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}

	defaults := DefaultWorkerConfig()
	if len(config.Channels) == 0 {
		config.Channels = defaults.Channels
	}
	for _, ch := range config.Channels {
		if _, err := domain.SafePath(ch); err != nil {
			return nil, fmt.Errorf("invalid channel %q: %w", ch, err)
		}
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}

	return &Worker{
		manager:  manager,
		registry: registry,
		config:   config,
		out:      bufio.NewWriter(out),
		logger:   logger.With("component", "worker"),
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// Config returns the effective configuration after defaults were applied.
func (w *Worker) Config() WorkerConfig {
	return w.config
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return w.stats.snapshot()
}

// Run polls until a stop condition is reached. It returns nil in every
// stopping case, including context cancellation; job failures never
// surface here.
func (w *Worker) Run(ctx context.Context) error {
	started := w.now()
	defer w.flush()

	w.logger.Info("worker started",
		"channels", w.config.Channels,
		"once", w.config.Once,
		"max_jobs", w.config.MaxJobs,
		"max_runtime", w.config.MaxRuntime.String(),
		"max_attempts", w.config.MaxAttempts)

	if w.config.ClaimTimeout > 0 {
		w.reclaim(ctx)
	}

	for {
		w.flush()

		if ctx.Err() != nil {
			w.stop("worker stopped by context", false)
			return nil
		}

		if w.config.MaxJobs > 0 && w.stats.processed.Load() >= int64(w.config.MaxJobs) {
			w.stop("Max jobs reached... Quitting.", true)
			return nil
		}

		if w.config.MaxRuntime > 0 && w.now().Sub(started) >= w.config.MaxRuntime {
			w.stop("Max runtime reached... Quitting.", true)
			return nil
		}

		env, channel := w.poll(ctx)
		if env == nil {
			if w.config.Once {
				w.stop("no job available, stopping", false)
				return nil
			}
			if w.config.ClaimTimeout > 0 && w.now().Sub(w.lastReclaim) >= w.config.ClaimTimeout {
				w.reclaim(ctx)
			}
			if w.config.Verbose {
				w.printf(" Waiting for new job...\r")
			}
			if err := w.sleep(ctx, w.config.PollInterval); err != nil {
				w.stop("worker stopped by context", false)
				return nil
			}
			continue
		}

		if !w.handle(ctx, channel, env) {
			continue
		}

		if w.config.Verbose {
			w.println("---")
			w.println("")
		}

		if w.config.Once {
			w.stop("single job processed, stopping", false)
			return nil
		}
	}
}

// poll returns the first job found across the watched channels, in order.
// Storage failures are logged and treated as an empty channel.
func (w *Worker) poll(ctx context.Context) (*domain.Envelope, string) {
	for _, ch := range w.config.Channels {
		env, err := w.manager.For(ch).Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ch
			}
			w.logger.Error("failed to pop job",
				"channel", ch,
				"error", err)
			continue
		}
		if env != nil {
			return env, ch
		}
	}
	return nil, w.config.Channels[0]
}

// handle executes one claimed job and applies the failure policy. It
// reports false when the job was skipped without executing.
func (w *Worker) handle(ctx context.Context, channel string, env *domain.Envelope) bool {
	jobID, _ := env.Payload.JobID()
	jobLog := w.logger.With("channel", channel, "job_type", env.Type, "job_id", jobID)

	if _, ok := w.registry.Lookup(env.Type); !ok {
		w.stats.skipped.Add(1)
		if w.config.Verbose {
			w.printf("Job class %s not found.\n", env.Type)
		}
		jobLog.Warn("job type not registered, skipping job")
		return false
	}

	attempts := env.Payload.Attempts() + 1
	if w.config.Verbose {
		w.printf("Job %s started at %s (attempt %d)...\n",
			env.Type, w.now().Format(time.DateTime), attempts)
	}

	start := w.now()
	err := w.execute(ctx, env)
	duration := w.now().Sub(start)

	if err == nil {
		w.stats.processed.Add(1)
		w.stats.succeeded.Add(1)
		if w.config.Verbose {
			w.println("")
			w.printf("Job %s done in %.5fs.\n", env.Type, duration.Seconds())
		}
		jobLog.Debug("job completed",
			"attempt", attempts,
			"duration_ms", duration.Milliseconds())
		return true
	}

	w.stats.failed.Add(1)
	if w.config.Verbose {
		w.printf("Job %s failed: %v (attempt %d)\n", env.Type, err, attempts)
	}
	jobLog.Warn("job execution failed",
		"attempt", attempts,
		"duration_ms", duration.Milliseconds(),
		"error", err)

	q := w.manager.For(channel)
	payload := env.Payload.Clone()
	payload[domain.KeyAttempts] = attempts

	if attempts >= w.config.MaxAttempts {
		w.deadletter(context.WithoutCancel(ctx), q, env.Type, payload, err, jobLog)
		if w.config.Verbose {
			w.printf("Giving up on %s after %d attempts.\n", env.Type, attempts)
		}
		return true
	}

	// The job was deleted on claim; it must be pushed back even if the
	// worker is shutting down.
	pushCtx := context.WithoutCancel(ctx)
	if err := w.sleep(ctx, w.config.RetryDelay); err != nil {
		jobLog.Debug("retry delay interrupted, re-pushing immediately")
	}

	if perr := q.Push(pushCtx, env.Type, payload); perr != nil {
		jobLog.Error("failed to re-push job for retry, deadlettering instead",
			"attempt", attempts,
			"error", perr)
		w.deadletter(pushCtx, q, env.Type, payload, errors.Join(err, perr), jobLog)
		return true
	}

	w.stats.retried.Add(1)
	if w.config.Verbose {
		w.printf("Retrying %s...\n", env.Type)
	}
	return true
}

// execute builds and runs the handler, turning panics into errors.
func (w *Worker) execute(ctx context.Context, env *domain.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewPanicError(r)
		}
	}()

	job, err := w.registry.Build(env.Type, env.Payload.Clone())
	if err != nil {
		return fmt.Errorf("failed to construct job: %w", err)
	}
	return job.Execute(ctx, w.out)
}

// deadletter escalates a job that exhausted its attempts. The job counts as
// processed whether or not a record could be written.
func (w *Worker) deadletter(ctx context.Context, q *queue.Queue, jobType string, payload domain.Payload, cause error, jobLog *slog.Logger) {
	w.stats.processed.Add(1)
	attempts := payload.Attempts()

	dd, ok := store.AsDeadletter(q.Driver())
	if !ok {
		jobLog.Error("job failed permanently and driver does not support deadletter operations, dropping job",
			"attempts", attempts,
			"driver_capabilities", q.Driver().Capabilities().String(),
			"error", cause)
		return
	}

	if err := dd.Deadletter(ctx, jobType, payload, cause); err != nil {
		jobLog.Error("failed to write deadletter record",
			"attempts", attempts,
			"error", err)
		return
	}

	w.stats.deadlettered.Add(1)
	jobLog.Error("job failed permanently, deadlettered",
		"attempts", attempts,
		"error", cause)
}

// reclaim returns stale claims on every watched channel whose driver
// supports it.
func (w *Worker) reclaim(ctx context.Context) {
	w.lastReclaim = w.now()
	for _, ch := range w.config.Channels {
		rc, ok := store.AsReclaimer(w.manager.For(ch).Driver())
		if !ok {
			continue
		}
		n, err := rc.ReclaimStale(ctx, ch, w.config.ClaimTimeout)
		if err != nil {
			w.logger.Error("failed to reclaim stale claims",
				"channel", ch,
				"error", err)
			continue
		}
		if n > 0 {
			w.logger.Info("reclaimed stale claims",
				"channel", ch,
				"count", n)
		}
	}
}

func (w *Worker) stop(reason string, announce bool) {
	if announce && w.config.Verbose {
		w.println(reason)
	}
	s := w.Stats()
	w.logger.Info(reason,
		"processed", s.Processed,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"retried", s.Retried,
		"deadlettered", s.Deadlettered,
		"skipped", s.Skipped)
}

func (w *Worker) printf(format string, args ...any) {
	fmt.Fprintf(w.out, format, args...)
}

func (w *Worker) println(line string) {
	fmt.Fprintln(w.out, line)
}

func (w *Worker) flush() {
	_ = w.out.Flush()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

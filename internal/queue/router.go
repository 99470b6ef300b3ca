package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
)

// ChannelRouter binds a channel name to a channel-aware driver and presents
// it as a plain driver.
type ChannelRouter struct {
	driver  store.ChannelDriver
	channel string
	logger  *slog.Logger
}

var (
	_ store.DeadletterDriver = (*ChannelRouter)(nil)
	_ store.Reclaimer        = (*ChannelRouter)(nil)
)

// NewChannelRouter creates a router forwarding to channel on driver.
func NewChannelRouter(driver store.ChannelDriver, channel string, logger *slog.Logger) *ChannelRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelRouter{
		driver:  driver,
		channel: channel,
		logger:  logger.With("component", "channel_router", "channel", channel),
	}
}

// Channel returns the bound channel name.
func (r *ChannelRouter) Channel() string { return r.channel }

// Unwrap returns the underlying driver.
func (r *ChannelRouter) Unwrap() store.ChannelDriver { return r.driver }

// Capabilities declares basic queueing plus whatever deadletter and reclaim
// support the underlying driver offers. The router itself is bound to one
// channel, so it does not declare CapChannels.
func (r *ChannelRouter) Capabilities() store.Capabilities {
	inner := r.driver.Capabilities()
	caps := store.CapQueue
	if inner.Has(store.CapDeadletter) || inner.Has(store.CapChannelDeadletter) {
		caps |= store.CapDeadletter
	}
	if inner.Has(store.CapReclaim) {
		caps |= store.CapReclaim
	}
	return caps
}

// Enqueue forwards to EnqueueTo on the bound channel.
func (r *ChannelRouter) Enqueue(ctx context.Context, jobType string, payload domain.Payload) error {
	return r.driver.EnqueueTo(ctx, r.channel, jobType, payload)
}

// Dequeue forwards to DequeueFrom on the bound channel.
func (r *ChannelRouter) Dequeue(ctx context.Context) (*domain.Envelope, error) {
	return r.driver.DequeueFrom(ctx, r.channel)
}

// Deadletter writes to the channel's deadletter scope when the driver
// supports it, otherwise to the driver's global deadletter store. With
// neither available the job is dropped with a warning.
func (r *ChannelRouter) Deadletter(ctx context.Context, jobType string, payload domain.Payload, cause error) error {
	if cd, ok := store.AsChannelDeadletter(r.driver); ok {
		return cd.DeadletterTo(ctx, r.channel, jobType, payload, cause)
	}
	if dd, ok := store.AsDeadletter(r.driver); ok {
		r.logger.Warn("driver lacks channel-scoped deadletter, using global deadletter store",
			"job_type", jobType)
		return dd.Deadletter(ctx, jobType, payload, cause)
	}
	r.logger.Warn("driver does not support deadletter operations, dropping failed job",
		"job_type", jobType)
	return nil
}

// ReplayDeadletters replays the channel's deadletter scope, falling back to
// the driver's global store. With neither available it replays nothing.
func (r *ChannelRouter) ReplayDeadletters(ctx context.Context, keep bool) (int, error) {
	if cd, ok := store.AsChannelDeadletter(r.driver); ok {
		return cd.ReplayDeadlettersFrom(ctx, r.channel, keep)
	}
	if dd, ok := store.AsDeadletter(r.driver); ok {
		r.logger.Warn("driver lacks channel-scoped deadletter, replaying global deadletter store")
		return dd.ReplayDeadletters(ctx, keep)
	}
	r.logger.Warn("driver does not support deadletter operations, nothing to replay")
	return 0, nil
}

// ReclaimStale forwards to the driver's reclaimer for the bound channel,
// ignoring the channel argument.
func (r *ChannelRouter) ReclaimStale(ctx context.Context, _ string, olderThan time.Duration) (int, error) {
	rc, ok := store.AsReclaimer(r.driver)
	if !ok {
		return 0, store.ErrCapabilityUnsupported
	}
	return rc.ReclaimStale(ctx, r.channel, olderThan)
}

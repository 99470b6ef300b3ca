package store

import (
	"context"
	"strings"
	"time"

	"github.com/phrazzld/filequeue/internal/domain"
)

// Capabilities is the set of features a driver declares.
type Capabilities uint8

// Driver capabilities.
const (
	// CapQueue is basic enqueue/dequeue. Every driver declares it.
	CapQueue Capabilities = 1 << iota
	// CapChannels routes enqueue/dequeue to named channels (ChannelDriver).
	CapChannels
	// CapDeadletter writes and replays deadletter records (DeadletterDriver).
	CapDeadletter
	// CapChannelDeadletter scopes deadletter records by channel
	// (ChannelDeadletterDriver).
	CapChannelDeadletter
	// CapReclaim returns stale claims to the live scope (Reclaimer).
	CapReclaim
)

// Has reports whether every capability in want is declared.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// String renders the capability set, e.g. "queue|channels".
func (c Capabilities) String() string {
	names := []string{"queue", "channels", "deadletter", "channel_deadletter", "reclaim"}
	var parts []string
	for i, name := range names {
		if c&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Driver is the basic queueing contract. Operations without a channel act on
// domain.DefaultChannel.
type Driver interface {
	// Capabilities declares which optional interfaces the driver implements.
	Capabilities() Capabilities

	// Enqueue stores a job. A payload without a job id gets one assigned.
	Enqueue(ctx context.Context, jobType string, payload domain.Payload) error

	// Dequeue claims and removes the next job. It returns nil, nil when no
	// claimable job exists.
	Dequeue(ctx context.Context) (*domain.Envelope, error)
}

// ChannelDriver routes queue operations to a named channel.
type ChannelDriver interface {
	Driver
	EnqueueTo(ctx context.Context, channel, jobType string, payload domain.Payload) error
	DequeueFrom(ctx context.Context, channel string) (*domain.Envelope, error)
}

// DeadletterDriver keeps jobs that exhausted their retry budget.
type DeadletterDriver interface {
	Driver
	Deadletter(ctx context.Context, jobType string, payload domain.Payload, cause error) error

	// ReplayDeadletters re-enqueues every valid record and reports how many
	// were replayed. Records are deleted afterwards unless keep is set.
	ReplayDeadletters(ctx context.Context, keep bool) (int, error)
}

// ChannelDeadletterDriver scopes deadletter records by channel.
type ChannelDeadletterDriver interface {
	DeadletterDriver
	DeadletterTo(ctx context.Context, channel, jobType string, payload domain.Payload, cause error) error
	ReplayDeadlettersFrom(ctx context.Context, channel string, keep bool) (int, error)
}

// Reclaimer returns claims older than a cutoff to the live scope.
type Reclaimer interface {
	ReclaimStale(ctx context.Context, channel string, olderThan time.Duration) (int, error)
}

// AsChannel returns d as a ChannelDriver if it declares CapChannels.
func AsChannel(d Driver) (ChannelDriver, bool) {
	if d == nil || !d.Capabilities().Has(CapChannels) {
		return nil, false
	}
	cd, ok := d.(ChannelDriver)
	return cd, ok
}

// AsDeadletter returns d as a DeadletterDriver if it declares CapDeadletter.
func AsDeadletter(d Driver) (DeadletterDriver, bool) {
	if d == nil || !d.Capabilities().Has(CapDeadletter) {
		return nil, false
	}
	dd, ok := d.(DeadletterDriver)
	return dd, ok
}

// AsChannelDeadletter returns d as a ChannelDeadletterDriver if it declares
// CapChannelDeadletter.
func AsChannelDeadletter(d Driver) (ChannelDeadletterDriver, bool) {
	if d == nil || !d.Capabilities().Has(CapChannelDeadletter) {
		return nil, false
	}
	cd, ok := d.(ChannelDeadletterDriver)
	return cd, ok
}

// AsReclaimer returns d as a Reclaimer if it declares CapReclaim.
func AsReclaimer(d Driver) (Reclaimer, bool) {
	if d == nil || !d.Capabilities().Has(CapReclaim) {
		return nil, false
	}
	r, ok := d.(Reclaimer)
	return r, ok
}

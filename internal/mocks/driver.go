package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
)

// Call records one method invocation on MockDriver.
type Call struct {
	Method string
	Args   []any
}

// MockDriver implements every store driver interface with an in-memory
// queue per channel. Caps controls which capabilities it declares, so the
// same mock can stand in for a basic, channel-aware or deadletter-capable
// engine. Function fields override the default behavior.
type MockDriver struct {
	Caps store.Capabilities

	EnqueueFn               func(ctx context.Context, jobType string, payload domain.Payload) error
	DequeueFn               func(ctx context.Context) (*domain.Envelope, error)
	EnqueueToFn             func(ctx context.Context, channel, jobType string, payload domain.Payload) error
	DequeueFromFn           func(ctx context.Context, channel string) (*domain.Envelope, error)
	DeadletterFn            func(ctx context.Context, jobType string, payload domain.Payload, cause error) error
	DeadletterToFn          func(ctx context.Context, channel, jobType string, payload domain.Payload, cause error) error
	ReplayDeadlettersFn     func(ctx context.Context, keep bool) (int, error)
	ReplayDeadlettersFromFn func(ctx context.Context, channel string, keep bool) (int, error)
	ReclaimStaleFn          func(ctx context.Context, channel string, olderThan time.Duration) (int, error)

	mu          sync.Mutex
	calls       []Call
	jobs        map[string][]*domain.Envelope
	deadletters map[string][]*domain.DeadletterRecord
	seq         int
}

var (
	_ store.ChannelDriver           = (*MockDriver)(nil)
	_ store.ChannelDeadletterDriver = (*MockDriver)(nil)
	_ store.Reclaimer               = (*MockDriver)(nil)
)

// NewMockDriver creates a mock declaring caps. CapQueue is always added.
func NewMockDriver(caps store.Capabilities) *MockDriver {
	return &MockDriver{
		Caps:        caps | store.CapQueue,
		jobs:        make(map[string][]*domain.Envelope),
		deadletters: make(map[string][]*domain.DeadletterRecord),
	}
}

// Capabilities implements store.Driver.
func (m *MockDriver) Capabilities() store.Capabilities { return m.Caps }

// Calls returns a copy of the recorded invocations.
func (m *MockDriver) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns the recorded invocations of method.
func (m *MockDriver) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Pending returns a copy of the jobs queued on channel.
func (m *MockDriver) Pending(channel string) []*domain.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Envelope, len(m.jobs[channel]))
	copy(out, m.jobs[channel])
	return out
}

// Deadlettered returns a copy of the deadletter records kept for channel.
func (m *MockDriver) Deadlettered(channel string) []*domain.DeadletterRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DeadletterRecord, len(m.deadletters[channel]))
	copy(out, m.deadletters[channel])
	return out
}

func (m *MockDriver) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// Enqueue implements store.Driver.
func (m *MockDriver) Enqueue(ctx context.Context, jobType string, payload domain.Payload) error {
	m.record("Enqueue", jobType, payload.Clone())
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, jobType, payload)
	}
	m.push(domain.DefaultChannel, jobType, payload)
	return nil
}

// Dequeue implements store.Driver.
func (m *MockDriver) Dequeue(ctx context.Context) (*domain.Envelope, error) {
	m.record("Dequeue")
	if m.DequeueFn != nil {
		return m.DequeueFn(ctx)
	}
	return m.pop(domain.DefaultChannel), nil
}

// EnqueueTo implements store.ChannelDriver.
func (m *MockDriver) EnqueueTo(ctx context.Context, channel, jobType string, payload domain.Payload) error {
	m.record("EnqueueTo", channel, jobType, payload.Clone())
	if m.EnqueueToFn != nil {
		return m.EnqueueToFn(ctx, channel, jobType, payload)
	}
	m.push(channel, jobType, payload)
	return nil
}

// DequeueFrom implements store.ChannelDriver.
func (m *MockDriver) DequeueFrom(ctx context.Context, channel string) (*domain.Envelope, error) {
	m.record("DequeueFrom", channel)
	if m.DequeueFromFn != nil {
		return m.DequeueFromFn(ctx, channel)
	}
	return m.pop(channel), nil
}

// Deadletter implements store.DeadletterDriver.
func (m *MockDriver) Deadletter(ctx context.Context, jobType string, payload domain.Payload, cause error) error {
	m.record("Deadletter", jobType, payload.Clone(), errString(cause))
	if m.DeadletterFn != nil {
		return m.DeadletterFn(ctx, jobType, payload, cause)
	}
	m.bury(domain.DefaultChannel, jobType, payload, cause)
	return nil
}

// DeadletterTo implements store.ChannelDeadletterDriver.
func (m *MockDriver) DeadletterTo(ctx context.Context, channel, jobType string, payload domain.Payload, cause error) error {
	m.record("DeadletterTo", channel, jobType, payload.Clone(), errString(cause))
	if m.DeadletterToFn != nil {
		return m.DeadletterToFn(ctx, channel, jobType, payload, cause)
	}
	m.bury(channel, jobType, payload, cause)
	return nil
}

// ReplayDeadletters implements store.DeadletterDriver.
func (m *MockDriver) ReplayDeadletters(ctx context.Context, keep bool) (int, error) {
	m.record("ReplayDeadletters", keep)
	if m.ReplayDeadlettersFn != nil {
		return m.ReplayDeadlettersFn(ctx, keep)
	}
	return m.replay(domain.DefaultChannel, keep), nil
}

// ReplayDeadlettersFrom implements store.ChannelDeadletterDriver.
func (m *MockDriver) ReplayDeadlettersFrom(ctx context.Context, channel string, keep bool) (int, error) {
	m.record("ReplayDeadlettersFrom", channel, keep)
	if m.ReplayDeadlettersFromFn != nil {
		return m.ReplayDeadlettersFromFn(ctx, channel, keep)
	}
	return m.replay(channel, keep), nil
}

// ReclaimStale implements store.Reclaimer.
func (m *MockDriver) ReclaimStale(ctx context.Context, channel string, olderThan time.Duration) (int, error) {
	m.record("ReclaimStale", channel, olderThan)
	if m.ReclaimStaleFn != nil {
		return m.ReclaimStaleFn(ctx, channel, olderThan)
	}
	return 0, nil
}

func (m *MockDriver) push(channel, jobType string, payload domain.Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := payload.Clone()
	if _, ok := p.JobID(); !ok {
		m.seq++
		p[domain.KeyJobID] = fmt.Sprintf("mock-%04d", m.seq)
	}
	m.jobs[channel] = append(m.jobs[channel], &domain.Envelope{Type: jobType, Payload: p})
}

func (m *MockDriver) pop(channel string) *domain.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.jobs[channel]
	if len(queue) == 0 {
		return nil
	}
	env := queue[0]
	m.jobs[channel] = queue[1:]
	return env
}

func (m *MockDriver) bury(channel, jobType string, payload domain.Payload, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := domain.NewDeadletterRecord(channel, jobType, payload.Clone(), cause)
	m.deadletters[channel] = append(m.deadletters[channel], rec)
}

func (m *MockDriver) replay(channel string, keep bool) int {
	m.mu.Lock()
	records := m.deadletters[channel]
	if !keep {
		delete(m.deadletters, channel)
	}
	m.mu.Unlock()

	for _, rec := range records {
		m.push(channel, rec.Type, rec.ReplayPayload())
	}
	return len(records)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

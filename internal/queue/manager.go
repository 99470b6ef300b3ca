package queue

import (
	"log/slog"
	"sync"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
)

// Manager hands out the Queue for a channel. It is built once at process
// start and passed to producers and workers.
type Manager struct {
	base   *Queue
	logger *slog.Logger

	mu     sync.Mutex
	queues map[string]*Queue
}

// NewManager creates a Manager over driver.
func NewManager(driver store.Driver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		base:   New(driver),
		logger: logger.With("component", "queue_manager"),
		queues: make(map[string]*Queue),
	}
}

// Default returns the queue for domain.DefaultChannel.
func (m *Manager) Default() *Queue {
	return m.base
}

// Driver returns the underlying driver.
func (m *Manager) Driver() store.Driver {
	return m.base.Driver()
}

// For returns the queue for channel. The empty name and the default channel
// map to the default queue, as does every channel when the driver cannot
// route channels (logged once per channel).
func (m *Manager) For(channel string) *Queue {
	if channel == "" || channel == domain.DefaultChannel {
		return m.base
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[channel]; ok {
		return q
	}

	cd, ok := store.AsChannel(m.base.Driver())
	if !ok {
		m.logger.Warn("queue driver does not support channels, using default queue",
			"channel", channel,
			"capabilities", m.base.Driver().Capabilities().String())
		m.queues[channel] = m.base
		return m.base
	}

	q := New(NewChannelRouter(cd, channel, m.logger))
	m.queues[channel] = q
	return q
}

package queue

import (
	"context"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
)

// Queue wraps one driver instance.
type Queue struct {
	driver store.Driver
}

// New creates a Queue over driver.
func New(driver store.Driver) *Queue {
	return &Queue{driver: driver}
}

// Push enqueues a job.
func (q *Queue) Push(ctx context.Context, jobType string, payload domain.Payload) error {
	return q.driver.Enqueue(ctx, jobType, payload)
}

// Pop claims the next job, or returns nil when none is available.
func (q *Queue) Pop(ctx context.Context) (*domain.Envelope, error) {
	return q.driver.Dequeue(ctx)
}

// Driver exposes the underlying driver for deadletter and replay operations.
func (q *Queue) Driver() store.Driver {
	return q.driver
}

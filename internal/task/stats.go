package task

import "sync/atomic"

// Stats is a snapshot of a worker's counters.
type Stats struct {
	// Processed counts jobs that left the live queue for good: successes
	// plus deadletter escalations. Max-jobs limits compare against it.
	Processed    int64
	Succeeded    int64
	Failed       int64
	Retried      int64
	Deadlettered int64
	Skipped      int64
}

type counters struct {
	processed    atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	retried      atomic.Int64
	deadlettered atomic.Int64
	skipped      atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Processed:    c.processed.Load(),
		Succeeded:    c.succeeded.Load(),
		Failed:       c.failed.Load(),
		Retried:      c.retried.Load(),
		Deadlettered: c.deadlettered.Load(),
		Skipped:      c.skipped.Load(),
	}
}

// Add returns the element-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Processed:    s.Processed + o.Processed,
		Succeeded:    s.Succeeded + o.Succeeded,
		Failed:       s.Failed + o.Failed,
		Retried:      s.Retried + o.Retried,
		Deadlettered: s.Deadlettered + o.Deadlettered,
		Skipped:      s.Skipped + o.Skipped,
	}
}

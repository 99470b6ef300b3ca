package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// Transient keys removed from a payload when a deadlettered job is replayed.
var transientKeys = []string{KeyAttempts, "error", "trace", "failed_at"}

// DeadletterRecord is kept for a job that exhausted its retry budget.
type DeadletterRecord struct {
	ID       string    `json:"id"`
	Channel  string    `json:"channel"`
	Type     string    `json:"class"`
	Payload  Payload   `json:"payload"`
	Error    string    `json:"error"`
	Trace    string    `json:"trace"`
	FailedAt time.Time `json:"failed_at"`
}

// NewDeadletterRecord builds a record for a failed job. The payload must
// already carry its job id.
func NewDeadletterRecord(channel, jobType string, payload Payload, cause error) *DeadletterRecord {
	id, _ := payload.JobID()
	rec := &DeadletterRecord{
		ID:       id,
		Channel:  channel,
		Type:     jobType,
		Payload:  payload,
		Trace:    TraceOf(cause),
		FailedAt: time.Now().UTC().Truncate(time.Second),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	return rec
}

// DecodeDeadletterRecord parses a stored deadletter record. A record must
// name a job type and carry a payload object.
func DecodeDeadletterRecord(data []byte) (*DeadletterRecord, error) {
	var raw struct {
		DeadletterRecord
		Payload *Payload `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if raw.Type == "" || raw.Payload == nil {
		return nil, fmt.Errorf("%w: deadletter record needs class and payload", ErrCorruptRecord)
	}
	rec := raw.DeadletterRecord
	rec.Payload = *raw.Payload
	if rec.Payload == nil {
		rec.Payload = Payload{}
	}
	return &rec, nil
}

// ReplayPayload returns a copy of the record's payload stripped of transient
// failure fields, ready to be enqueued again. The job id is kept.
func (r *DeadletterRecord) ReplayPayload() Payload {
	p := r.Payload.Clone()
	for _, key := range transientKeys {
		delete(p, key)
	}
	return p
}

// StackTracer is implemented by errors that carry their own stack trace.
type StackTracer interface {
	StackTrace() string
}

// PanicError wraps a value recovered from a panicking job handler.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current goroutine stack for a recovered value.
func NewPanicError(value any) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// StackTrace returns the stack captured at recovery time.
func (e *PanicError) StackTrace() string {
	return string(e.Stack)
}

// TraceOf renders the best available trace for err: the stack of the first
// StackTracer in its chain, otherwise the chain of wrapped messages.
func TraceOf(err error) string {
	if err == nil {
		return ""
	}
	var st StackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	trace := fmt.Sprintf("%T: %v", err, err)
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		trace += fmt.Sprintf("\ncaused by %T: %v", cause, cause)
	}
	return trace
}

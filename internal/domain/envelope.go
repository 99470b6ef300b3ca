package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
)

// DefaultChannel is the channel used when none is given.
const DefaultChannel = "default"

// Reserved payload keys. All other keys are application data.
const (
	// KeyJobID holds the job identifier, unique within a channel's live scope.
	KeyJobID = "_job_id"

	// KeyAttempts holds the number of failed executions so far.
	KeyAttempts = "_attempts"
)

// Payload is the application data carried by a job, plus the reserved keys.
type Payload map[string]any

// Envelope is the serialized unit of work stored per job.
type Envelope struct {
	// Type identifies the handler that executes the job.
	Type    string  `json:"class"`
	Payload Payload `json:"payload"`
}

// Validate checks that the envelope carries a job type.
func (e *Envelope) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: envelope has no job type", ErrCorruptRecord)
	}
	return nil
}

// DecodeEnvelope parses a stored job record. Any failure wraps
// ErrCorruptRecord.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if env.Payload == nil {
		env.Payload = Payload{}
	}
	return &env, nil
}

// Clone returns a shallow copy of the payload. A nil payload yields an empty
// one, so callers can always write to the result.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	return maps.Clone(p)
}

// JobID returns the job id and whether one is set. Non-string ids are
// reported as set so callers can reject them.
func (p Payload) JobID() (string, bool) {
	v, ok := p[KeyJobID]
	if !ok || v == nil {
		return "", false
	}
	s, isString := v.(string)
	if !isString {
		return fmt.Sprint(v), true
	}
	return s, s != ""
}

// Attempts returns the attempt counter. Absent or unparsable values count
// as zero. JSON numbers decode as float64, so every numeric kind is accepted.
func (p Payload) Attempts() int {
	switch v := p[KeyAttempts].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

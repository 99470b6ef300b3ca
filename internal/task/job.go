package task

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/phrazzld/filequeue/internal/domain"
)

// Job is an executable unit of work built from a payload.
type Job interface {
	// Execute runs the job. Progress output goes to out.
	Execute(ctx context.Context, out io.Writer) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(ctx context.Context, out io.Writer) error

// Execute calls f.
func (f JobFunc) Execute(ctx context.Context, out io.Writer) error {
	return f(ctx, out)
}

// Factory builds a Job from a payload. The payload still carries the
// reserved keys; the factory must not retain it after returning.
type Factory func(payload domain.Payload) (Job, error)

// PayloadFactory returns a Factory that decodes the payload into T using
// its json tags before calling build. Numeric strings and floats are
// converted to the field types. Durations accept "1s" style strings, and
// bare numbers are read as seconds.
func PayloadFactory[T any](build func(params T) Job) Factory {
	return func(payload domain.Payload) (Job, error) {
		var params T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				numberToSecondsHookFunc(),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result:           &params,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create payload decoder: %w", err)
		}
		if err := dec.Decode(map[string]any(payload)); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		return build(params), nil
	}
}

// numberToSecondsHookFunc decodes JSON numbers into time.Duration as
// seconds. Without it a weakly typed decode treats them as nanoseconds.
func numberToSecondsHookFunc() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case float32:
			return time.Duration(float64(v) * float64(time.Second)), nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case json.Number:
			secs, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid duration %q: %w", v, err)
			}
			return time.Duration(secs * float64(time.Second)), nil
		}
		return data, nil
	}
}

// Registry maps job type identifiers to factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for jobType. Empty names, nil factories and
// duplicate registrations are rejected.
func (r *Registry) Register(jobType string, factory Factory) error {
	if jobType == "" {
		return fmt.Errorf("%w: job type is required", domain.ErrInvalidHandler)
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %q", domain.ErrInvalidHandler, jobType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[jobType]; exists {
		return fmt.Errorf("%w: job type %q already registered", domain.ErrInvalidHandler, jobType)
	}
	r.factories[jobType] = factory
	return nil
}

// MustRegister is like Register but panics on error. It is intended for
// program initialization.
func (r *Registry) MustRegister(jobType string, factory Factory) {
	if err := r.Register(jobType, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for jobType.
func (r *Registry) Lookup(jobType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[jobType]
	return f, ok
}

// Build resolves jobType and constructs its handler. Unknown types wrap
// domain.ErrUnknownJobType.
func (r *Registry) Build(jobType string, payload domain.Payload) (Job, error) {
	factory, ok := r.Lookup(jobType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobType, jobType)
	}
	job, err := factory(payload)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: factory for %q returned no job", domain.ErrInvalidHandler, jobType)
	}
	return job, nil
}

// Types lists the registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

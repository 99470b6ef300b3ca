package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Built-in job types registered by RegisterBuiltins.
const (
	JobTypeEcho  = "echo"
	JobTypeSleep = "sleep"
	JobTypeFail  = "fail"
)

// EchoParams is the payload of an echo job.
type EchoParams struct {
	Message string `json:"message"`
}

// SleepParams is the payload of a sleep job.
type SleepParams struct {
	Duration time.Duration `json:"duration"`
}

// FailParams is the payload of a fail job.
type FailParams struct {
	Message string `json:"message"`
}

// RegisterBuiltins registers the echo, sleep and fail job types, used to
// smoke test a deployment end to end.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Factory{
		JobTypeEcho: PayloadFactory(func(p EchoParams) Job {
			return JobFunc(func(_ context.Context, out io.Writer) error {
				_, err := fmt.Fprintln(out, p.Message)
				return err
			})
		}),
		JobTypeSleep: PayloadFactory(func(p SleepParams) Job {
			return JobFunc(func(ctx context.Context, _ io.Writer) error {
				timer := time.NewTimer(p.Duration)
				defer timer.Stop()
				select {
				case <-timer.C:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		}),
		JobTypeFail: PayloadFactory(func(p FailParams) Job {
			return JobFunc(func(context.Context, io.Writer) error {
				if p.Message == "" {
					p.Message = "job failed"
				}
				return errors.New(p.Message)
			})
		}),
	}

	for _, name := range []string{JobTypeEcho, JobTypeSleep, JobTypeFail} {
		if err := r.Register(name, builtins[name]); err != nil {
			return err
		}
	}
	return nil
}

package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
)

// Enqueue implements store.Driver on the default channel.
func (d *Driver) Enqueue(ctx context.Context, jobType string, payload domain.Payload) error {
	return d.EnqueueTo(ctx, domain.DefaultChannel, jobType, payload)
}

// EnqueueTo writes a job into the channel's live scope. The caller's payload
// is not modified; the stored copy carries the assigned job id.
func (d *Driver) EnqueueTo(ctx context.Context, channel, jobType string, payload domain.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if jobType == "" {
		return fmt.Errorf("%w: job type cannot be empty", domain.ErrInvalidInput)
	}

	dir, err := d.channelPath(channel)
	if err != nil {
		return err
	}

	p := payload.Clone()
	id, err := d.assignID(p)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(domain.Envelope{Type: jobType, Payload: p}, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: payload cannot be encoded: %v", domain.ErrInvalidInput, err)
	}

	if err := ensureDir(dir); err != nil {
		return store.NewStoreError(driverName, "enqueue", "failed to create channel directory", err)
	}
	if err := writeAtomic(dir, id+jobExt, data); err != nil {
		return store.NewStoreError(driverName, "enqueue", "failed to write job file", err)
	}

	d.logger.Debug("job enqueued",
		"channel", channel,
		"job_type", jobType,
		"job_id", id)
	return nil
}

// Dequeue implements store.Driver on the default channel.
func (d *Driver) Dequeue(ctx context.Context) (*domain.Envelope, error) {
	return d.DequeueFrom(ctx, domain.DefaultChannel)
}

// DequeueFrom claims the first job in filename order, removes it and returns
// it. Candidates another worker claims first are skipped. Claimed files that
// fail to parse are moved to the quarantine directory. Returns nil, nil when
// no claimable valid job exists.
func (d *Driver) DequeueFrom(ctx context.Context, channel string) (*domain.Envelope, error) {
	dir, err := d.channelPath(channel)
	if err != nil {
		return nil, err
	}

	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, store.NewStoreError(driverName, "dequeue", "failed to list channel directory", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, jobExt) {
			continue
		}

		src := filepath.Join(dir, name)
		claimed := src + lockExt
		if err := os.Rename(src, claimed); err != nil {
			// Someone else claimed it first.
			continue
		}

		// Stamp the claim time for stale-claim reclamation.
		now := d.now()
		_ = os.Chtimes(claimed, now, now)

		env, err := readEnvelope(claimed)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Reclaimed by a sweeper between rename and read.
				continue
			}
			d.quarantine(dir, name, claimed, channel, err)
			continue
		}

		if _, ok := env.Payload.JobID(); !ok {
			env.Payload[domain.KeyJobID] = strings.TrimSuffix(name, jobExt)
		}

		if err := d.remove(claimed); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// A sweeper returned the claim to the channel; the job is
				// live again and belongs to whoever claims it next.
				continue
			}
			d.logger.Warn("failed to remove claimed job file",
				"channel", channel,
				"file", claimed,
				"error", err)
		}

		return env, nil
	}

	return nil, nil
}

func readEnvelope(path string) (*domain.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return domain.DecodeEnvelope(data)
}

// quarantine moves a claimed file that failed to parse out of the live scope.
func (d *Driver) quarantine(dir, name, claimed, channel string, cause error) {
	log := d.logger.With("channel", channel, "file", name)

	target := filepath.Join(dir, quarantineDir)
	if err := ensureDir(target); err != nil {
		log.Error("failed to create quarantine directory", "error", err, "cause", cause)
		return
	}
	if err := os.Rename(claimed, filepath.Join(target, name)); err != nil {
		log.Error("failed to quarantine corrupt job", "error", err, "cause", cause)
		return
	}

	log.Warn("corrupt job quarantined", "error", cause)
}

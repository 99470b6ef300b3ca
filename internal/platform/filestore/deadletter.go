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

// Deadletter implements store.DeadletterDriver on the default channel.
func (d *Driver) Deadletter(ctx context.Context, jobType string, payload domain.Payload, cause error) error {
	return d.DeadletterTo(ctx, domain.DefaultChannel, jobType, payload, cause)
}

// DeadletterTo writes a deadletter record for the job into the channel's
// deadletter scope, keyed by job id.
func (d *Driver) DeadletterTo(ctx context.Context, channel, jobType string, payload domain.Payload, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := d.deadletterChannelPath(channel)
	if err != nil {
		return err
	}

	p := payload.Clone()
	id, err := d.assignID(p)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(domain.NewDeadletterRecord(channel, jobType, p, cause), "", "    ")
	if err != nil {
		return fmt.Errorf("%w: deadletter record cannot be encoded: %v", domain.ErrInvalidInput, err)
	}

	if err := ensureDir(dir); err != nil {
		return store.NewStoreError(driverName, "deadletter", "failed to create deadletter directory", err)
	}
	if err := writeAtomic(dir, id+jobExt, data); err != nil {
		return store.NewStoreError(driverName, "deadletter", "failed to write deadletter record", err)
	}

	d.logger.Debug("job deadlettered",
		"channel", channel,
		"job_type", jobType,
		"job_id", id)
	return nil
}

// ReplayDeadletters implements store.DeadletterDriver on the default channel.
func (d *Driver) ReplayDeadletters(ctx context.Context, keep bool) (int, error) {
	return d.ReplayDeadlettersFrom(ctx, domain.DefaultChannel, keep)
}

// ReplayDeadlettersFrom re-enqueues every valid deadletter record of the
// channel into the same channel's live scope, stripped of its failure
// fields. Malformed records are skipped: not counted, not deleted.
func (d *Driver) ReplayDeadlettersFrom(ctx context.Context, channel string, keep bool) (int, error) {
	dir, err := d.deadletterChannelPath(channel)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, store.NewStoreError(driverName, "replay", "failed to list deadletter directory", err)
	}

	count := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, jobExt) {
			continue
		}
		path := filepath.Join(dir, name)
		log := d.logger.With("channel", channel, "file", name)

		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn("skipping unreadable deadletter record", "error", err)
			}
			continue
		}

		rec, err := domain.DecodeDeadletterRecord(data)
		if err != nil {
			log.Warn("skipping malformed deadletter record", "error", err)
			continue
		}

		if err := d.EnqueueTo(ctx, channel, rec.Type, rec.ReplayPayload()); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				log.Warn("skipping deadletter record with invalid job id", "error", err)
				continue
			}
			return count, fmt.Errorf("failed to replay %s: %w", name, err)
		}
		count++

		if keep {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return count, store.NewStoreError(driverName, "replay", "failed to remove replayed deadletter record", err)
		}
	}

	d.logger.Info("deadletter replay finished",
		"channel", channel,
		"replayed", count,
		"keep", keep)
	return count, nil
}

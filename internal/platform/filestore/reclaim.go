package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
)

// ReclaimStale renames claims older than olderThan back into the live
// scope, so jobs orphaned by a crashed worker are delivered again. Claim age
// is the modification time stamped at claim. Losing the rename race to
// another sweeper or to the original worker counts as a miss.
func (d *Driver) ReclaimStale(ctx context.Context, channel string, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: reclaim age must be positive", domain.ErrInvalidInput)
	}

	dir, err := d.channelPath(channel)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, store.NewStoreError(driverName, "reclaim", "failed to list channel directory", err)
	}

	cutoff := d.now().Add(-olderThan)
	count := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, jobExt+lockExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		claimed := filepath.Join(dir, name)
		if err := os.Rename(claimed, strings.TrimSuffix(claimed, lockExt)); err != nil {
			continue
		}
		count++
		d.logger.Warn("stale claim reclaimed",
			"channel", channel,
			"file", name,
			"claimed_at", info.ModTime())
	}

	return count, nil
}

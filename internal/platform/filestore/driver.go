package filestore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
)

const (
	driverName = "file"

	jobExt        = ".job"
	lockExt       = ".lock"
	quarantineDir = "corrupted"

	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Config holds the engine's root directories.
type Config struct {
	// Path is the live-queue root. Required.
	Path string

	// DeadletterPath is the deadletter root. Defaults to {Path}/deadletter.
	DeadletterPath string
}

// Driver is the file-backed storage engine. It is safe for concurrent use by
// multiple goroutines and multiple processes sharing the same directories.
type Driver struct {
	path           string
	deadletterPath string
	logger         *slog.Logger

	now    func() time.Time
	newID  func() (string, error)
	remove func(name string) error
}

var (
	_ store.ChannelDriver           = (*Driver)(nil)
	_ store.ChannelDeadletterDriver = (*Driver)(nil)
	_ store.Reclaimer               = (*Driver)(nil)
)

// New creates a file engine rooted at cfg.Path. Directories are created
// lazily on first write.
func New(cfg Config, logger *slog.Logger) (*Driver, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("%w: queue path cannot be empty", domain.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}

	deadletterPath := cfg.DeadletterPath
	if strings.TrimSpace(deadletterPath) == "" {
		deadletterPath = filepath.Join(cfg.Path, "deadletter")
	}

	path := filepath.Clean(cfg.Path)
	deadletterPath = filepath.Clean(deadletterPath)
	if isWithin(deadletterPath, path) {
		return nil, fmt.Errorf("%w: queue path %q lies inside the deadletter path %q",
			domain.ErrInvalidInput, path, deadletterPath)
	}

	return &Driver{
		path:           path,
		deadletterPath: deadletterPath,
		logger:         logger.With("component", "filestore"),
		now:            time.Now,
		newID:          newJobID,
		remove:         os.Remove,
	}, nil
}

// Capabilities implements store.Driver.
func (d *Driver) Capabilities() store.Capabilities {
	return store.CapQueue | store.CapChannels | store.CapDeadletter |
		store.CapChannelDeadletter | store.CapReclaim
}

// Path returns the live-queue root.
func (d *Driver) Path() string { return d.path }

// DeadletterPath returns the deadletter root.
func (d *Driver) DeadletterPath() string { return d.deadletterPath }

// channelPath resolves the live directory of channel. Live and deadletter
// scopes must stay disjoint, so a channel that resolves into the deadletter
// root is rejected.
func (d *Driver) channelPath(channel string) (string, error) {
	ch, err := domain.SafePath(channel)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(d.path, ch)
	if isWithin(d.deadletterPath, dir) {
		return "", fmt.Errorf("%w: channel %q resolves into the deadletter store", domain.ErrInvalidInput, channel)
	}
	return dir, nil
}

func (d *Driver) deadletterChannelPath(channel string) (string, error) {
	ch, err := domain.SafePath(channel)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.deadletterPath, ch), nil
}

// isWithin reports whether path equals root or lies below it.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// assignID makes sure payload carries a usable job id and returns it.
// Job ids name a single file, so unlike channels they cannot contain "/".
func (d *Driver) assignID(payload domain.Payload) (string, error) {
	if id, ok := payload.JobID(); ok {
		if _, isString := payload[domain.KeyJobID].(string); !isString {
			return "", fmt.Errorf("%w: job id must be a string", domain.ErrInvalidInput)
		}
		if _, err := domain.SafePath(id); err != nil {
			return "", err
		}
		if strings.Contains(id, "/") {
			return "", fmt.Errorf("%w: job id %q cannot contain '/'", domain.ErrInvalidInput, id)
		}
		return id, nil
	}

	id, err := d.newID()
	if err != nil {
		return "", store.NewStoreError(driverName, "assign id", "failed to generate job id", err)
	}
	payload[domain.KeyJobID] = id
	return id, nil
}

// newJobID returns a UUIDv7. Its text form sorts in creation order, which
// makes the lexicographic dequeue order FIFO.
func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ensureDir creates dir if missing. Concurrent creation by another worker
// is not an error.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			return nil
		}
		return err
	}
	return nil
}

// writeAtomic writes data to dir/name through a temporary file in the same
// directory, so readers see either nothing or the complete file.
func writeAtomic(dir, name string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

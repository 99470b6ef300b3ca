package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/platform/logger"
	"github.com/phrazzld/filequeue/internal/store"
)

const driverName = "postgres"

const (
	enqueueQuery = `
		INSERT INTO queue_jobs (job_id, class, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE
		SET class = EXCLUDED.class, payload = EXCLUDED.payload, created_at = NOW()
	`

	// The row lock on the selected job makes concurrent dequeuers skip it,
	// so each job is returned to exactly one caller.
	dequeueQuery = `
		DELETE FROM queue_jobs
		WHERE id = (
			SELECT id FROM queue_jobs
			ORDER BY created_at ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING job_id, class, payload
	`
)

// Driver stores jobs in the queue_jobs table.
type Driver struct {
	db     store.DBTX
	logger *slog.Logger
	newID  func() (uuid.UUID, error)
}

var _ store.Driver = (*Driver)(nil)

// New creates a Driver over db, which may be a *sql.DB or a *sql.Tx.
func New(db store.DBTX, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		db:     db,
		logger: logger.With("component", "postgres_driver"),
		newID:  uuid.NewV7,
	}
}

// Open connects to the database at url through the pgx stdlib driver and
// verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool with reasonable defaults
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapError("connect", "failed to ping database", err)
	}
	return db, nil
}

// Capabilities declares basic queueing only.
func (d *Driver) Capabilities() store.Capabilities {
	return store.CapQueue
}

// Enqueue inserts a job. A job with an existing id is replaced and moves to
// the back of the queue.
func (d *Driver) Enqueue(ctx context.Context, jobType string, payload domain.Payload) error {
	if jobType == "" {
		return fmt.Errorf("%w: job type is required", domain.ErrInvalidInput)
	}

	p := payload.Clone()
	id, err := d.assignID(p)
	if err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: payload cannot be encoded: %v", domain.ErrInvalidInput, err)
	}

	if _, err := d.db.ExecContext(ctx, enqueueQuery, id, jobType, data); err != nil {
		logger.FromContextOrDefault(ctx, d.logger).Error("failed to enqueue job",
			"job_type", jobType,
			"job_id", id,
			"error", err)
		return wrapError("enqueue", "failed to insert job", err)
	}
	return nil
}

// Dequeue removes and returns the oldest job, or nil when the table is
// empty. Rows whose payload cannot be decoded are dropped with a warning.
func (d *Driver) Dequeue(ctx context.Context) (*domain.Envelope, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	for {
		var (
			id      string
			class   string
			payload []byte
		)
		err := d.db.QueryRowContext(ctx, dequeueQuery).Scan(&id, &class, &payload)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, wrapError("dequeue", "failed to claim job", err)
		}

		env, err := decodeRow(id, class, payload)
		if err != nil {
			log.Warn("dropping corrupt job row",
				"job_id", id,
				"error", err)
			continue
		}
		return env, nil
	}
}

func decodeRow(id, class string, data []byte) (*domain.Envelope, error) {
	var p domain.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}
	env := &domain.Envelope{Type: class, Payload: p}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if env.Payload == nil {
		env.Payload = domain.Payload{}
	}
	if _, ok := env.Payload.JobID(); !ok {
		env.Payload[domain.KeyJobID] = id
	}
	return env, nil
}

// assignID returns the payload's job id, generating one when absent.
func (d *Driver) assignID(p domain.Payload) (string, error) {
	if raw, ok := p[domain.KeyJobID]; ok && raw != nil {
		id, isString := raw.(string)
		if !isString || id == "" {
			return "", fmt.Errorf("%w: job id must be a non-empty string", domain.ErrInvalidInput)
		}
		return id, nil
	}

	u, err := d.newID()
	if err != nil {
		return "", store.NewStoreError(driverName, "enqueue", "failed to generate job id", err)
	}
	id := u.String()
	p[domain.KeyJobID] = id
	return id, nil
}

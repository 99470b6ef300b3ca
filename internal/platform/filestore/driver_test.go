package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/filequeue/internal/domain"
	"github.com/phrazzld/filequeue/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestDriver(t *testing.T) (*Driver, string) {
	t.Helper()
	base := t.TempDir()
	d, err := New(Config{
		Path:           filepath.Join(base, "storage", "queue"),
		DeadletterPath: filepath.Join(base, "storage", "queue", "deadletter"),
	}, setupTestLogger())
	require.NoError(t, err)
	return d, base
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	d, err := New(Config{Path: "/var/queue"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/var/queue", d.Path())
	assert.Equal(t, "/var/queue/deadletter", d.DeadletterPath())

	caps := d.Capabilities()
	assert.True(t, caps.Has(store.CapQueue|store.CapChannels|store.CapDeadletter|store.CapChannelDeadletter|store.CapReclaim))

	_, err = New(Config{Path: "/var/dl/live", DeadletterPath: "/var/dl"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "live root inside the deadletter root")

	_, err = New(Config{Path: "/var/queue", DeadletterPath: "/var/queue"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "live root equal to the deadletter root")
}

func TestChannelCannotResolveIntoDeadletterStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	require.NoError(t, d.Deadletter(ctx, "RetryJob", domain.Payload{domain.KeyJobID: "x1", "foo": "bar"}, errors.New("boom")))

	for _, channel := range []string{"deadletter", "deadletter/default", "deadletter/default/sub"} {
		t.Run(channel, func(t *testing.T) {
			env, err := d.DequeueFrom(ctx, channel)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Nil(t, env)

			err = d.EnqueueTo(ctx, channel, "SendEmail", domain.Payload{})
			assert.ErrorIs(t, err, domain.ErrInvalidInput)

			_, err = d.ReclaimStale(ctx, channel, time.Minute)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	// Names that only share a prefix with the deadletter root are ordinary channels.
	require.NoError(t, d.EnqueueTo(ctx, "deadletters", "SendEmail", domain.Payload{domain.KeyJobID: "j1"}))
	env, err := d.DequeueFrom(ctx, "deadletters")
	require.NoError(t, err)
	require.NotNil(t, env)

	replayed, err := d.ReplayDeadletters(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed, "the deadletter record is still in place")
}

func TestEnqueueDequeue_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	payload := domain.Payload{"foo": "bar", "count": float64(2), "nested": map[string]any{"a": true}}
	require.NoError(t, d.Enqueue(ctx, "TestJob", payload))

	assert.NotContains(t, payload, domain.KeyJobID, "caller payload must not be modified")

	env, err := d.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "TestJob", env.Type)

	id, ok := env.Payload.JobID()
	require.True(t, ok)
	assert.NotEmpty(t, id)

	want := payload.Clone()
	want[domain.KeyJobID] = id
	assert.Equal(t, want, env.Payload)

	again, err := d.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, again, "dequeued job must be gone")

	assert.Empty(t, listFiles(t, filepath.Join(d.Path(), domain.DefaultChannel)), "no job, lock or temp file may remain")
}

func TestEnqueue_LayoutAndFormat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	require.NoError(t, d.EnqueueTo(ctx, "emails", "SendMail", domain.Payload{domain.KeyJobID: "mail-1", "to": "a@b.c"}))

	data, err := os.ReadFile(filepath.Join(d.Path(), "emails", "mail-1.job"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"class":"SendMail","payload":{"_job_id":"mail-1","to":"a@b.c"}}`, string(data))
}

func TestEnqueue_InvalidInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	cases := []struct {
		name    string
		channel string
		jobType string
		payload domain.Payload
	}{
		{"traversal channel", "../escape", "Job", nil},
		{"embedded traversal", "a/../../b", "Job", nil},
		{"absolute channel", "/tmp/x", "Job", nil},
		{"scheme channel", "s3://bucket", "Job", nil},
		{"bad characters", "chan nel", "Job", nil},
		{"empty job type", "default", "", nil},
		{"traversal job id", "default", "Job", domain.Payload{domain.KeyJobID: "../x"}},
		{"nested job id", "default", "Job", domain.Payload{domain.KeyJobID: "a/b"}},
		{"numeric job id", "default", "Job", domain.Payload{domain.KeyJobID: 12}},
		{"unencodable payload", "default", "Job", domain.Payload{"ch": make(chan int)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := d.EnqueueTo(ctx, tc.channel, tc.jobType, tc.payload)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, err := os.Stat(d.Path())
	assert.True(t, os.IsNotExist(err), "rejected enqueues must not touch the disk")
}

func TestEnqueue_StorageFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := t.TempDir()
	blocker := filepath.Join(base, "queue")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	d, err := New(Config{Path: blocker}, setupTestLogger())
	require.NoError(t, err)

	err = d.Enqueue(ctx, "Job", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorageIO)

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "enqueue", storeErr.Operation)
}

func TestEnqueue_IDGenerationFailure(t *testing.T) {
	t.Parallel()
	d, _ := newTestDriver(t)
	d.newID = func() (string, error) { return "", errors.New("entropy exhausted") }

	err := d.Enqueue(context.Background(), "Job", nil)
	assert.ErrorIs(t, err, store.ErrStorageIO)
}

func TestEnqueue_DuplicateIDReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	require.NoError(t, d.Enqueue(ctx, "First", domain.Payload{domain.KeyJobID: "same"}))
	require.NoError(t, d.Enqueue(ctx, "Second", domain.Payload{domain.KeyJobID: "same"}))

	env, err := d.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "Second", env.Type)

	env, err = d.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, env, "ids are unique within a channel's live scope")
}

func TestDequeue_EmptyAndMissingChannel(t *testing.T) {
	t.Parallel()
	d, _ := newTestDriver(t)

	env, err := d.DequeueFrom(context.Background(), "never-used")
	require.NoError(t, err)
	assert.Nil(t, env)

	_, err = d.DequeueFrom(context.Background(), "../etc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDequeue_FIFOWithExplicitIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	// Enqueued out of order on purpose: order follows the ids.
	require.NoError(t, d.EnqueueTo(ctx, "fifo", "Job3", domain.Payload{domain.KeyJobID: "0003"}))
	require.NoError(t, d.EnqueueTo(ctx, "fifo", "Job1", domain.Payload{domain.KeyJobID: "0001"}))
	require.NoError(t, d.EnqueueTo(ctx, "fifo", "Job2", domain.Payload{domain.KeyJobID: "0002"}))

	for _, want := range []string{"Job1", "Job2", "Job3"} {
		env, err := d.DequeueFrom(ctx, "fifo")
		require.NoError(t, err)
		require.NotNil(t, env)
		assert.Equal(t, want, env.Type)
	}
}

func TestDequeue_FIFOWithGeneratedIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, d.EnqueueTo(ctx, "fifo", "Job", domain.Payload{"seq": float64(i)}))
	}

	for i := 0; i < n; i++ {
		env, err := d.DequeueFrom(ctx, "fifo")
		require.NoError(t, err)
		require.NotNil(t, env)
		assert.Equal(t, float64(i), env.Payload["seq"], "generated ids must preserve arrival order")
	}
}

func TestDequeue_ChannelIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	require.NoError(t, d.EnqueueTo(ctx, "a", "JobA", domain.Payload{"x": float64(1)}))
	require.NoError(t, d.EnqueueTo(ctx, "b", "JobB", domain.Payload{"x": float64(2)}))

	jobA, err := d.DequeueFrom(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, jobA)
	assert.Equal(t, "JobA", jobA.Type)
	assert.Equal(t, float64(1), jobA.Payload["x"])

	jobB, err := d.DequeueFrom(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, jobB)
	assert.Equal(t, "JobB", jobB.Type)
	assert.Equal(t, float64(2), jobB.Payload["x"])

	for _, ch := range []string{"a", "b"} {
		env, err := d.DequeueFrom(ctx, ch)
		require.NoError(t, err)
		assert.Nil(t, env, "channel %s should be drained", ch)
	}
}

func TestDequeue_CorruptRecordQuarantined(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	dir := filepath.Join(d.Path(), domain.DefaultChannel)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Sorts before the valid job so it is claimed first.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0000-broken.job"), []byte(`{not json`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001-noclass.job"), []byte(`{"payload":{}}`), 0o644))
	require.NoError(t, d.Enqueue(ctx, "ValidJob", domain.Payload{domain.KeyJobID: "0002-valid"}))

	env, err := d.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "ValidJob", env.Type)

	quarantined := listFiles(t, filepath.Join(dir, quarantineDir))
	sort.Strings(quarantined)
	assert.Equal(t, []string{"0000-broken.job", "0001-noclass.job"}, quarantined)
	assert.Empty(t, listFiles(t, dir))

	env, err = d.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, env, "quarantined records are never returned")
}

func TestDequeue_AssignsIDFromFilename(t *testing.T) {
	t.Parallel()
	d, _ := newTestDriver(t)

	dir := filepath.Join(d.Path(), domain.DefaultChannel)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handmade.job"), []byte(`{"class":"Job","payload":{"a":1}}`), 0o644))

	env, err := d.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, env)
	id, _ := env.Payload.JobID()
	assert.Equal(t, "handmade", id)
}

func TestDequeue_IgnoresLocksAndTempFiles(t *testing.T) {
	t.Parallel()
	d, _ := newTestDriver(t)

	dir := filepath.Join(d.Path(), domain.DefaultChannel)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range []string{"a.job.lock", "b.job.123.tmp", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{"class":"Job"}`), 0o644))
	}

	env, err := d.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, env)
	assert.Len(t, listFiles(t, dir), 3, "foreign files are left alone")
}

func TestDequeue_ExclusiveClaim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	require.NoError(t, d.Enqueue(ctx, "OnlyJob", nil))

	const racers = 16
	var (
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			<-start
			env, err := d.Dequeue(gctx)
			if err != nil {
				return err
			}
			if env != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, wins, "exactly one racer may claim the job")
}

func TestDequeue_ConcurrentWorkersDeliverEachJobOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDriver(t)

	const jobs = 100
	for i := 0; i < jobs; i++ {
		require.NoError(t, d.EnqueueTo(ctx, "work", "Job", domain.Payload{domain.KeyJobID: fmt.Sprintf("job-%03d", i)}))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for {
				env, err := d.DequeueFrom(gctx, "work")
				if err != nil {
					return err
				}
				if env == nil {
					return nil
				}
				id, _ := env.Payload.JobID()
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s delivered %d times", id, n)
	}
}

func TestDequeue_CancelledContext(t *testing.T) {
	t.Parallel()
	d, _ := newTestDriver(t)
	require.NoError(t, d.Enqueue(context.Background(), "Job", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	env, err := d.Dequeue(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, env, "cancelled dequeue must not consume the job")
}

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	id string
}

func (e testEntity) ExportID() string { return e.id }

func students(n int) []testEntity {
	out := make([]testEntity, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, testEntity{id: fmt.Sprintf("S%02d", i+1)})
	}
	return out
}

// stubEncoder writes a small report file, with optional per-entity
// failures, artificial delay, and blocking for shutdown tests.
type stubEncoder struct {
	format   Format
	ext      string
	delay    time.Duration
	failFor  map[string]bool
	skipFor  map[string]bool
	blockFor map[string]bool
	block    chan struct{}

	current atomic.Int64
	maxSeen atomic.Int64
}

func (e *stubEncoder) Format() Format { return e.format }
func (e *stubEncoder) Ext() string    { return e.ext }

func (e *stubEncoder) Encode(ctx context.Context, entity testEntity, path string) error {
	cur := e.current.Add(1)
	defer e.current.Add(-1)
	for {
		max := e.maxSeen.Load()
		if cur <= max || e.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	if e.blockFor[entity.id] {
		select {
		case <-e.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if e.failFor[entity.id] {
		return fmt.Errorf("boom for %s", entity.id)
	}
	if e.skipFor[entity.id] {
		return nil
	}
	return os.WriteFile(path, []byte("report for "+entity.id), 0o644)
}

func csvStub() *stubEncoder {
	return &stubEncoder{format: "csv", ext: "csv"}
}

func TestNewPool_RejectsBadConfiguration(t *testing.T) {
	_, err := NewPool[testEntity](0, []Encoder[testEntity]{csvStub()})
	require.ErrorContains(t, err, "worker count must be positive")

	_, err = NewPool[testEntity](2, nil)
	require.ErrorContains(t, err, "at least one encoder")

	_, err = NewPool(2, []Encoder[testEntity]{csvStub(), csvStub()})
	require.ErrorContains(t, err, "duplicate encoder")
}

func TestPool_Submit_AllJobsComplete(t *testing.T) {
	dir := t.TempDir()
	pool, err := NewPool(2, []Encoder[testEntity]{csvStub()})
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(5), dir)
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	run.Shutdown()

	counts := run.Counts()
	assert.Equal(t, 5, counts.Submitted)
	assert.Equal(t, 5, counts.Started)
	assert.Equal(t, 5, counts.Completed)
	assert.Equal(t, 0, counts.Failed)
	assert.False(t, run.IsRunning())
	assert.Equal(t, 0, run.ActiveCount())

	for _, job := range run.Jobs() {
		assert.Equal(t, StateCompleted, job.State)
		assert.Empty(t, job.Error)
		assert.Positive(t, job.Duration())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	_, err = os.Stat(filepath.Join(dir, "S03.csv"))
	require.NoError(t, err)

	sum := run.Summary()
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 5, sum.Succeeded)
	assert.Equal(t, 5, sum.FilesWritten)
	assert.Positive(t, sum.BytesWritten)
	assert.Equal(t, 2, sum.Workers)
}

func TestPool_Submit_FanOutWritesPerFormatDirs(t *testing.T) {
	dir := t.TempDir()
	jsonEnc := &stubEncoder{format: "json", ext: "json"}
	pool, err := NewPool(2, []Encoder[testEntity]{csvStub(), jsonEnc})
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(3), dir)
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	run.Shutdown()

	assert.Equal(t, 3, run.Counts().Completed)
	for _, id := range []string{"S01", "S02", "S03"} {
		_, err := os.Stat(filepath.Join(dir, "csv", id+".csv"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, "json", id+".json"))
		require.NoError(t, err)
	}

	job, ok := run.Job("S02")
	require.True(t, ok)
	assert.Equal(t, []Format{"csv", "json"}, job.Formats)
	assert.Len(t, job.Paths, 2)
}

func TestPool_Submit_RejectsDuplicateEntityIDs(t *testing.T) {
	pool, err := NewPool(1, []Encoder[testEntity]{csvStub()})
	require.NoError(t, err)

	_, err = pool.Submit(context.Background(), []testEntity{{id: "S01"}, {id: "S01"}}, t.TempDir())
	require.ErrorContains(t, err, `duplicate entity id "S01"`)
}

func TestPool_Submit_EmptyBatchFinishesImmediately(t *testing.T) {
	pool, err := NewPool(2, []Encoder[testEntity]{csvStub()})
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), nil, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	run.Shutdown()

	assert.False(t, run.IsRunning())
	assert.Zero(t, run.Counts().Submitted)
	assert.Zero(t, run.Summary().Total)
}

func TestPool_Run_EncoderFailureIsIsolated(t *testing.T) {
	enc := csvStub()
	enc.failFor = map[string]bool{"S02": true}
	pool, err := NewPool(2, []Encoder[testEntity]{enc})
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(4), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	run.Shutdown()

	counts := run.Counts()
	assert.Equal(t, 3, counts.Completed)
	assert.Equal(t, 1, counts.Failed)

	job, ok := run.Job("S02")
	require.True(t, ok)
	assert.Equal(t, StateFailed, job.State)
	assert.Contains(t, job.Error, `export S02 as csv`)
	assert.Contains(t, job.Error, "boom for S02")

	sum := run.Summary()
	assert.Equal(t, []string{"S02"}, sum.FailedIDs)
}

func TestPool_Run_MissingOutputFailsVerification(t *testing.T) {
	enc := csvStub()
	enc.skipFor = map[string]bool{"S03": true}
	pool, err := NewPool(2, []Encoder[testEntity]{enc},
		WithVerification[testEntity](time.Millisecond, 3))
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(3), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	run.Shutdown()

	job, ok := run.Job("S03")
	require.True(t, ok)
	assert.Equal(t, StateFailed, job.State)
	assert.Contains(t, job.Error, "not found after 3 checks")
	assert.Contains(t, job.Error, "parent dir exists: true")
	assert.Equal(t, 2, run.Counts().Completed)
}

func TestPool_Run_VerificationFailureLeavesEarlierFormatsOnDisk(t *testing.T) {
	dir := t.TempDir()
	jsonEnc := &stubEncoder{format: "json", ext: "json", skipFor: map[string]bool{"S01": true}}
	pool, err := NewPool(1, []Encoder[testEntity]{csvStub(), jsonEnc},
		WithVerification[testEntity](time.Millisecond, 2))
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(1), dir)
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	run.Shutdown()

	job, ok := run.Job("S01")
	require.True(t, ok)
	assert.Equal(t, StateFailed, job.State)

	// The CSV was written before the JSON went missing and is kept.
	_, err = os.Stat(filepath.Join(dir, "csv", "S01.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "json", "S01.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPool_Run_ConcurrencyStaysWithinWorkerCount(t *testing.T) {
	enc := csvStub()
	enc.delay = 20 * time.Millisecond
	pool, err := NewPool(3, []Encoder[testEntity]{enc})
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(9), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	run.Shutdown()

	assert.Equal(t, 9, run.Counts().Completed)
	assert.LessOrEqual(t, enc.maxSeen.Load(), int64(3))
}

func TestPool_Run_ReRunOverwritesDeterministically(t *testing.T) {
	dir := t.TempDir()
	pool, err := NewPool(2, []Encoder[testEntity]{csvStub()})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		run, err := pool.Submit(context.Background(), students(3), dir)
		require.NoError(t, err)
		require.NoError(t, run.Wait(context.Background()))
		run.Shutdown()
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestPool_Run_TerminalHookSeesEveryJobOnce(t *testing.T) {
	enc := csvStub()
	enc.failFor = map[string]bool{"S04": true}

	var mu sync.Mutex
	var seen []Job[testEntity]
	pool, err := NewPool(2, []Encoder[testEntity]{enc},
		WithTerminalHook(func(job Job[testEntity]) {
			mu.Lock()
			seen = append(seen, job)
			mu.Unlock()
		}))
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(4), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	run.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 4)
	failed := 0
	for _, job := range seen {
		assert.True(t, job.State.Terminal())
		if job.State == StateFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRun_Wait_HonorsContext(t *testing.T) {
	enc := csvStub()
	enc.blockFor = map[string]bool{"S01": true}
	enc.block = make(chan struct{})
	pool, err := NewPool(1, []Encoder[testEntity]{enc},
		WithGracePeriod[testEntity](20*time.Millisecond))
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(1), t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, run.Wait(ctx), context.DeadlineExceeded)

	run.Shutdown()
	assert.False(t, run.IsRunning())
}

func TestRun_Shutdown_ForcesUnfinishedJobsToFailed(t *testing.T) {
	enc := csvStub()
	enc.block = make(chan struct{})
	enc.blockFor = make(map[string]bool)
	for i := 4; i <= 10; i++ {
		enc.blockFor[fmt.Sprintf("S%02d", i)] = true
	}
	pool, err := NewPool(2, []Encoder[testEntity]{enc},
		WithGracePeriod[testEntity](50*time.Millisecond))
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(10), t.TempDir())
	require.NoError(t, err)

	// Three jobs finish cleanly, two sit blocked in flight, five queued.
	require.Eventually(t, func() bool {
		return run.Counts().Terminal() == 3 && run.ActiveCount() == 2
	}, time.Second, 5*time.Millisecond)

	run.Shutdown()

	counts := run.Counts()
	assert.Equal(t, 3, counts.Completed)
	assert.Equal(t, 7, counts.Failed)
	assert.Equal(t, 10, counts.Terminal())
	assert.Equal(t, 5, counts.Started)
	assert.False(t, run.IsRunning())
	require.NoError(t, run.Wait(context.Background()))

	blocked, ok := run.Job("S05")
	require.True(t, ok)
	assert.Equal(t, StateFailed, blocked.State)
	assert.Contains(t, blocked.Error, "interrupted by shutdown")

	queued, ok := run.Job("S09")
	require.True(t, ok)
	assert.Equal(t, StateFailed, queued.State)
	assert.Contains(t, queued.Error, "interrupted by shutdown")
	assert.Zero(t, queued.Duration())
}

func TestRun_Shutdown_IsIdempotent(t *testing.T) {
	pool, err := NewPool(2, []Encoder[testEntity]{csvStub()})
	require.NoError(t, err)

	run, err := pool.Submit(context.Background(), students(3), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))

	run.Shutdown()
	run.Shutdown()

	counts := run.Counts()
	assert.Equal(t, 3, counts.Completed)
	assert.Equal(t, 0, counts.Failed)
}

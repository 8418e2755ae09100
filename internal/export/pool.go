package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edukit/gradebatch/pkg/log"
)

const defaultGracePeriod = 10 * time.Second

// Pool is a fixed-size worker pool for batch export runs. A pool is
// reusable configuration; every Submit starts an independent Run.
type Pool[T Entity] struct {
	workers  int
	encoders []Encoder[T]
	verify   verifier
	grace    time.Duration
	hook     func(Job[T])
}

// Option adjusts pool behavior.
type Option[T Entity] func(*Pool[T])

// WithGracePeriod sets how long Shutdown waits for in-flight jobs
// before forcing cancellation.
func WithGracePeriod[T Entity](d time.Duration) Option[T] {
	return func(p *Pool[T]) {
		if d > 0 {
			p.grace = d
		}
	}
}

// WithVerification overrides the output visibility check bounds.
func WithVerification[T Entity](interval time.Duration, attempts int) Option[T] {
	return func(p *Pool[T]) {
		p.verify = newVerifier(interval, attempts)
	}
}

// WithTerminalHook registers fn to run after every terminal transition
// with a copy of the finished job. Used to feed the audit trail.
func WithTerminalHook[T Entity](fn func(Job[T])) Option[T] {
	return func(p *Pool[T]) {
		p.hook = fn
	}
}

// NewPool validates the worker count and encoder set up front so a
// misconfigured run fails before any job starts.
func NewPool[T Entity](workers int, encoders []Encoder[T], opts ...Option[T]) (*Pool[T], error) {
	if workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", workers)
	}
	if len(encoders) == 0 {
		return nil, fmt.Errorf("at least one encoder is required")
	}
	seen := make(map[Format]bool, len(encoders))
	for _, enc := range encoders {
		if seen[enc.Format()] {
			return nil, fmt.Errorf("duplicate encoder for format %q", enc.Format())
		}
		seen[enc.Format()] = true
	}

	p := &Pool[T]{
		workers:  workers,
		encoders: encoders,
		verify:   newVerifier(0, 0),
		grace:    defaultGracePeriod,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Submit creates one job per entity under outputDir, starts the
// workers, and returns immediately with the live Run handle. With more
// than one encoder each format writes into its own subdirectory.
// Entity IDs must be unique because output paths are derived from
// them.
func (p *Pool[T]) Submit(ctx context.Context, entities []T, outputDir string) (*Run[T], error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	fanOut := len(p.encoders) > 1
	if err := ensureOutputDirs(outputDir, p.encoders, fanOut); err != nil {
		return nil, err
	}

	run := &Run[T]{
		pool:      p,
		total:     len(entities),
		outputDir: outputDir,
		table:     newTable[T](len(entities)),
		pending:   make(chan string, len(entities)),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	run.ctx, run.cancel = context.WithCancel(ctx)

	for _, entity := range entities {
		job := newJob(entity, p.encoders, outputDir, fanOut)
		if !run.table.put(job) {
			run.cancel()
			return nil, fmt.Errorf("duplicate entity id %q", job.ID)
		}
		run.counters.submitted.Add(1)
		run.pending <- job.ID
	}
	// Workers drain the closed channel and exit on their own.
	close(run.pending)

	if run.total == 0 {
		run.closeDone()
	}

	log.Info("Batch export started: %d jobs, %d workers, output %s", run.total, p.workers, outputDir)
	for i := 0; i < p.workers; i++ {
		run.wg.Add(1)
		go run.worker()
	}
	return run, nil
}

// OutputPath returns the deterministic file path for one entity and
// format. Re-running a batch with the same inputs overwrites in place.
func OutputPath(outputDir, entityID string, format Format, ext string, fanOut bool) string {
	name := entityID + "." + ext
	if fanOut {
		return filepath.Join(outputDir, string(format), name)
	}
	return filepath.Join(outputDir, name)
}

func newJob[T Entity](entity T, encoders []Encoder[T], outputDir string, fanOut bool) *Job[T] {
	job := &Job[T]{
		Entity:  entity,
		ID:      entity.ExportID(),
		Formats: make([]Format, 0, len(encoders)),
		Paths:   make([]string, 0, len(encoders)),
		State:   StateQueued,
	}
	for _, enc := range encoders {
		job.Formats = append(job.Formats, enc.Format())
		job.Paths = append(job.Paths, OutputPath(outputDir, job.ID, enc.Format(), enc.Ext(), fanOut))
	}
	return job
}

func ensureOutputDirs[T Entity](outputDir string, encoders []Encoder[T], fanOut bool) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if !fanOut {
		return nil
	}
	for _, enc := range encoders {
		sub := filepath.Join(outputDir, string(enc.Format()))
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("create format directory %s: %w", sub, err)
		}
	}
	return nil
}

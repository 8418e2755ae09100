package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edukit/gradebatch/pkg/log"
)

// Run is the live handle for one submitted batch. Workers write job
// results into the status table and counters; every reader gets
// snapshots, so inspecting a run never blocks the workers.
type Run[T Entity] struct {
	pool      *Pool[T]
	total     int
	outputDir string
	startedAt time.Time

	table    *table[T]
	counters counters

	ctx     context.Context
	cancel  context.CancelFunc
	pending chan string
	wg      sync.WaitGroup

	done       chan struct{}
	doneOnce   sync.Once
	finishedNS atomic.Int64

	shutdownOnce sync.Once
}

func (r *Run[T]) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case id, ok := <-r.pending:
			if !ok {
				return
			}
			r.process(id)
		}
	}
}

// process runs the per-job pipeline: encode, verify, record. A failure
// here is isolated to the job; the worker moves on to the next one.
func (r *Run[T]) process(id string) {
	job, ok := r.table.markRunning(id)
	if !ok {
		return
	}
	r.counters.started.Add(1)

	if err := r.encode(job); err != nil {
		log.Error("Export failed for %s: %v", id, err)
		r.finish(id, StateFailed, err)
		return
	}
	if !r.table.markVerifying(id) {
		return
	}
	if err := r.verifyOutputs(job); err != nil {
		log.Error("Verification failed for %s: %v", id, err)
		r.finish(id, StateFailed, err)
		return
	}
	r.finish(id, StateCompleted, nil)
}

// encode renders every selected format for the job. The first encoder
// error aborts the remaining formats.
func (r *Run[T]) encode(job *Job[T]) error {
	for i, enc := range r.pool.encoders {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(r.ctx, job.Entity, job.Paths[i]); err != nil {
			return &ExportError{EntityID: job.ID, Format: enc.Format(), Err: err}
		}
	}
	return nil
}

// verifyOutputs confirms every expected file became visible. The first
// missing path fails the whole job even when other formats were
// written; files already on disk are left in place.
func (r *Run[T]) verifyOutputs(job *Job[T]) error {
	for _, path := range job.Paths {
		if err := r.pool.verify.waitFor(r.ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// finish performs the terminal transition. The table arbitrates: only
// the winner increments a counter, so a worker racing a forced
// shutdown can never double-count a job.
func (r *Run[T]) finish(id string, state State, cause error) {
	if cause != nil && errors.Is(cause, context.Canceled) {
		cause = ErrInterrupted
	}
	d, won := r.table.markTerminal(id, state, cause)
	if !won {
		return
	}
	r.counters.addDuration(d)
	if state == StateCompleted {
		r.counters.completed.Add(1)
	} else {
		r.counters.failed.Add(1)
	}
	if r.pool.hook != nil {
		if job, ok := r.table.get(id); ok {
			r.pool.hook(*job)
		}
	}
	if r.counters.terminal() == r.total {
		r.closeDone()
	}
}

func (r *Run[T]) closeDone() {
	r.doneOnce.Do(func() {
		r.finishedNS.Store(time.Now().UnixNano())
		close(r.done)
	})
}

// Wait blocks until every job reaches a terminal state or ctx is
// cancelled. Even after a clean wait the caller still owns a Shutdown
// call to release the workers.
func (r *Run[T]) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done exposes the completion signal for select loops.
func (r *Run[T]) Done() <-chan struct{} { return r.done }

// Shutdown drains the run in two phases: wait up to the grace period
// for the queue to drain, then cancel the workers and fail whatever is
// left as interrupted. Safe to call more than once.
func (r *Run[T]) Shutdown() {
	r.shutdownOnce.Do(func() {
		drained := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-time.After(r.pool.grace):
			log.Warn("Graceful drain timed out after %s, forcing cancellation", r.pool.grace)
		}
		r.cancel()

		interrupted := 0
		for _, id := range r.table.nonTerminal() {
			r.finish(id, StateFailed, ErrInterrupted)
			interrupted++
		}
		if interrupted > 0 {
			log.Warn("Marked %d unfinished jobs as interrupted", interrupted)
		}
		r.closeDone()
	})
}

// IsRunning reports whether any job has not yet reached a terminal
// state.
func (r *Run[T]) IsRunning() bool {
	return r.counters.terminal() < r.total
}

// ActiveCount reports jobs currently running or verifying.
func (r *Run[T]) ActiveCount() int { return r.table.active() }

// Counts returns a point-in-time copy of the progress counters.
func (r *Run[T]) Counts() Counts { return r.counters.counts() }

// Jobs returns clones of every job in submission order.
func (r *Run[T]) Jobs() []*Job[T] { return r.table.list() }

// Job returns a clone of one job by entity ID.
func (r *Run[T]) Job(id string) (*Job[T], bool) { return r.table.get(id) }

// Total returns the number of submitted jobs.
func (r *Run[T]) Total() int { return r.total }

// OutputDir returns the directory the run writes into.
func (r *Run[T]) OutputDir() string { return r.outputDir }

// StartedAt returns the submission time.
func (r *Run[T]) StartedAt() time.Time { return r.startedAt }

// Elapsed returns wall time since submission, frozen once the run
// finished.
func (r *Run[T]) Elapsed() time.Duration {
	if ns := r.finishedNS.Load(); ns > 0 {
		return time.Unix(0, ns).Sub(r.startedAt)
	}
	return time.Since(r.startedAt)
}

// AvgJobDuration returns the running mean duration of finished jobs.
func (r *Run[T]) AvgJobDuration() time.Duration {
	return r.counters.avgDuration()
}

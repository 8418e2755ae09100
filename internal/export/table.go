package export

import (
	"sync"
	"time"
)

// table is the per-run status table: job state and timing keyed by
// entity ID. Writes go through state-checked transitions so a terminal
// state is never overwritten, and reads hand out clones.
type table[T Entity] struct {
	mu    sync.RWMutex
	jobs  map[string]*Job[T]
	order []string
}

func newTable[T Entity](size int) *table[T] {
	return &table[T]{
		jobs:  make(map[string]*Job[T], size),
		order: make([]string, 0, size),
	}
}

// put registers a new job, rejecting duplicate IDs.
func (t *table[T]) put(job *Job[T]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.jobs[job.ID]; exists {
		return false
	}
	t.jobs[job.ID] = job
	t.order = append(t.order, job.ID)
	return true
}

func (t *table[T]) get(id string) (*Job[T], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// list returns job clones in submission order.
func (t *table[T]) list() []*Job[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Job[T], 0, len(t.order))
	for _, id := range t.order {
		out = append(out, cloneJob(t.jobs[id]))
	}
	return out
}

// markRunning moves a queued job to running and stamps its start time.
func (t *table[T]) markRunning(id string) (*Job[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok || job.State != StateQueued {
		return nil, false
	}
	job.State = StateRunning
	job.StartedAt = time.Now()
	return cloneJob(job), true
}

// markVerifying moves a running job to verifying. It reports false
// when the job was already forced to a terminal state.
func (t *table[T]) markVerifying(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok || job.State != StateRunning {
		return false
	}
	job.State = StateVerifying
	return true
}

// markTerminal is the single gate into completed/failed. Exactly one
// caller wins it per job, and the winner owns the matching counter
// increment. Jobs already terminal are left untouched.
func (t *table[T]) markTerminal(id string, state State, cause error) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok || job.State.Terminal() {
		return 0, false
	}
	job.State = state
	job.FinishedAt = time.Now()
	if cause != nil {
		job.Error = cause.Error()
	}
	return job.Duration(), true
}

// active counts jobs currently running or verifying.
func (t *table[T]) active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, job := range t.jobs {
		if job.State == StateRunning || job.State == StateVerifying {
			n++
		}
	}
	return n
}

// nonTerminal returns IDs of unfinished jobs in submission order.
func (t *table[T]) nonTerminal() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, id := range t.order {
		if !t.jobs[id].State.Terminal() {
			out = append(out, id)
		}
	}
	return out
}

// failedIDs returns IDs of failed jobs in submission order.
func (t *table[T]) failedIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, id := range t.order {
		if t.jobs[id].State == StateFailed {
			out = append(out, id)
		}
	}
	return out
}

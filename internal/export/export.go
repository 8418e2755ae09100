package export

import (
	"context"
	"time"
)

// Entity is one unit of work in a batch run. Implementations are
// read-only snapshots; the engine never mutates them.
type Entity interface {
	// ExportID uniquely identifies the entity within a run and names
	// its output files.
	ExportID() string
}

// Encoder renders one entity to one file format at the given path.
// The parent directory is guaranteed to exist before Encode is called.
type Encoder[T Entity] interface {
	Format() Format
	Ext() string
	Encode(ctx context.Context, entity T, path string) error
}

// Format tags one output file format.
type Format string

// State tracks a job through its lifecycle. Completed and failed are
// terminal: once entered, a job never leaves them.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateVerifying State = "verifying"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is the unit of work for one entity. Formats and Paths are fixed
// at submission; the remaining fields are written only by the worker
// that owns the job, and everyone else reads clones.
type Job[T Entity] struct {
	Entity     T         `json:"-"`
	ID         string    `json:"id"`
	Formats    []Format  `json:"formats"`
	Paths      []string  `json:"paths"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration reports how long the job ran. Zero until the job is
// terminal, and zero for jobs interrupted before they started.
func (j *Job[T]) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

func cloneJob[T Entity](job *Job[T]) *Job[T] {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}

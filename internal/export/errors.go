package export

import (
	"errors"
	"fmt"
)

// ErrInterrupted is recorded on jobs cut off by a forced shutdown
// before they reached a terminal state on their own.
var ErrInterrupted = errors.New("interrupted by shutdown")

// ExportError reports an encoder failure for one job. The run carries
// on; only the affected job is counted failed.
type ExportError struct {
	EntityID string
	Format   Format
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s as %s: %v", e.EntityID, e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// VerificationError reports an output file that never became visible
// within the retry bound. ParentExists distinguishes a missing file
// from a missing directory when reading the logs.
type VerificationError struct {
	Path         string
	AbsPath      string
	ParentExists bool
	Attempts     int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("output file not found after %d checks: %s (absolute: %s, parent dir exists: %t)",
		e.Attempts, e.Path, e.AbsPath, e.ParentExists)
}

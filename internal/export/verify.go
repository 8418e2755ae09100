package export

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Defaults for the output visibility check. Some backing filesystems
// delay visibility of a fresh write, so a missing file is re-checked
// on a short interval before the job is failed.
const (
	defaultVerifyInterval = 10 * time.Millisecond
	defaultVerifyAttempts = 10
)

// verifier polls for expected output files within a bounded window.
type verifier struct {
	interval time.Duration
	attempts int
}

func newVerifier(interval time.Duration, attempts int) verifier {
	if interval <= 0 {
		interval = defaultVerifyInterval
	}
	if attempts <= 0 {
		attempts = defaultVerifyAttempts
	}
	return verifier{interval: interval, attempts: attempts}
}

// waitFor blocks until path exists, the retry bound is exhausted, or
// ctx is cancelled. The first check is immediate since most files are
// already visible by the time verification starts.
func (v verifier) waitFor(ctx context.Context, path string) error {
	if fileExists(path) {
		return nil
	}
	for attempt := 0; attempt < v.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(v.interval):
		}
		if fileExists(path) {
			return nil
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &VerificationError{
		Path:         path,
		AbsPath:      abs,
		ParentExists: dirExists(filepath.Dir(path)),
		Attempts:     v.attempts,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

package export

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

const (
	defaultTickInterval = 50 * time.Millisecond
	progressBarWidth    = 40
)

// Monitor renders a live progress line for a run on a fixed tick. It
// only reads counter and table snapshots, so it never blocks the
// workers.
type Monitor[T Entity] struct {
	run      *Run[T]
	out      io.Writer
	interval time.Duration
}

// NewMonitor builds a monitor writing to out. An interval of zero
// selects the default tick.
func NewMonitor[T Entity](run *Run[T], out io.Writer, interval time.Duration) *Monitor[T] {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &Monitor[T]{run: run, out: out, interval: interval}
}

// Run redraws the progress line until every job is terminal or ctx is
// cancelled, then finishes the line with a newline. It blocks; callers
// run it in the goroutine that submitted the batch.
func (m *Monitor[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.render()
		select {
		case <-ctx.Done():
			fmt.Fprintln(m.out)
			return
		case <-m.run.Done():
			m.render()
			fmt.Fprintln(m.out)
			return
		case <-ticker.C:
		}
	}
}

// render rewrites the single progress line in place.
func (m *Monitor[T]) render() {
	counts := m.run.Counts()
	done := counts.Terminal()
	total := m.run.Total()
	elapsed := m.run.Elapsed()

	percent := 0.0
	filled := 0
	if total > 0 {
		percent = float64(done) / float64(total) * 100
		filled = int(float64(done) / float64(total) * progressBarWidth)
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	avg := m.run.AvgJobDuration()
	remaining := time.Duration(total-done) * avg
	// Floor the elapsed time at one second so early throughput readings
	// are not wildly inflated.
	throughput := float64(counts.Completed) / math.Max(elapsed.Seconds(), 1)

	fmt.Fprintf(m.out, "\rProgress: [%s] %3.0f%% (%d/%d) | Elapsed: %.1fs | Est. remaining: %.1fs | Avg: %dms | Throughput: %.2f/sec",
		bar, percent, done, total, elapsed.Seconds(), remaining.Seconds(), avg.Milliseconds(), throughput)
	if counts.Failed > 0 {
		fmt.Fprintf(m.out, " | Failed: %d", counts.Failed)
	}
	if active := m.run.ActiveCount(); active > 0 {
		fmt.Fprintf(m.out, " | Active: %d", active)
	}
}

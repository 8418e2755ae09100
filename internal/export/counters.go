package export

import (
	"sync/atomic"
	"time"
)

// counters tracks aggregate run progress with lock-free increments.
// Each counter moves exactly once per job, at the matching state
// transition, so completed+failed converges on the submitted total.
type counters struct {
	submitted atomic.Int64
	started   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	// durationNS sums terminal job durations so the running average
	// is O(1) to read.
	durationNS atomic.Int64
	timed      atomic.Int64
}

func (c *counters) terminal() int {
	return int(c.completed.Load() + c.failed.Load())
}

func (c *counters) addDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	c.durationNS.Add(int64(d))
	c.timed.Add(1)
}

// avgDuration returns the mean duration of jobs that actually ran.
func (c *counters) avgDuration() time.Duration {
	n := c.timed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.durationNS.Load() / n)
}

func (c *counters) counts() Counts {
	return Counts{
		Submitted: int(c.submitted.Load()),
		Started:   int(c.started.Load()),
		Completed: int(c.completed.Load()),
		Failed:    int(c.failed.Load()),
	}
}

// Counts is a point-in-time copy of the run counters.
type Counts struct {
	Submitted int `json:"submitted"`
	Started   int `json:"started"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Terminal returns how many jobs have reached a final state.
func (c Counts) Terminal() int { return c.Completed + c.Failed }

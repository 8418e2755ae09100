package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Start_FiresOnSchedule(t *testing.T) {
	var runs atomic.Int64
	// Cron granularity bottoms out at one second.
	r := NewRunner("@every 1s", func(_ context.Context) error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRunner_Start_RejectsBadExpression(t *testing.T) {
	r := NewRunner("every minute or so", func(_ context.Context) error { return nil })
	require.ErrorContains(t, r.Start(context.Background()), "register cron")
}

func TestRunner_TriggerNow_CollapsesOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int64
	r := NewRunner("0 2 * * *", func(_ context.Context) error {
		runs.Add(1)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.TriggerNow(context.Background())
	}()

	// First run must be in flight before the overlapping triggers fire.
	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 5*time.Millisecond)

	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			r.TriggerNow(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), runs.Load())
	assert.Equal(t, int64(1), r.Triggered())
}

func TestRunner_TriggerNow_SkipsAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var runs atomic.Int64
	r := NewRunner("0 2 * * *", func(_ context.Context) error {
		runs.Add(1)
		return nil
	})

	r.TriggerNow(ctx)
	assert.Zero(t, runs.Load())
	assert.Zero(t, r.Triggered())
}

func TestRunner_TriggerNow_ReportsRunError(t *testing.T) {
	r := NewRunner("0 2 * * *", func(_ context.Context) error {
		return errors.New("export blew up")
	})

	// The error is logged, not returned; the runner must survive it.
	r.TriggerNow(context.Background())
	r.TriggerNow(context.Background())
	assert.Equal(t, int64(2), r.Triggered())
}

package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/edukit/gradebatch/pkg/icron"
	"github.com/edukit/gradebatch/pkg/log"
)

// RunFunc executes one scheduled export run.
type RunFunc func(ctx context.Context) error

// Runner triggers batch exports on a cron schedule. Triggers that
// arrive while a run is still in flight collapse into it through
// singleflight instead of stacking up.
type Runner struct {
	expr string
	run  RunFunc
	cron *cron.Cron
	sf   singleflight.Group

	triggered atomic.Int64
	collapsed atomic.Int64
}

func NewRunner(expr string, run RunFunc) *Runner {
	return &Runner{
		expr: expr,
		run:  run,
		cron: cron.New(),
	}
}

// Start registers the schedule and starts the cron loop. ctx bounds
// every triggered run.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.expr, func() { r.trigger(ctx) }); err != nil {
		return fmt.Errorf("register cron %q: %w", r.expr, err)
	}
	if info, err := icron.GetTriggerInfo(r.expr, time.Now()); err == nil {
		log.Info("Export schedule registered: %s", info)
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron loop and returns once the in-flight cron slot
// has drained.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	log.Info("Export schedule stopped")
}

// TriggerNow fires the run out of schedule, subject to the same
// collapse rule as cron triggers.
func (r *Runner) TriggerNow(ctx context.Context) {
	r.trigger(ctx)
}

// Triggered reports how many triggers actually ran.
func (r *Runner) Triggered() int64 { return r.triggered.Load() }

func (r *Runner) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	called := false
	_, err, shared := r.sf.Do("export", func() (any, error) {
		called = true
		r.triggered.Add(1)
		return nil, r.run(ctx)
	})
	if shared && !called {
		r.collapsed.Add(1)
		log.Warn("Export trigger overlapped an in-flight run, collapsed")
		return
	}
	if err != nil {
		log.Error("Scheduled export failed: %v", err)
	}
}

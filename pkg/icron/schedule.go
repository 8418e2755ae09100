package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// lookback bounds the backward search for the previous trigger. Any
// standard cron expression fires at least once within a year.
const lookback = 366 * 24 * time.Hour

// TriggerInfo describes where a cron expression sits relative to a
// reference time.
type TriggerInfo struct {
	Expression string
	Last       time.Time
	Next       time.Time

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

// GetTriggerInfo parses a standard five-field cron expression (or a
// descriptor like @daily) and locates its previous and next triggers
// around refTime. Last is zero when nothing fired within the lookback
// window.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
		Last:       lastTrigger(schedule, refTime),
	}
	info.TimeUntilNext = info.Next.Sub(refTime)
	if !info.Last.IsZero() {
		info.TimeSinceLast = refTime.Sub(info.Last)
	}
	return info, nil
}

// lastTrigger finds the latest trigger at or before refTime: probe
// backwards with doubling offsets until some trigger lands inside the
// window, then walk forward to the last one.
func lastTrigger(schedule cron.Schedule, refTime time.Time) time.Time {
	var last time.Time
	for back := time.Hour; back <= lookback; back *= 2 {
		if c := schedule.Next(refTime.Add(-back)); !c.After(refTime) {
			last = c
			break
		}
	}
	if last.IsZero() {
		return last
	}
	for {
		next := schedule.Next(last)
		if next.IsZero() || !next.After(last) || next.After(refTime) {
			return last
		}
		last = next
	}
}

// String renders the trigger info for schedule logs.
func (i *TriggerInfo) String() string {
	if i.Last.IsZero() {
		return fmt.Sprintf("%q next %s (in %s)",
			i.Expression, i.Next.Format(time.RFC3339), i.TimeUntilNext.Round(time.Second))
	}
	return fmt.Sprintf("%q last %s (%s ago), next %s (in %s)",
		i.Expression, i.Last.Format(time.RFC3339), i.TimeSinceLast.Round(time.Second),
		i.Next.Format(time.RFC3339), i.TimeUntilNext.Round(time.Second))
}

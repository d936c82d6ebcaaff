// Package scheduler drives a bridge at a fixed tick rate and hands each
// tick's snapshot to the output sinks.
package scheduler

import (
	"context"
	"time"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/monitor"
	"github.com/banshee-data/mocap.bridge/internal/output"
	"github.com/banshee-data/mocap.bridge/internal/timeutil"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = 10 * time.Millisecond

// Runner owns the bridge for the duration of Run. Nothing else may call the
// bridge while Run is active.
type Runner struct {
	Bridge *bridge.Bridge
	Sink   output.Sink        // may be nil
	Stats  *monitor.TickStats // may be nil
	Clock  timeutil.Clock     // nil means the real clock

	Interval      time.Duration
	StatsInterval time.Duration // 0 disables periodic stats logging

	// OnTick, if set, is called after each tick is published.
	OnTick func(bridge.Snapshot)

	settled bridge.Snapshot
}

// Settled returns the snapshot taken right after Initialize, which records
// whether the session reached connected and streaming.
func (r *Runner) Settled() bridge.Snapshot { return r.settled }

func (r *Runner) initialize() {
	r.Bridge.Initialize()
	r.settled = r.Bridge.Snapshot()
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

func (r *Runner) tick() bridge.Snapshot {
	s := r.Bridge.Step()
	if r.Stats != nil {
		r.Stats.AddTick(s.Fresh)
	}
	if r.Sink != nil {
		r.Sink.Publish(s)
	}
	if r.OnTick != nil {
		r.OnTick(s)
	}
	return s
}

// Run initializes the bridge, ticks it until ctx is done and then shuts it
// down. Shutdown happens exactly once however Run returns, including when
// ctx is already done or a sink panics. It returns the last snapshot.
func (r *Runner) Run(ctx context.Context) (last bridge.Snapshot) {
	defer func() {
		r.Bridge.Shutdown()
		last = r.Bridge.Snapshot()
	}()
	if ctx.Err() != nil {
		return
	}

	r.initialize()

	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := r.clock()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if r.Stats != nil && r.StatsInterval > 0 {
		statsTicker := clock.NewTicker(r.StatsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.tick()
		case <-statsC:
			r.Stats.LogStats()
		}
	}
}

// RunTicks initializes the bridge, runs n ticks back to back and shuts the
// bridge down. It returns the last snapshot.
func (r *Runner) RunTicks(n int) (last bridge.Snapshot) {
	defer func() {
		r.Bridge.Shutdown()
		last = r.Bridge.Snapshot()
	}()
	r.initialize()
	for i := 0; i < n; i++ {
		r.tick()
	}
	return
}

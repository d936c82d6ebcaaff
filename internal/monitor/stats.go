package monitor

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mocap.bridge/internal/monitoring"
	"github.com/banshee-data/mocap.bridge/internal/timeutil"
)

// StatsSnapshot is the tick statistics for one logging window.
type StatsSnapshot struct {
	TicksPerSec  float64   `json:"ticks_per_sec"`
	FramesPerSec float64   `json:"frames_per_sec"`
	StaleRatio   float64   `json:"stale_ratio"`
	IntervalMean float64   `json:"interval_mean_ms"`
	IntervalStd  float64   `json:"interval_std_ms"`
	DroppedCount int64     `json:"dropped"`
	Timestamp    time.Time `json:"timestamp"`
}

// TickStats tracks scheduler tick statistics with thread-safe operations.
type TickStats struct {
	mu             sync.Mutex
	clock          timeutil.Clock
	tickCount      int64
	freshCount     int64
	droppedCount   int64
	intervals      []float64 // milliseconds between consecutive ticks
	lastTick       time.Time
	lastReset      time.Time
	startTime      time.Time
	latestSnapshot *StatsSnapshot
}

// NewTickStats creates a TickStats. A nil clock means the real clock.
func NewTickStats(clock timeutil.Clock) *TickStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	now := clock.Now()
	return &TickStats{
		clock:     clock,
		lastReset: now,
		startTime: now,
	}
}

// AddTick records one scheduler tick. fresh is true when the tick produced
// a new frame.
func (ts *TickStats) AddTick(fresh bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	now := ts.clock.Now()
	if !ts.lastTick.IsZero() {
		ts.intervals = append(ts.intervals, float64(now.Sub(ts.lastTick))/float64(time.Millisecond))
	}
	ts.lastTick = now
	ts.tickCount++
	if fresh {
		ts.freshCount++
	}
}

// AddDropped increments the count of outputs dropped by a full sink.
func (ts *TickStats) AddDropped() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.droppedCount++
}

// GetAndReset returns the current window and starts a new one.
func (ts *TickStats) GetAndReset() StatsSnapshot {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.clock.Now()
	secs := now.Sub(ts.lastReset).Seconds()
	snap := StatsSnapshot{
		DroppedCount: ts.droppedCount,
		Timestamp:    now,
	}
	if secs > 0 {
		snap.TicksPerSec = float64(ts.tickCount) / secs
		snap.FramesPerSec = float64(ts.freshCount) / secs
	}
	if ts.tickCount > 0 {
		snap.StaleRatio = float64(ts.tickCount-ts.freshCount) / float64(ts.tickCount)
	}
	if len(ts.intervals) > 0 {
		snap.IntervalMean, snap.IntervalStd = stat.MeanStdDev(ts.intervals, nil)
		if len(ts.intervals) == 1 {
			snap.IntervalStd = 0
		}
	}

	ts.tickCount = 0
	ts.freshCount = 0
	ts.droppedCount = 0
	ts.intervals = ts.intervals[:0]
	ts.lastReset = now
	return snap
}

// LogStats logs the current window and stores it for the web interface.
func (ts *TickStats) LogStats() {
	snap := ts.GetAndReset()
	if snap.TicksPerSec == 0 && snap.DroppedCount == 0 {
		return
	}

	ts.mu.Lock()
	ts.latestSnapshot = &snap
	ts.mu.Unlock()

	logMsg := fmt.Sprintf("Bridge stats (/sec): %.1f ticks, %.1f frames, %.0f%% stale, interval %.2f±%.2f ms",
		snap.TicksPerSec, snap.FramesPerSec, snap.StaleRatio*100, snap.IntervalMean, snap.IntervalStd)
	if snap.DroppedCount > 0 {
		logMsg += fmt.Sprintf(", %d dropped on output", snap.DroppedCount)
	}
	monitoring.Logf("%s", logMsg)
}

// GetUptime returns the time since the stats were created.
func (ts *TickStats) GetUptime() time.Duration {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.clock.Since(ts.startTime)
}

// GetLatestSnapshot returns the most recent logged window, or nil.
func (ts *TickStats) GetLatestSnapshot() *StatsSnapshot {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.latestSnapshot == nil {
		return nil
	}
	snapshot := *ts.latestSnapshot
	return &snapshot
}

// FormatWithCommas formats a number with thousands separators
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	neg := false
	if n < 0 {
		neg = true
		str = str[1:]
	}
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	if neg {
		return "-" + result
	}
	return result
}

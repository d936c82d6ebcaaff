package monitor

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mocap.bridge/internal/monitoring"
	"github.com/banshee-data/mocap.bridge/internal/timeutil"
)

func TestTickStatsWindow(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	ts := NewTickStats(clock)

	// 10 ticks 10ms apart, every other one fresh.
	for i := 0; i < 10; i++ {
		ts.AddTick(i%2 == 0)
		clock.Advance(10 * time.Millisecond)
	}
	ts.AddDropped()

	snap := ts.GetAndReset()
	assert.InDelta(t, 100.0, snap.TicksPerSec, 1e-9)
	assert.InDelta(t, 50.0, snap.FramesPerSec, 1e-9)
	assert.InDelta(t, 0.5, snap.StaleRatio, 1e-9)
	assert.InDelta(t, 10.0, snap.IntervalMean, 1e-9)
	assert.InDelta(t, 0.0, snap.IntervalStd, 1e-9)
	assert.Equal(t, int64(1), snap.DroppedCount)

	// Counters reset for the next window.
	clock.Advance(time.Second)
	next := ts.GetAndReset()
	assert.Zero(t, next.TicksPerSec)
	assert.Zero(t, next.DroppedCount)
}

func TestTickStatsJitter(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	ts := NewTickStats(clock)

	ts.AddTick(true)
	for _, d := range []time.Duration{8, 12, 8, 12} {
		clock.Advance(d * time.Millisecond)
		ts.AddTick(true)
	}
	snap := ts.GetAndReset()
	assert.InDelta(t, 10.0, snap.IntervalMean, 1e-9)
	// Unbiased sample standard deviation of {8,12,8,12}.
	assert.InDelta(t, 2.309401, snap.IntervalStd, 1e-6)
}

func TestTickStatsLogStats(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	ts := NewTickStats(clock)

	// Nothing to report yet.
	clock.Advance(time.Second)
	ts.LogStats()
	assert.Empty(t, lines)
	assert.Nil(t, ts.GetLatestSnapshot())

	for i := 0; i < 5; i++ {
		ts.AddTick(false)
		clock.Advance(100 * time.Millisecond)
	}
	ts.AddDropped()
	ts.LogStats()

	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "Bridge stats (/sec): 10.0 ticks, 0.0 frames, 100% stale"), lines[0])
	assert.Contains(t, lines[0], "1 dropped on output")

	snap := ts.GetLatestSnapshot()
	require.NotNil(t, snap)
	assert.InDelta(t, 10.0, snap.TicksPerSec, 1e-9)
}

func TestTickStatsUptime(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	ts := NewTickStats(clock)
	clock.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, ts.GetUptime())
}

func TestFormatWithCommas(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatWithCommas(tt.in))
	}
}

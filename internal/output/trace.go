package output

import (
	"sync"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/mocap"
)

// TracePoint is one tick of output history.
type TracePoint struct {
	Tick   uint64             `json:"tick"`
	Vector mocap.OutputVector `json:"vector"`
	Fresh  bool               `json:"fresh"`
}

// Trace is a fixed-size ring of recent output vectors, kept in memory for
// the live chart.
type Trace struct {
	mu   sync.Mutex
	buf  []TracePoint
	next int
	full bool
}

// NewTrace returns a ring holding the last size ticks. size <= 0 keeps
// nothing.
func NewTrace(size int) *Trace {
	if size < 0 {
		size = 0
	}
	return &Trace{buf: make([]TracePoint, size)}
}

// Publish appends s, overwriting the oldest point once full.
func (t *Trace) Publish(s bridge.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) == 0 {
		return
	}
	t.buf[t.next] = TracePoint{Tick: s.Tick, Vector: s.Vector, Fresh: s.Fresh}
	t.next++
	if t.next == len(t.buf) {
		t.next = 0
		t.full = true
	}
}

// Points returns the retained points, oldest first.
func (t *Trace) Points() []TracePoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]TracePoint(nil), t.buf[:t.next]...)
	}
	out := make([]TracePoint, 0, len(t.buf))
	out = append(out, t.buf[t.next:]...)
	return append(out, t.buf[:t.next]...)
}

func (t *Trace) Close() error { return nil }

package output

import (
	"sync/atomic"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
)

// Latest holds the most recent snapshot for readers on other goroutines.
type Latest struct {
	v atomic.Pointer[bridge.Snapshot]
}

// Publish stores a copy of s.
func (l *Latest) Publish(s bridge.Snapshot) {
	l.v.Store(&s)
}

// Get returns the last published snapshot. ok is false before the first
// tick.
func (l *Latest) Get() (s bridge.Snapshot, ok bool) {
	p := l.v.Load()
	if p == nil {
		return bridge.Snapshot{}, false
	}
	return *p, true
}

func (l *Latest) Close() error { return nil }

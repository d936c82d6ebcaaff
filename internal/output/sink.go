// Package output publishes bridge snapshots to consumers outside the tick
// loop. Every sink must return promptly; slow transports queue and drop.
package output

import (
	"errors"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
)

// Sink receives one snapshot per tick.
type Sink interface {
	Publish(s bridge.Snapshot)
	Close() error
}

// DropCounter counts snapshots a sink had to drop.
type DropCounter interface {
	AddDropped()
}

type nopDrops struct{}

func (nopDrops) AddDropped() {}

// Fanout publishes to several sinks in order.
type Fanout []Sink

// Publish forwards s to every sink.
func (f Fanout) Publish(s bridge.Snapshot) {
	for _, sink := range f {
		sink.Publish(s)
	}
}

// Close closes every sink and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, sink := range f {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

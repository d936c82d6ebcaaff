package bridge

import (
	"errors"

	"github.com/banshee-data/mocap.bridge/internal/mocap"
)

// Snapshot is an immutable copy of the bridge's state after a tick. It is
// the only thing that crosses to other goroutines.
type Snapshot struct {
	Tick        uint64             `json:"tick"`
	Vector      mocap.OutputVector `json:"vector"`
	Fresh       bool               `json:"fresh"`
	Ever        bool               `json:"ever"`
	FrameNumber uint32             `json:"frame"`
	Bodies      int                `json:"bodies"`
	State       State              `json:"state"`
	Connected   bool               `json:"connected"`
	Streaming   bool               `json:"streaming"`
	UDPPort     uint16             `json:"udp_port"`
	Counters    Counters           `json:"counters"`
}

// Bridge owns one capability for the lifetime of a run. It is not safe for
// concurrent use; all methods must be called from the scheduler's
// goroutine.
type Bridge struct {
	conn    *Connection
	manager Manager
	poller  Poller
	mapper  Mapper
	guard   Guard
	output  Output

	counters    Counters
	diag        *diagnostics
	initialized bool
	lastBodies  int
}

// New wraps c. The bridge takes ownership: c is released by Shutdown and
// must not be used elsewhere.
func New(c mocap.Capability, opts Options) (*Bridge, error) {
	if c == nil {
		return nil, errors.New("bridge: nil capability")
	}
	opts = opts.withDefaults()

	b := &Bridge{}
	b.diag = &diagnostics{logf: opts.Logf, counters: &b.counters}
	b.conn = newConnection(c, opts.Connect.UDPPort)
	b.manager = Manager{params: opts.Connect, components: opts.Components, diag: b.diag}
	b.poller = Poller{diag: b.diag, echo: opts.FrameEcho, stopEveryTick: opts.StopCapture == StopEveryTick}
	b.mapper = NewMapper(opts.Policy)
	b.guard = Guard{diag: b.diag, stopOnShutdown: opts.StopCapture == StopOnShutdown}
	return b, nil
}

// Initialize runs the connection sequence. Only the first call does
// anything.
func (b *Bridge) Initialize() {
	if b.initialized || b.conn.state == StateClosed {
		return
	}
	b.initialized = true
	b.manager.Initialize(b.conn)
}

// Step runs one tick: poll, map, and hold. It returns the snapshot after
// the tick. After Shutdown it only advances the tick count.
func (b *Bridge) Step() Snapshot {
	b.counters.Ticks++
	frame := b.poller.Poll(b.conn)
	b.lastBodies = frame.Len()
	if !b.output.Apply(b.mapper, frame) {
		b.counters.StaleTicks++
	}
	return b.Snapshot()
}

// Shutdown releases the capability. It is safe to call before Initialize
// and more than once.
func (b *Bridge) Shutdown() {
	b.guard.Shutdown(b.conn)
}

// Output returns the current output vector.
func (b *Bridge) Output() mocap.OutputVector { return b.output.Vector() }

// State returns the session state.
func (b *Bridge) State() State { return b.conn.state }

// Connection exposes the session for inspection.
func (b *Bridge) Connection() *Connection { return b.conn }

// Counters returns a copy of the run counters.
func (b *Bridge) Counters() Counters { return b.counters }

// Snapshot copies the current state.
func (b *Bridge) Snapshot() Snapshot {
	return Snapshot{
		Tick:        b.counters.Ticks,
		Vector:      b.output.Vector(),
		Fresh:       b.output.Fresh(),
		Ever:        b.output.Ever(),
		FrameNumber: b.output.LastFrame(),
		Bodies:      b.lastBodies,
		State:       b.conn.state,
		Connected:   b.conn.connected,
		Streaming:   b.conn.streaming,
		UDPPort:     b.conn.udpPort,
		Counters:    b.counters,
	}
}

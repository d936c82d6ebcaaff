package bridge

import (
	"fmt"

	"github.com/banshee-data/mocap.bridge/internal/mocap"
)

// State is the run's position in the session state machine.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	// StateDisconnected is reached when Initialize could not connect.
	StateDisconnected
	StateConnectedIdle
	StateConnectedStreaming
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateDisconnected:
		return "disconnected"
	case StateConnectedIdle:
		return "connected_idle"
	case StateConnectedStreaming:
		return "connected_streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st := StateUninitialized; st <= StateClosed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Connection is the single session with the server. Only the Manager and
// the Guard change it.
type Connection struct {
	capability mocap.Capability

	connected    bool
	streaming    bool
	settingsRead bool
	available    bool // server reported 6DOF bodies in its settings
	udpPort      uint16
	state        State
}

func newConnection(c mocap.Capability, udpPort uint16) *Connection {
	return &Connection{capability: c, udpPort: udpPort}
}

func (c *Connection) Connected() bool { return c.connected }
func (c *Connection) Streaming() bool { return c.streaming }
func (c *Connection) UDPPort() uint16 { return c.udpPort }
func (c *Connection) State() State    { return c.state }

// BodiesAvailable reports whether the server's 6DOF settings listed any
// bodies.
func (c *Connection) BodiesAvailable() bool { return c.available }

// setStreaming keeps streaming ⟹ connected.
func (c *Connection) setStreaming(v bool) {
	c.streaming = v && c.connected
}

// settle derives the post-initialize state from the flags.
func (c *Connection) settle() {
	switch {
	case c.streaming:
		c.state = StateConnectedStreaming
	case c.connected:
		c.state = StateConnectedIdle
	default:
		c.state = StateDisconnected
	}
}

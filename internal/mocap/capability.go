package mocap

import "errors"

var (
	// ErrNoData is returned by a non-blocking Receive when no packet is
	// waiting. It is not a failure.
	ErrNoData = errors.New("no data available")

	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("capability closed")
)

// ByteOrder selects the wire encoding negotiated at connect time.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// ConnectParams describes how to reach the server.
type ConnectParams struct {
	Address      string
	BasePort     uint16
	UDPPort      uint16 // preferred; the server may hand back another
	MajorVersion int
	MinorVersion int
	ByteOrder    ByteOrder
}

// StreamRate selects which frames the server streams.
type StreamRate int

const (
	RateAllFrames StreamRate = iota
	RateFrequency
	RateFrequencyDivisor
)

// Component is a bit set of data components requested from the server.
type Component uint32

const (
	Component6D Component = 1 << iota
	Component6DEuler
	Component3D
)

// StreamRequest asks the server to push frames to UDPPort.
type StreamRequest struct {
	Rate       StreamRate
	RateArg    int
	UDPPort    uint16
	Components Component
}

// PacketType classifies a received packet.
type PacketType int

const (
	PacketNone PacketType = iota
	PacketError
	PacketCommand
	PacketXML
	PacketData
	PacketNoMoreData
	PacketEvent
)

func (t PacketType) String() string {
	switch t {
	case PacketError:
		return "error"
	case PacketCommand:
		return "command"
	case PacketXML:
		return "xml"
	case PacketData:
		return "data"
	case PacketNoMoreData:
		return "no-more-data"
	case PacketEvent:
		return "event"
	default:
		return "none"
	}
}

// Packet is the handle to the most recently received data packet.
type Packet interface {
	FrameNumber() uint32
	EulerBodyCount() int
	// EulerBody decodes body i. ok is false when the body could not be
	// decoded (for example because it is not currently tracked).
	EulerBody(i int) (x, y, z, roll, pitch, yaw float32, ok bool)
}

// Capability is a client session against a motion-capture server.
//
// Implementations are used from a single goroutine and need no locking.
// Disconnect must be safe on a handle that never connected.
type Capability interface {
	Connected() bool
	// Connect opens the session and returns the UDP port the server will
	// stream to.
	Connect(p ConnectParams) (udpPort uint16, err error)
	Read6DOFSettings() (available bool, err error)
	StreamFrames(r StreamRequest) error
	// Receive returns ErrNoData immediately when nonBlocking is set and
	// nothing is queued.
	Receive(nonBlocking bool) (PacketType, error)
	Packet() Packet
	BodyName(index int) (string, bool)
	StopCapture() error
	Disconnect() error
	// Close releases the handle.
	Close() error
}

// Package sim provides a synthetic motion-capture server that implements
// mocap.Capability. Bodies travel on horizontal circles and frames are
// paced by a clock, so it can drive the bridge in dev mode and in tests
// without hardware.
package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/mocap.bridge/internal/mocap"
	"github.com/banshee-data/mocap.bridge/internal/timeutil"
)

// Body describes one simulated rigid body. Distances are millimetres and
// angles degrees, matching what a capture server reports.
type Body struct {
	Name   string // empty means the server has no name for it
	Radius float64
	Height float64
	Period time.Duration // one lap
	Phase  float64       // radians
}

// Options configures a Server.
type Options struct {
	Bodies    []Body
	FrameRate float64 // frames per second
	Clock     timeutil.Clock

	// AssignUDPPort, when non-zero, replaces the client's requested port.
	AssignUDPPort uint16

	FailConnect  bool
	FailSettings bool
	FailStream   bool
	// DecodeFailEvery makes body i of frame n fail to decode when
	// (n+i) % DecodeFailEvery == 0. Zero disables.
	DecodeFailEvery int
	// ReceiveErrorEvery makes every Nth receive attempt fail. Zero
	// disables.
	ReceiveErrorEvery int
}

// DefaultBodies returns n bodies spread around the capture volume.
func DefaultBodies(n int) []Body {
	bodies := make([]Body, n)
	for i := range bodies {
		bodies[i] = Body{
			Name:   fmt.Sprintf("body%d", i+1),
			Radius: 500 + 250*float64(i),
			Height: 1000,
			Period: time.Duration(4+i) * time.Second,
			Phase:  float64(i) * math.Pi / 3,
		}
	}
	return bodies
}

// errInjected marks faults produced on purpose.
var errInjected = errors.New("injected fault")

// Server is a simulated capture server session.
type Server struct {
	opts  Options
	clock timeutil.Clock

	connected   bool
	streaming   bool
	closed      bool
	udpPort     uint16
	streamStart time.Time
	lastFrame   uint32
	receives    int
	emitted     uint64
	packet      *mocap.StaticPacket
}

// New creates a simulated server.
func New(opts Options) *Server {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 100
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Server{opts: opts, clock: opts.Clock, packet: &mocap.StaticPacket{}}
}

// Connected reports whether a session is open.
func (s *Server) Connected() bool { return s.connected }

// Connect opens the simulated session.
func (s *Server) Connect(p mocap.ConnectParams) (uint16, error) {
	if s.closed {
		return 0, mocap.ErrClosed
	}
	if s.opts.FailConnect {
		return 0, fmt.Errorf("connect %s:%d: %w", p.Address, p.BasePort, errInjected)
	}
	if p.MajorVersion != 1 {
		return 0, fmt.Errorf("unsupported protocol version %d.%d", p.MajorVersion, p.MinorVersion)
	}
	s.connected = true
	s.udpPort = p.UDPPort
	if s.opts.AssignUDPPort != 0 {
		s.udpPort = s.opts.AssignUDPPort
	}
	return s.udpPort, nil
}

// Read6DOFSettings reports whether any bodies are defined.
func (s *Server) Read6DOFSettings() (bool, error) {
	if !s.connected {
		return false, mocap.ErrNotConnected
	}
	if s.opts.FailSettings {
		return false, fmt.Errorf("read 6DOF settings: %w", errInjected)
	}
	return len(s.opts.Bodies) > 0, nil
}

// StreamFrames starts the frame clock.
func (s *Server) StreamFrames(r mocap.StreamRequest) error {
	if !s.connected {
		return mocap.ErrNotConnected
	}
	if s.opts.FailStream {
		return fmt.Errorf("stream frames: %w", errInjected)
	}
	if r.Components&(mocap.Component6D|mocap.Component6DEuler) == 0 {
		return fmt.Errorf("stream frames: no 6DOF component requested")
	}
	s.streaming = true
	s.streamStart = s.clock.Now()
	s.lastFrame = 0
	return nil
}

// Receive hands out the newest due frame. Frames that came due between
// two receives are skipped, as a UDP client would see them overwritten.
// A blocking receive does not wait; it returns the next frame at once.
func (s *Server) Receive(nonBlocking bool) (mocap.PacketType, error) {
	if s.closed {
		return mocap.PacketNone, mocap.ErrClosed
	}
	if !s.connected {
		return mocap.PacketNone, mocap.ErrNotConnected
	}
	s.receives++
	if n := s.opts.ReceiveErrorEvery; n > 0 && s.receives%n == 0 {
		return mocap.PacketNone, fmt.Errorf("receive: %w", errInjected)
	}
	if !s.streaming {
		return mocap.PacketNone, mocap.ErrNoData
	}

	due := s.dueFrame()
	if due <= s.lastFrame {
		if nonBlocking {
			return mocap.PacketNone, mocap.ErrNoData
		}
		due = s.lastFrame + 1
	}
	s.lastFrame = due
	s.emitted++
	s.packet = s.frameAt(due)
	return mocap.PacketData, nil
}

func (s *Server) dueFrame() uint32 {
	elapsed := s.clock.Since(s.streamStart).Seconds()
	return uint32(math.Floor(elapsed * s.opts.FrameRate))
}

// frameAt builds frame n.
func (s *Server) frameAt(n uint32) *mocap.StaticPacket {
	t := float64(n) / s.opts.FrameRate
	pkt := &mocap.StaticPacket{Frame: n, Bodies: make([]mocap.StaticBody, len(s.opts.Bodies))}
	for i, b := range s.opts.Bodies {
		pkt.Bodies[i] = pose(b, t)
		if k := s.opts.DecodeFailEvery; k > 0 && (int(n)+i)%k == 0 {
			pkt.Bodies[i].Fail = true
		}
	}
	return pkt
}

// pose places b on its circle at time t seconds.
func pose(b Body, t float64) mocap.StaticBody {
	angle := b.Phase
	if b.Period > 0 {
		angle += 2 * math.Pi * t / b.Period.Seconds()
	}
	p := r3.NewRotation(angle, r3.Vec{Z: 1}).Rotate(r3.Vec{X: b.Radius})
	p = r3.Add(p, r3.Vec{Z: b.Height})

	return mocap.StaticBody{
		X:     float32(p.X),
		Y:     float32(p.Y),
		Z:     float32(p.Z),
		Roll:  float32(5 * math.Sin(angle)),
		Pitch: float32(5 * math.Cos(angle)),
		Yaw:   float32(wrapDegrees(angle * 180 / math.Pi)),
	}
}

// wrapDegrees maps a to (-180, 180].
func wrapDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}

// Packet returns the last received packet.
func (s *Server) Packet() mocap.Packet { return s.packet }

// BodyName returns the configured name of body index.
func (s *Server) BodyName(index int) (string, bool) {
	if index < 0 || index >= len(s.opts.Bodies) {
		return "", false
	}
	name := s.opts.Bodies[index].Name
	return name, name != ""
}

// StopCapture halts streaming on the server side. Nothing restarts it.
func (s *Server) StopCapture() error {
	if !s.connected {
		return mocap.ErrNotConnected
	}
	s.streaming = false
	return nil
}

// Disconnect ends the session. It is a no-op when not connected.
func (s *Server) Disconnect() error {
	s.connected = false
	s.streaming = false
	return nil
}

// Close releases the server. A second Close reports ErrClosed.
func (s *Server) Close() error {
	if s.closed {
		return mocap.ErrClosed
	}
	s.closed = true
	s.connected = false
	s.streaming = false
	return nil
}

// Emitted returns the number of data packets handed out.
func (s *Server) Emitted() uint64 { return s.emitted }

// UDPPort returns the negotiated port.
func (s *Server) UDPPort() uint16 { return s.udpPort }

var _ mocap.Capability = (*Server)(nil)

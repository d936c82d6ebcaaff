package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/mocap.bridge/internal/mocap"
)

var frameSeparator = strings.Repeat("=", 118)

// Poller retrieves at most one frame per tick.
type Poller struct {
	diag          *diagnostics
	echo          bool
	stopEveryTick bool
}

// Poll performs one non-blocking receive on conn and decodes every 6DOF
// body the packet carries. It returns nil when no data packet arrived.
// Bodies that fail to decode are left out of the frame.
func (p *Poller) Poll(conn *Connection) *mocap.Frame {
	if conn.state == StateClosed {
		return nil
	}
	frame := p.receive(conn)
	if p.stopEveryTick {
		err := safely(func() error { return conn.capability.StopCapture() })
		p.diag.checkQuiet(StopCaptureFailure, "StopCapture", err)
	}
	return frame
}

func (p *Poller) receive(conn *Connection) *mocap.Frame {
	c := conn.capability
	counters := p.diag.counters

	var typ mocap.PacketType
	err := safely(func() error {
		var err error
		typ, err = c.Receive(true)
		return err
	})
	if errors.Is(err, mocap.ErrNoData) {
		counters.NoData++
		return nil
	}
	if !p.diag.checkQuiet(ReceiveFailure, "Receive", err) {
		return nil
	}
	if typ != mocap.PacketData {
		counters.NonDataPackets++
		return nil
	}

	var frame *mocap.Frame
	err = safely(func() error {
		frame = p.decode(c)
		return nil
	})
	if !p.diag.checkQuiet(ReceiveFailure, "Decode", err) {
		return nil
	}
	counters.Frames++
	counters.Bodies += uint64(len(frame.Bodies))

	if p.echo {
		p.diag.logf("%s", formatFrame(frame))
	}
	return frame
}

func (p *Poller) decode(c mocap.Capability) *mocap.Frame {
	pkt := c.Packet()
	if pkt == nil {
		return &mocap.Frame{}
	}
	n := pkt.EulerBodyCount()
	frame := &mocap.Frame{
		Number: pkt.FrameNumber(),
		Bodies: make([]mocap.BodyPose, 0, n),
	}
	for i := 0; i < n; i++ {
		pose, ok := mocap.DecodeBody(pkt, c.BodyName, i)
		if !ok {
			p.diag.counters.Failures[DecodeSkip]++
			continue
		}
		frame.Bodies = append(frame.Bodies, pose)
	}
	return frame
}

// formatFrame renders the per-frame echo: a header, a separator, one line
// per body and a trailing blank line.
func formatFrame(f *mocap.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Frame %d\n%s\n", f.Number, frameSeparator)
	for _, body := range f.Bodies {
		fmt.Fprintf(&b, "%-12s Pos: %9.3f %9.3f %9.3f    Roll: %3.3f    Pitch: %3.3f    Yaw: %3.3f\n",
			body.DisplayName(),
			body.Position.X, body.Position.Y, body.Position.Z,
			body.Orientation.Roll, body.Orientation.Pitch, body.Orientation.Yaw)
	}
	b.WriteString("\n")
	return b.String()
}

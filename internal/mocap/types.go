package mocap

import "fmt"

// Position is a body position in the server's coordinate frame.
type Position struct {
	X, Y, Z float64
}

// Orientation holds Euler angles as reported by the server.
type Orientation struct {
	Roll, Pitch, Yaw float64
}

// BodyPose is one decoded 6DOF rigid body.
type BodyPose struct {
	Index       int
	Name        string
	Named       bool // false when the server has no name for this index
	Position    Position
	Orientation Orientation
}

// DisplayName returns the body name or the "Unknown" placeholder.
func (b BodyPose) DisplayName() string {
	if !b.Named {
		return "Unknown"
	}
	return b.Name
}

// Frame is the set of bodies decoded from a single data packet, in the
// order the server reported them.
type Frame struct {
	Number uint32
	Bodies []BodyPose
}

// Len returns the number of decoded bodies.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Bodies)
}

// OutputWidth is the width of the output port.
const OutputWidth = 6

// OutputVector is x, y, z, roll, pitch, yaw. The zero value is the output
// before the first frame arrives.
type OutputVector [OutputWidth]float64

// VectorFromPose lays a pose out in output order without unit conversion.
func VectorFromPose(p BodyPose) OutputVector {
	return OutputVector{
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Orientation.Roll, p.Orientation.Pitch, p.Orientation.Yaw,
	}
}

func (v OutputVector) X() float64     { return v[0] }
func (v OutputVector) Y() float64     { return v[1] }
func (v OutputVector) Z() float64     { return v[2] }
func (v OutputVector) Roll() float64  { return v[3] }
func (v OutputVector) Pitch() float64 { return v[4] }
func (v OutputVector) Yaw() float64   { return v[5] }

func (v OutputVector) String() string {
	return fmt.Sprintf("[%.3f %.3f %.3f | %.3f %.3f %.3f]", v[0], v[1], v[2], v[3], v[4], v[5])
}

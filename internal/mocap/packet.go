package mocap

// StaticBody is one body inside a StaticPacket. Fail marks a body whose
// decode reports failure.
type StaticBody struct {
	X, Y, Z          float32
	Roll, Pitch, Yaw float32
	Fail             bool
}

// StaticPacket is an in-memory Packet.
type StaticPacket struct {
	Frame  uint32
	Bodies []StaticBody
}

func (p *StaticPacket) FrameNumber() uint32 { return p.Frame }

func (p *StaticPacket) EulerBodyCount() int { return len(p.Bodies) }

func (p *StaticPacket) EulerBody(i int) (x, y, z, roll, pitch, yaw float32, ok bool) {
	if i < 0 || i >= len(p.Bodies) {
		return 0, 0, 0, 0, 0, 0, false
	}
	b := p.Bodies[i]
	if b.Fail {
		return 0, 0, 0, 0, 0, 0, false
	}
	return b.X, b.Y, b.Z, b.Roll, b.Pitch, b.Yaw, true
}

// DecodeBody decodes body i of pkt into a BodyPose, resolving its name
// through names. It returns false when the packet cannot decode the body.
func DecodeBody(pkt Packet, names func(int) (string, bool), i int) (BodyPose, bool) {
	x, y, z, roll, pitch, yaw, ok := pkt.EulerBody(i)
	if !ok {
		return BodyPose{}, false
	}
	pose := BodyPose{
		Index:       i,
		Position:    Position{X: float64(x), Y: float64(y), Z: float64(z)},
		Orientation: Orientation{Roll: float64(roll), Pitch: float64(pitch), Yaw: float64(yaw)},
	}
	if names != nil {
		pose.Name, pose.Named = names(i)
	}
	return pose, true
}

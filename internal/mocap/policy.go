package mocap

// ReducePolicy selects the single pose that feeds the output vector from
// an ordered set of decoded bodies. ok is false when nothing qualifies.
type ReducePolicy func(bodies []BodyPose) (pose BodyPose, ok bool)

// LastBodyWins keeps the last body in iteration order and discards the
// rest.
func LastBodyWins(bodies []BodyPose) (BodyPose, bool) {
	if len(bodies) == 0 {
		return BodyPose{}, false
	}
	return bodies[len(bodies)-1], true
}

// Reduce applies policy to frame and returns the resulting output vector.
// A nil frame or an empty frame yields ok=false.
func Reduce(frame *Frame, policy ReducePolicy) (OutputVector, bool) {
	if frame == nil {
		return OutputVector{}, false
	}
	if policy == nil {
		policy = LastBodyWins
	}
	pose, ok := policy(frame.Bodies)
	if !ok {
		return OutputVector{}, false
	}
	return VectorFromPose(pose), true
}

package bridge

import "github.com/banshee-data/mocap.bridge/internal/mocap"

// Mapper reduces a frame to the output vector.
type Mapper struct {
	policy mocap.ReducePolicy
}

// NewMapper returns a Mapper using policy, or last-body-wins when nil.
func NewMapper(policy mocap.ReducePolicy) Mapper {
	if policy == nil {
		policy = mocap.LastBodyWins
	}
	return Mapper{policy: policy}
}

// Map returns the vector for frame. ok is false for a nil or empty frame,
// in which case the caller must keep its previous vector.
func (m Mapper) Map(frame *mocap.Frame) (mocap.OutputVector, bool) {
	return mocap.Reduce(frame, m.policy)
}

// Output holds the vector exposed to the caller between ticks.
type Output struct {
	vector    mocap.OutputVector
	fresh     bool
	updated   bool
	lastFrame uint32
}

// Apply maps frame and overwrites the held vector if the frame produced
// one. Otherwise the held vector is left untouched. It reports whether the
// vector was updated.
func (o *Output) Apply(m Mapper, frame *mocap.Frame) bool {
	v, ok := m.Map(frame)
	o.fresh = ok
	if !ok {
		return false
	}
	o.vector = v
	o.updated = true
	o.lastFrame = frame.Number
	return true
}

// Vector returns the held vector.
func (o *Output) Vector() mocap.OutputVector { return o.vector }

// Fresh reports whether the last Apply updated the vector.
func (o *Output) Fresh() bool { return o.fresh }

// Ever reports whether any frame has updated the vector yet.
func (o *Output) Ever() bool { return o.updated }

// LastFrame is the frame number that produced the held vector.
func (o *Output) LastFrame() uint32 { return o.lastFrame }

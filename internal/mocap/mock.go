package mocap

// MockReceive is one scripted Receive result.
type MockReceive struct {
	Type   PacketType
	Err    error
	Packet Packet
}

// MockCapability implements Capability for testing. Receives are replayed
// in order; once exhausted Receive reports ErrNoData.
type MockCapability struct {
	// ConnectErr is returned by Connect if set.
	ConnectErr error
	// AssignedUDPPort replaces the requested port on a successful Connect
	// when non-zero.
	AssignedUDPPort uint16
	// SettingsErr is returned by Read6DOFSettings if set.
	SettingsErr error
	// StreamErr is returned by StreamFrames if set.
	StreamErr error
	// StopErr is returned by StopCapture if set.
	StopErr error
	// DisconnectErr is returned by Disconnect if set.
	DisconnectErr error
	// CloseErr is returned by Close if set.
	CloseErr error

	// Receives holds the scripted receive results.
	Receives []MockReceive
	// ReadIndex tracks the current position in Receives.
	ReadIndex int
	// Names maps body index to name.
	Names map[int]string

	// IsConnected is the current session state.
	IsConnected bool

	// Recorded calls.
	ConnectCalls    []ConnectParams
	SettingsCalls   int
	StreamCalls     []StreamRequest
	ReceiveCalls    int
	NonBlocking     []bool
	StopCalls       int
	DisconnectCalls int
	CloseCalls      int

	current Packet
}

// NewMockCapability returns a mock that replays the given receives.
func NewMockCapability(receives ...MockReceive) *MockCapability {
	return &MockCapability{Receives: receives, Names: map[int]string{}}
}

// Connected reports the mocked session state.
func (m *MockCapability) Connected() bool { return m.IsConnected }

// Connect records the call and fails with ConnectErr if set.
func (m *MockCapability) Connect(p ConnectParams) (uint16, error) {
	m.ConnectCalls = append(m.ConnectCalls, p)
	if m.CloseCalls > 0 {
		return 0, ErrClosed
	}
	if m.ConnectErr != nil {
		return 0, m.ConnectErr
	}
	m.IsConnected = true
	if m.AssignedUDPPort != 0 {
		return m.AssignedUDPPort, nil
	}
	return p.UDPPort, nil
}

// Read6DOFSettings records the call.
func (m *MockCapability) Read6DOFSettings() (bool, error) {
	m.SettingsCalls++
	if m.SettingsErr != nil {
		return false, m.SettingsErr
	}
	if !m.IsConnected {
		return false, ErrNotConnected
	}
	return true, nil
}

// StreamFrames records the request.
func (m *MockCapability) StreamFrames(r StreamRequest) error {
	m.StreamCalls = append(m.StreamCalls, r)
	if m.StreamErr != nil {
		return m.StreamErr
	}
	if !m.IsConnected {
		return ErrNotConnected
	}
	return nil
}

// Receive returns the next scripted result.
func (m *MockCapability) Receive(nonBlocking bool) (PacketType, error) {
	m.ReceiveCalls++
	m.NonBlocking = append(m.NonBlocking, nonBlocking)
	if m.CloseCalls > 0 {
		return PacketNone, ErrClosed
	}
	if m.ReadIndex >= len(m.Receives) {
		return PacketNone, ErrNoData
	}
	r := m.Receives[m.ReadIndex]
	m.ReadIndex++
	if r.Err != nil {
		return PacketNone, r.Err
	}
	if r.Packet != nil {
		m.current = r.Packet
	}
	return r.Type, nil
}

// Packet returns the packet from the last successful receive.
func (m *MockCapability) Packet() Packet {
	if m.current == nil {
		return &StaticPacket{}
	}
	return m.current
}

// BodyName looks the index up in Names.
func (m *MockCapability) BodyName(index int) (string, bool) {
	name, ok := m.Names[index]
	return name, ok
}

// StopCapture records the call.
func (m *MockCapability) StopCapture() error {
	m.StopCalls++
	return m.StopErr
}

// Disconnect records the call and clears the session.
func (m *MockCapability) Disconnect() error {
	m.DisconnectCalls++
	m.IsConnected = false
	return m.DisconnectErr
}

// Close records the release.
func (m *MockCapability) Close() error {
	m.CloseCalls++
	return m.CloseErr
}

// DataPacket is shorthand for a successful data receive carrying bodies.
func DataPacket(frame uint32, bodies ...StaticBody) MockReceive {
	return MockReceive{Type: PacketData, Packet: &StaticPacket{Frame: frame, Bodies: bodies}}
}

package bridge

import "github.com/banshee-data/mocap.bridge/internal/mocap"

// Manager performs the connect, read-settings, start-stream sequence.
type Manager struct {
	params     mocap.ConnectParams
	components mocap.Component
	diag       *diagnostics
}

// Initialize brings conn up as far as it will go. Every step runs even if
// an earlier one failed; the poller copes with whatever state results.
func (m *Manager) Initialize(conn *Connection) {
	conn.state = StateConnecting
	c := conn.capability

	m.diag.logf("Checking connection...")
	if !conn.connected {
		var connected bool
		_ = safely(func() error { connected = c.Connected(); return nil })
		conn.connected = connected
	}
	if !conn.connected {
		m.diag.logf("Attempting to connect to %s:%d (udp %d, protocol %d.%d, %s)...",
			m.params.Address, m.params.BasePort, conn.udpPort,
			m.params.MajorVersion, m.params.MinorVersion, m.params.ByteOrder)
		params := m.params
		params.UDPPort = conn.udpPort
		var port uint16
		err := safely(func() error {
			var err error
			port, err = c.Connect(params)
			return err
		})
		if m.diag.check(ConnectFailure, "Connect", err) {
			conn.connected = true
			if port != 0 && port != conn.udpPort {
				m.diag.logf("Server assigned UDP port %d (requested %d)", port, conn.udpPort)
				conn.udpPort = port
			}
		}
	}

	if !conn.settingsRead {
		var available bool
		err := safely(func() error {
			var err error
			available, err = c.Read6DOFSettings()
			return err
		})
		if m.diag.check(SettingsReadFailure, "Read6DOFSettings", err) {
			conn.settingsRead = true
			conn.available = available
			if !available {
				m.diag.logf("Read6DOFSettings: server reports no 6DOF bodies")
			}
		}
	}

	if !conn.streaming {
		req := mocap.StreamRequest{
			Rate:       mocap.RateAllFrames,
			UDPPort:    conn.udpPort,
			Components: m.components,
		}
		err := safely(func() error { return c.StreamFrames(req) })
		if m.diag.check(StreamStartFailure, "StreamFrames", err) {
			conn.setStreaming(true)
			if conn.streaming {
				m.diag.logf("Starting to stream 6DOF data")
			} else {
				m.diag.logf("StreamFrames: accepted without a connection, not streaming")
			}
		}
	}

	conn.settle()
}

package bridge

// Guard tears the session down exactly once.
type Guard struct {
	diag           *diagnostics
	stopOnShutdown bool
}

// Shutdown stops capture if the policy asks for it, disconnects and
// releases the capability. Failures are logged and swallowed. Calling it
// again is a no-op.
func (g *Guard) Shutdown(conn *Connection) {
	if conn.state == StateClosed {
		return
	}
	c := conn.capability

	if g.stopOnShutdown && conn.streaming {
		err := safely(func() error { return c.StopCapture() })
		g.diag.check(StopCaptureFailure, "StopCapture", err)
	}

	err := safely(func() error { return c.Disconnect() })
	g.diag.check(DisconnectFailure, "Disconnect", err)

	err = safely(func() error { return c.Close() })
	g.diag.check(ReleaseFailure, "Close", err)

	conn.streaming = false
	conn.connected = false
	conn.state = StateClosed
	g.diag.logf("Disconnected from motion-capture server")
}

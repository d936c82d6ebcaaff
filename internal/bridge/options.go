package bridge

import (
	"fmt"

	"github.com/banshee-data/mocap.bridge/internal/mocap"
	"github.com/banshee-data/mocap.bridge/internal/monitoring"
)

// StopCapturePolicy decides when the bridge asks the server to stop
// capturing.
type StopCapturePolicy int

const (
	// StopNever leaves the capture running. Shutdown only disconnects and
	// releases, so other clients of the server keep their measurement.
	StopNever StopCapturePolicy = iota
	// StopOnShutdown issues one stop-capture during Shutdown, and only if
	// the session was streaming. Opt-in.
	StopOnShutdown
	// StopEveryTick issues stop-capture after every poll, whatever the poll
	// returned. Nothing restarts the stream afterwards.
	StopEveryTick
)

func (p StopCapturePolicy) String() string {
	switch p {
	case StopOnShutdown:
		return "shutdown"
	case StopEveryTick:
		return "every_tick"
	default:
		return "never"
	}
}

// ParseStopCapturePolicy accepts "never", "shutdown" or "every_tick".
// An empty string means never.
func ParseStopCapturePolicy(s string) (StopCapturePolicy, error) {
	switch s {
	case "", "never":
		return StopNever, nil
	case "shutdown":
		return StopOnShutdown, nil
	case "every_tick", "every-tick":
		return StopEveryTick, nil
	default:
		return StopNever, fmt.Errorf("unknown stop-capture policy %q: expected never, shutdown or every_tick", s)
	}
}

// Defaults for a Qualisys-style RT server.
const (
	DefaultServerAddress = "192.168.244.1"
	DefaultBasePort      = 22222
	DefaultUDPPort       = 6734
	DefaultMajorVersion  = 1
	DefaultMinorVersion  = 22
)

// Options configures a Bridge.
type Options struct {
	Connect mocap.ConnectParams
	// Components requested when streaming starts. The default asks for
	// 6DOF Euler bodies rather than the plain 6DOF component the
	// original client requested, since Euler bodies are what the poller
	// decodes.
	Components  mocap.Component
	StopCapture StopCapturePolicy
	// FrameEcho prints every decoded frame to the diagnostic sink.
	FrameEcho bool
	// Policy reduces a frame to one pose. Nil means mocap.LastBodyWins.
	Policy mocap.ReducePolicy
	// Logf receives diagnostics. Nil means monitoring.Printf.
	Logf func(format string, v ...interface{})
}

// DefaultOptions returns the fixed parameters the bridge was first
// deployed with.
func DefaultOptions() Options {
	return Options{
		Connect: mocap.ConnectParams{
			Address:      DefaultServerAddress,
			BasePort:     DefaultBasePort,
			UDPPort:      DefaultUDPPort,
			MajorVersion: DefaultMajorVersion,
			MinorVersion: DefaultMinorVersion,
			ByteOrder:    mocap.LittleEndian,
		},
		Components:  mocap.Component6DEuler,
		StopCapture: StopNever,
		FrameEcho:   true,
		Policy:      mocap.LastBodyWins,
	}
}

func (o Options) withDefaults() Options {
	if o.Components == 0 {
		o.Components = mocap.Component6DEuler
	}
	if o.Policy == nil {
		o.Policy = mocap.LastBodyWins
	}
	if o.Logf == nil {
		o.Logf = monitoring.Printf
	}
	return o
}

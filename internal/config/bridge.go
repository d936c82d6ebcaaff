package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/mocap"
)

// DefaultConfigPath is the path to the canonical bridge defaults file.
const DefaultConfigPath = "config/bridge.defaults.json"

// BridgeConfig is the root configuration. Every field is optional; the
// Get* methods supply defaults for anything left out, so partial files are
// safe.
type BridgeConfig struct {
	// Motion-capture server
	ServerAddress *string `json:"server_address,omitempty" yaml:"server_address,omitempty"`
	BasePort      *int    `json:"base_port,omitempty" yaml:"base_port,omitempty"`
	UDPPort       *int    `json:"udp_port,omitempty" yaml:"udp_port,omitempty"`
	ProtocolMajor *int    `json:"protocol_major,omitempty" yaml:"protocol_major,omitempty"`
	ProtocolMinor *int    `json:"protocol_minor,omitempty" yaml:"protocol_minor,omitempty"`
	BigEndian     *bool   `json:"big_endian,omitempty" yaml:"big_endian,omitempty"`

	// Tick loop
	TickInterval  *string `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"` // duration string like "10ms"
	StopCapture   *string `json:"stop_capture,omitempty" yaml:"stop_capture,omitempty"`   // "never", "shutdown" or "every_tick"
	FrameEcho     *bool   `json:"frame_echo,omitempty" yaml:"frame_echo,omitempty"`
	StatsInterval *string `json:"stats_interval,omitempty" yaml:"stats_interval,omitempty"`

	// Outputs
	Listen         *string       `json:"listen,omitempty" yaml:"listen,omitempty"`
	DBPath         *string       `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	ForwardAddress *string       `json:"forward_address,omitempty" yaml:"forward_address,omitempty"`
	SerialPort     *string       `json:"serial_port,omitempty" yaml:"serial_port,omitempty"`
	Serial         *SerialConfig `json:"serial,omitempty" yaml:"serial,omitempty"`
	ZMQEndpoint    *string       `json:"zmq_endpoint,omitempty" yaml:"zmq_endpoint,omitempty"`
	TraceSize      *int          `json:"trace_size,omitempty" yaml:"trace_size,omitempty"`

	// Simulated server for dev mode
	Sim *SimConfig `json:"sim,omitempty" yaml:"sim,omitempty"`
}

// SerialConfig mirrors the serial line settings of the serial output.
type SerialConfig struct {
	BaudRate int    `json:"baud_rate" yaml:"baud_rate"`
	DataBits int    `json:"data_bits" yaml:"data_bits"`
	StopBits int    `json:"stop_bits" yaml:"stop_bits"`
	Parity   string `json:"parity" yaml:"parity"`
}

// SimConfig configures the simulated server.
type SimConfig struct {
	Bodies          *int     `json:"bodies,omitempty" yaml:"bodies,omitempty"`
	FrameRate       *float64 `json:"frame_rate,omitempty" yaml:"frame_rate,omitempty"`
	DecodeFailEvery *int     `json:"decode_fail_every,omitempty" yaml:"decode_fail_every,omitempty"`
	AssignUDPPort   *int     `json:"assign_udp_port,omitempty" yaml:"assign_udp_port,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// EmptyBridgeConfig returns a BridgeConfig with all fields unset.
func EmptyBridgeConfig() *BridgeConfig {
	return &BridgeConfig{}
}

// DefaultBridgeConfig returns a config with every field set to its
// default. It matches config/bridge.defaults.json.
func DefaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		ServerAddress:  ptrString(bridge.DefaultServerAddress),
		BasePort:       ptrInt(bridge.DefaultBasePort),
		UDPPort:        ptrInt(bridge.DefaultUDPPort),
		ProtocolMajor:  ptrInt(bridge.DefaultMajorVersion),
		ProtocolMinor:  ptrInt(bridge.DefaultMinorVersion),
		BigEndian:      ptrBool(false),
		TickInterval:   ptrString("10ms"),
		StopCapture:    ptrString("never"),
		FrameEcho:      ptrBool(true),
		StatsInterval:  ptrString("10s"),
		Listen:         ptrString(":8080"),
		DBPath:         ptrString("mocap_runs.db"),
		ForwardAddress: ptrString(""),
		SerialPort:     ptrString(""),
		ZMQEndpoint:    ptrString(""),
		TraceSize:      ptrInt(600),
		Sim: &SimConfig{
			Bodies:          ptrInt(3),
			FrameRate:       ptrFloat64(100),
			DecodeFailEvery: ptrInt(0),
			AssignUDPPort:   ptrInt(0),
		},
	}
}

// LoadBridgeConfig loads a BridgeConfig from a .json, .yaml or .yml file.
// The file must be under 1MB.
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBridgeConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *BridgeConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadBridgeConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func validPort(name string, p *int) error {
	if p != nil && (*p <= 0 || *p > 65535) {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, *p)
	}
	return nil
}

func validDuration(name string, s *string) error {
	if s == nil || *s == "" {
		return nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *s, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, *s)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *BridgeConfig) Validate() error {
	if c.ServerAddress != nil && *c.ServerAddress == "" {
		return fmt.Errorf("server_address must not be empty")
	}
	if err := validPort("base_port", c.BasePort); err != nil {
		return err
	}
	if err := validPort("udp_port", c.UDPPort); err != nil {
		return err
	}
	if c.ProtocolMajor != nil && *c.ProtocolMajor < 1 {
		return fmt.Errorf("protocol_major must be at least 1, got %d", *c.ProtocolMajor)
	}
	if c.ProtocolMinor != nil && *c.ProtocolMinor < 0 {
		return fmt.Errorf("protocol_minor must be non-negative, got %d", *c.ProtocolMinor)
	}
	if err := validDuration("tick_interval", c.TickInterval); err != nil {
		return err
	}
	if err := validDuration("stats_interval", c.StatsInterval); err != nil {
		return err
	}
	if c.StopCapture != nil {
		if _, err := bridge.ParseStopCapturePolicy(*c.StopCapture); err != nil {
			return err
		}
	}
	if c.ForwardAddress != nil && *c.ForwardAddress != "" {
		if _, _, err := net.SplitHostPort(*c.ForwardAddress); err != nil {
			return fmt.Errorf("invalid forward_address '%s': %w", *c.ForwardAddress, err)
		}
	}
	if c.TraceSize != nil && *c.TraceSize < 0 {
		return fmt.Errorf("trace_size must be non-negative, got %d", *c.TraceSize)
	}
	if c.Sim != nil {
		if c.Sim.Bodies != nil && *c.Sim.Bodies < 0 {
			return fmt.Errorf("sim.bodies must be non-negative, got %d", *c.Sim.Bodies)
		}
		if c.Sim.FrameRate != nil && *c.Sim.FrameRate <= 0 {
			return fmt.Errorf("sim.frame_rate must be positive, got %f", *c.Sim.FrameRate)
		}
		if c.Sim.DecodeFailEvery != nil && *c.Sim.DecodeFailEvery < 0 {
			return fmt.Errorf("sim.decode_fail_every must be non-negative, got %d", *c.Sim.DecodeFailEvery)
		}
		if c.Sim.AssignUDPPort != nil && *c.Sim.AssignUDPPort != 0 {
			if err := validPort("sim.assign_udp_port", c.Sim.AssignUDPPort); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetServerAddress returns the server address or the default.
func (c *BridgeConfig) GetServerAddress() string {
	if c.ServerAddress == nil || *c.ServerAddress == "" {
		return bridge.DefaultServerAddress
	}
	return *c.ServerAddress
}

// GetBasePort returns the server's base (command) port or the default.
func (c *BridgeConfig) GetBasePort() uint16 {
	if c.BasePort == nil {
		return bridge.DefaultBasePort
	}
	return uint16(*c.BasePort)
}

// GetUDPPort returns the preferred local UDP port or the default.
func (c *BridgeConfig) GetUDPPort() uint16 {
	if c.UDPPort == nil {
		return bridge.DefaultUDPPort
	}
	return uint16(*c.UDPPort)
}

// GetProtocolVersion returns the protocol major and minor version.
func (c *BridgeConfig) GetProtocolVersion() (major, minor int) {
	major, minor = bridge.DefaultMajorVersion, bridge.DefaultMinorVersion
	if c.ProtocolMajor != nil {
		major = *c.ProtocolMajor
	}
	if c.ProtocolMinor != nil {
		minor = *c.ProtocolMinor
	}
	return major, minor
}

// GetByteOrder returns the negotiated wire byte order.
func (c *BridgeConfig) GetByteOrder() mocap.ByteOrder {
	if c.BigEndian != nil && *c.BigEndian {
		return mocap.BigEndian
	}
	return mocap.LittleEndian
}

// GetTickInterval returns the scheduler period.
func (c *BridgeConfig) GetTickInterval() time.Duration {
	return durationOr(c.TickInterval, 10*time.Millisecond)
}

// GetStatsInterval returns how often tick statistics are logged.
func (c *BridgeConfig) GetStatsInterval() time.Duration {
	return durationOr(c.StatsInterval, 10*time.Second)
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def // default on parse error
	}
	return d
}

// GetStopCapture returns the stop-capture policy.
func (c *BridgeConfig) GetStopCapture() bridge.StopCapturePolicy {
	if c.StopCapture == nil {
		return bridge.StopNever
	}
	p, err := bridge.ParseStopCapturePolicy(*c.StopCapture)
	if err != nil {
		return bridge.StopNever
	}
	return p
}

// GetFrameEcho reports whether decoded frames are echoed to diagnostics.
func (c *BridgeConfig) GetFrameEcho() bool {
	if c.FrameEcho == nil {
		return true
	}
	return *c.FrameEcho
}

// GetListen returns the HTTP listen address.
func (c *BridgeConfig) GetListen() string {
	if c.Listen == nil {
		return ":8080"
	}
	return *c.Listen
}

// GetDBPath returns the run ledger path. Empty disables the ledger.
func (c *BridgeConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "mocap_runs.db"
	}
	return *c.DBPath
}

// GetForwardAddress returns the UDP forward target, or "" when disabled.
func (c *BridgeConfig) GetForwardAddress() string {
	if c.ForwardAddress == nil {
		return ""
	}
	return *c.ForwardAddress
}

// GetSerialPort returns the serial output device, or "" when disabled.
func (c *BridgeConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerial returns the serial line settings. Zero fields are filled in by
// the serial output.
func (c *BridgeConfig) GetSerial() SerialConfig {
	if c.Serial == nil {
		return SerialConfig{}
	}
	return *c.Serial
}

// GetZMQEndpoint returns the ZeroMQ bind endpoint, or "" when disabled.
func (c *BridgeConfig) GetZMQEndpoint() string {
	if c.ZMQEndpoint == nil {
		return ""
	}
	return *c.ZMQEndpoint
}

// GetTraceSize returns how many recent vectors the live chart keeps.
func (c *BridgeConfig) GetTraceSize() int {
	if c.TraceSize == nil {
		return 600
	}
	return *c.TraceSize
}

// GetSimBodies returns the number of simulated bodies.
func (c *BridgeConfig) GetSimBodies() int {
	if c.Sim == nil || c.Sim.Bodies == nil {
		return 3
	}
	return *c.Sim.Bodies
}

// GetSimFrameRate returns the simulated server frame rate in Hz.
func (c *BridgeConfig) GetSimFrameRate() float64 {
	if c.Sim == nil || c.Sim.FrameRate == nil {
		return 100
	}
	return *c.Sim.FrameRate
}

// GetSimDecodeFailEvery returns the simulated decode failure period.
func (c *BridgeConfig) GetSimDecodeFailEvery() int {
	if c.Sim == nil || c.Sim.DecodeFailEvery == nil {
		return 0
	}
	return *c.Sim.DecodeFailEvery
}

// GetSimAssignUDPPort returns the port the simulated server hands back, or
// 0 to keep the requested one.
func (c *BridgeConfig) GetSimAssignUDPPort() uint16 {
	if c.Sim == nil || c.Sim.AssignUDPPort == nil {
		return 0
	}
	return uint16(*c.Sim.AssignUDPPort)
}

// BridgeOptions builds bridge.Options from the config.
func (c *BridgeConfig) BridgeOptions() bridge.Options {
	opts := bridge.DefaultOptions()
	major, minor := c.GetProtocolVersion()
	opts.Connect = mocap.ConnectParams{
		Address:      c.GetServerAddress(),
		BasePort:     c.GetBasePort(),
		UDPPort:      c.GetUDPPort(),
		MajorVersion: major,
		MinorVersion: minor,
		ByteOrder:    c.GetByteOrder(),
	}
	opts.StopCapture = c.GetStopCapture()
	opts.FrameEcho = c.GetFrameEcho()
	return opts
}

package output

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/monitoring"
)

// PortOptions describes the serial line used by SerialWriter.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and fills in defaults (115200 8N1).
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch parity := strings.TrimSpace(strings.ToUpper(opts.Parity)); parity {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// FormatCSV renders s as one line: tick, the six components, fresh (0/1).
func FormatCSV(s bridge.Snapshot) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(s.Tick, 10))
	for _, v := range s.Vector {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
	}
	if s.Fresh {
		b.WriteString(",1\n")
	} else {
		b.WriteString(",0\n")
	}
	return b.String()
}

// SerialWriter writes one CSV line per snapshot to a serial port.
type SerialWriter struct {
	port    io.WriteCloser
	lines   chan string
	drops   DropCounter
	path    string
	started bool
	done    chan struct{}
}

// OpenSerialWriter opens the serial device at path.
func OpenSerialWriter(path string, opts PortOptions, drops DropCounter) (*SerialWriter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewSerialWriter(port, path, drops), nil
}

// NewSerialWriter wraps an already open port.
func NewSerialWriter(port io.WriteCloser, path string, drops DropCounter) *SerialWriter {
	if drops == nil {
		drops = nopDrops{}
	}
	return &SerialWriter{
		port:  port,
		lines: make(chan string, 64),
		drops: drops,
		path:  path,
		done:  make(chan struct{}),
	}
}

// Start runs the write loop until ctx is done or Close is called.
func (w *SerialWriter) Start(ctx context.Context) {
	w.started = true
	go func() {
		defer close(w.done)
		var lastErr error
		lastLogged := time.Time{}
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-w.lines:
				if !ok {
					return
				}
				if _, err := io.WriteString(w.port, line); err != nil {
					if lastErr == nil || err.Error() != lastErr.Error() || time.Since(lastLogged) > 10*time.Second {
						monitoring.Logf("serial write to %s failed: %v", w.path, err)
						lastLogged = time.Now()
					}
					lastErr = err
				} else {
					lastErr = nil
				}
			}
		}
	}()
	monitoring.Logf("Writing output to serial port %s", w.path)
}

// Publish queues s. A full queue drops it.
func (w *SerialWriter) Publish(s bridge.Snapshot) {
	select {
	case w.lines <- FormatCSV(s):
	default:
		w.drops.AddDropped()
	}
}

// Close stops the write loop and closes the port.
func (w *SerialWriter) Close() error {
	close(w.lines)
	if w.started {
		<-w.done
	}
	return w.port.Close()
}

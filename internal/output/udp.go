package output

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/mocap"
	"github.com/banshee-data/mocap.bridge/internal/monitoring"
)

// DatagramSize is the length of an encoded output datagram: the tick as a
// little-endian uint64, six little-endian float64s, and a fresh flag byte.
const DatagramSize = 8 + 8*mocap.OutputWidth + 1

// EncodeDatagram lays s out in wire order.
func EncodeDatagram(s bridge.Snapshot) []byte {
	buf := make([]byte, DatagramSize)
	binary.LittleEndian.PutUint64(buf[0:8], s.Tick)
	for i, v := range s.Vector {
		binary.LittleEndian.PutUint64(buf[8+8*i:], math.Float64bits(v))
	}
	if s.Fresh {
		buf[DatagramSize-1] = 1
	}
	return buf
}

// DecodeDatagram is the inverse of EncodeDatagram.
func DecodeDatagram(b []byte) (tick uint64, v mocap.OutputVector, fresh bool, err error) {
	if len(b) != DatagramSize {
		return 0, v, false, fmt.Errorf("datagram is %d bytes, want %d", len(b), DatagramSize)
	}
	tick = binary.LittleEndian.Uint64(b[0:8])
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8+8*i:]))
	}
	return tick, v, b[DatagramSize-1] == 1, nil
}

// UDPForwarder sends every snapshot as a datagram without blocking the
// tick loop.
type UDPForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	drops       DropCounter
	logInterval time.Duration
	address     string
	started     bool
	done        chan struct{}
}

// NewUDPForwarder dials address ("host:port"). drops may be nil.
func NewUDPForwarder(address string, drops DropCounter, logInterval time.Duration) (*UDPForwarder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	if drops == nil {
		drops = nopDrops{}
	}
	if logInterval <= 0 {
		logInterval = 10 * time.Second
	}
	return &UDPForwarder{
		conn:        conn,
		channel:     make(chan []byte, 256),
		drops:       drops,
		logInterval: logInterval,
		address:     address,
		done:        make(chan struct{}),
	}, nil
}

// Start runs the send loop until ctx is done or Close is called. Write
// errors are summarised once per log interval.
func (f *UDPForwarder) Start(ctx context.Context) {
	f.started = true
	go func() {
		defer close(f.done)
		failed := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case datagram, ok := <-f.channel:
				if !ok {
					return
				}
				if _, err := f.conn.Write(datagram); err != nil {
					failed++
					lastError = err
				}
			case <-ticker.C:
				if failed > 0 && lastError != nil {
					monitoring.Logf("Dropped %d forwarded datagrams due to errors (latest: %v)", failed, lastError)
					failed = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("Forwarding output to %s", f.address)
}

// Publish queues s. A full queue drops it.
func (f *UDPForwarder) Publish(s bridge.Snapshot) {
	select {
	case f.channel <- EncodeDatagram(s):
	default:
		f.drops.AddDropped()
	}
}

// Close stops the send loop and closes the socket. Publish must not be
// called afterwards.
func (f *UDPForwarder) Close() error {
	close(f.channel)
	if f.started {
		<-f.done
	}
	return f.conn.Close()
}

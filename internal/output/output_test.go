package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/mocap"
)

func snap(tick uint64, fresh bool, v ...float64) bridge.Snapshot {
	s := bridge.Snapshot{Tick: tick, Fresh: fresh}
	copy(s.Vector[:], v)
	return s
}

type dropCount struct {
	mu sync.Mutex
	n  int
}

func (d *dropCount) AddDropped() {
	d.mu.Lock()
	d.n++
	d.mu.Unlock()
}

func (d *dropCount) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

func TestLatest(t *testing.T) {
	var l Latest
	_, ok := l.Get()
	assert.False(t, ok)

	l.Publish(snap(1, true, 1, 2, 3))
	l.Publish(snap(2, false, 1, 2, 3))
	got, ok := l.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.Tick)
	assert.False(t, got.Fresh)
	assert.NoError(t, l.Close())
}

func TestTraceRing(t *testing.T) {
	tr := NewTrace(3)
	assert.Empty(t, tr.Points())

	tr.Publish(snap(1, true, 1))
	tr.Publish(snap(2, true, 2))
	if diff := cmp.Diff([]uint64{1, 2}, ticks(tr.Points())); diff != "" {
		t.Errorf("partial ring mismatch (-want +got):\n%s", diff)
	}

	for i := uint64(3); i <= 7; i++ {
		tr.Publish(snap(i, i%2 == 0, float64(i)))
	}
	pts := tr.Points()
	if diff := cmp.Diff([]uint64{5, 6, 7}, ticks(pts)); diff != "" {
		t.Errorf("wrapped ring mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 7.0, pts[2].Vector.X())
	assert.True(t, pts[1].Fresh)
}

func TestTraceZeroSize(t *testing.T) {
	tr := NewTrace(0)
	tr.Publish(snap(1, true))
	assert.Empty(t, tr.Points())
}

func ticks(pts []TracePoint) []uint64 {
	out := make([]uint64, len(pts))
	for i, p := range pts {
		out[i] = p.Tick
	}
	return out
}

func TestDatagramRoundTrip(t *testing.T) {
	s := snap(42, true, 1.5, -2.25, 3, 10, -20, 179.5)
	b := EncodeDatagram(s)
	require.Len(t, b, DatagramSize)
	assert.Equal(t, 57, DatagramSize)

	tick, v, fresh, err := DecodeDatagram(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), tick)
	assert.Equal(t, s.Vector, v)
	assert.True(t, fresh)

	_, _, _, err = DecodeDatagram(b[:10])
	assert.Error(t, err)
}

func TestUDPForwarderDelivers(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	drops := &dropCount{}
	fwd, err := NewUDPForwarder(pc.LocalAddr().String(), drops, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fwd.Start(ctx)

	fwd.Publish(snap(7, false, 1, 2, 3, 4, 5, 6))

	buf := make([]byte, 128)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	tick, v, fresh, err := DecodeDatagram(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, uint64(7), tick)
	assert.Equal(t, mocap.OutputVector{1, 2, 3, 4, 5, 6}, v)
	assert.False(t, fresh)

	assert.NoError(t, fwd.Close())
	assert.Zero(t, drops.count())
}

func TestUDPForwarderDropsWhenFull(t *testing.T) {
	drops := &dropCount{}
	fwd, err := NewUDPForwarder("127.0.0.1:9", drops, time.Second)
	require.NoError(t, err)

	// Without Start nothing drains the queue.
	for i := 0; i < cap(fwd.channel)+5; i++ {
		fwd.Publish(snap(uint64(i), true))
	}
	assert.Equal(t, 5, drops.count())
	assert.NoError(t, fwd.Close())
}

func TestUDPForwarderBadAddress(t *testing.T) {
	_, err := NewUDPForwarder("not an address", nil, 0)
	assert.Error(t, err)
}

func TestPortOptionsNormalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.Normalize()
	assert.Error(t, err)

	mode, err := PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
}

func TestFormatCSV(t *testing.T) {
	got := FormatCSV(snap(3, true, 1, 2.5, -3, 0, 90, -180))
	assert.Equal(t, "3,1.000000,2.500000,-3.000000,0.000000,90.000000,-180.000000,1\n", got)
	assert.Equal(t, "0,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0\n", FormatCSV(bridge.Snapshot{}))
}

// bufferPort is an in-memory serial port.
type bufferPort struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (p *bufferPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *bufferPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *bufferPort) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}

func TestSerialWriter(t *testing.T) {
	port := &bufferPort{}
	w := NewSerialWriter(port, "/dev/null", nil)
	w.Start(context.Background())

	w.Publish(snap(1, true, 1))
	w.Publish(snap(2, false, 1))
	require.NoError(t, w.Close())

	assert.Equal(t, FormatCSV(snap(1, true, 1))+FormatCSV(snap(2, false, 1)), port.String())
	assert.True(t, port.closed)
}

type fakeSender struct {
	sent   [][]interface{}
	err    error
	closed bool
}

func (f *fakeSender) SendMessageDontwait(parts ...interface{}) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, parts)
	return len(parts), nil
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func TestZMQPublisher(t *testing.T) {
	sender := &fakeSender{}
	drops := &dropCount{}
	p := newZMQPublisher(sender, "", drops)

	p.Publish(snap(9, true, 1, 2, 3))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	require.Len(t, msg, 2)
	assert.Equal(t, DefaultTopic, msg[0])

	var decoded bridge.Snapshot
	require.NoError(t, json.Unmarshal(msg[1].([]byte), &decoded))
	assert.Equal(t, uint64(9), decoded.Tick)
	assert.Equal(t, 2.0, decoded.Vector[1])

	sender.err = errors.New("resource temporarily unavailable")
	p.Publish(snap(10, true))
	p.Publish(snap(11, true))
	assert.Equal(t, 2, drops.count())

	require.NoError(t, p.Close())
	assert.True(t, sender.closed)
}

type recordSink struct {
	got      []uint64
	closeErr error
}

func (r *recordSink) Publish(s bridge.Snapshot) { r.got = append(r.got, s.Tick) }
func (r *recordSink) Close() error              { return r.closeErr }

func TestFanout(t *testing.T) {
	a := &recordSink{}
	b := &recordSink{closeErr: errors.New("b failed")}
	f := Fanout{a, b}

	f.Publish(snap(1, true))
	f.Publish(snap(2, true))
	assert.Equal(t, []uint64{1, 2}, a.got)
	assert.Equal(t, []uint64{1, 2}, b.got)

	err := f.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b failed")
}

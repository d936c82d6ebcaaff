package output

import (
	"encoding/json"
	"fmt"

	"github.com/pebbe/zmq4"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/monitoring"
)

// DefaultTopic is the first frame of every published message.
const DefaultTopic = "mocap.pose"

// zmqSender is the part of *zmq4.Socket the publisher uses.
type zmqSender interface {
	SendMessageDontwait(parts ...interface{}) (int, error)
	Close() error
}

// ZMQPublisher publishes snapshots on a ZeroMQ PUB socket as two-frame
// messages: topic, then the snapshot as JSON. Sends never block; a
// subscriber that cannot keep up loses messages.
type ZMQPublisher struct {
	sock   zmqSender
	topic  string
	drops  DropCounter
	failed bool
}

// NewZMQPublisher binds a PUB socket to endpoint, e.g. "tcp://*:5556".
func NewZMQPublisher(endpoint, topic string, drops DropCounter) (*ZMQPublisher, error) {
	sock, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create zmq socket: %w", err)
	}
	if err := sock.SetLinger(0); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set zmq linger: %w", err)
	}
	if err := sock.SetSndhwm(100); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set zmq send high-water mark: %w", err)
	}
	if err := sock.Bind(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to bind zmq socket to %s: %w", endpoint, err)
	}
	monitoring.Logf("Publishing output on %s (topic %q)", endpoint, topic)
	return newZMQPublisher(sock, topic, drops), nil
}

func newZMQPublisher(sock zmqSender, topic string, drops DropCounter) *ZMQPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if drops == nil {
		drops = nopDrops{}
	}
	return &ZMQPublisher{sock: sock, topic: topic, drops: drops}
}

// Publish sends s. It must be called from one goroutine only.
func (p *ZMQPublisher) Publish(s bridge.Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.drops.AddDropped()
		return
	}
	if _, err := p.sock.SendMessageDontwait(p.topic, payload); err != nil {
		p.drops.AddDropped()
		if !p.failed {
			monitoring.Logf("zmq publish failed: %v", err)
			p.failed = true
		}
		return
	}
	p.failed = false
}

// Close closes the socket.
func (p *ZMQPublisher) Close() error {
	return p.sock.Close()
}

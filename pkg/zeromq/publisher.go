package zeromq

import (
	"fmt"
	"sync"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/simbridge/pkg/log"
)

// TopicCycle is the topic cycle records are published on.
const TopicCycle = "bridge.cycle"

// Publisher fans telemetry out over a PUB socket. Publishing never blocks
// the caller; slow subscribers lose messages at the socket's high-water mark.
type Publisher struct {
	ctx      *zmq4.Context
	socket   *zmq4.Socket
	endpoint string
	logger   customlog.Logger
	running  bool
	mu       sync.Mutex
}

// NewPublisher binds a PUB socket to address.
func NewPublisher(address string, logger customlog.Logger) (*Publisher, error) {
	zctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	socket, err := zctx.NewSocket(zmq4.PUB)
	if err != nil {
		zctx.Term()
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		zctx.Term()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.Bind(address); err != nil {
		socket.Close()
		zctx.Term()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}
	endpoint, err := socket.GetLastEndpoint()
	if err != nil {
		endpoint = address
	}

	logger.Infof("Publisher bound on %s", endpoint)

	return &Publisher{
		ctx:      zctx,
		socket:   socket,
		endpoint: endpoint,
		logger:   logger,
		running:  true,
	}, nil
}

// Endpoint returns the bound address.
func (p *Publisher) Endpoint() string { return p.endpoint }

// PublishMessage sends a two-frame message: topic, then payload.
func (p *Publisher) PublishMessage(topic string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrServiceClosed
	}

	if _, err := p.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := p.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// PublishJSON wraps data in a ZeroMQMessage envelope and publishes it.
func (p *Publisher) PublishJSON(topic string, messageType string, data interface{}) error {
	msg, err := marshalEnvelope(messageType, data)
	if err != nil {
		return err
	}
	return p.PublishMessage(topic, msg)
}

// Close releases the socket. Later publishes return ErrServiceClosed.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.socket.Close()
	p.ctx.Term()
}

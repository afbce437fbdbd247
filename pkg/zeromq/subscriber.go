package zeromq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/simbridge/pkg/log"
)

// Subscriber listens to a Publisher and hands every decoded envelope to a
// callback.
type Subscriber struct {
	ctx     *zmq4.Context
	socket  *zmq4.Socket
	poller  *zmq4.Poller
	onMsg   func(topic string, msg ZeroMQMessage)
	logger  customlog.Logger
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewSubscriber connects a SUB socket to address and subscribes to topic.
func NewSubscriber(address, topic string, onMsg func(topic string, msg ZeroMQMessage), logger customlog.Logger) (*Subscriber, error) {
	zctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	socket, err := zctx.NewSocket(zmq4.SUB)
	if err != nil {
		zctx.Term()
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		zctx.Term()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.SetSubscribe(topic); err != nil {
		socket.Close()
		zctx.Term()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", topic, err)
	}
	if err := socket.Connect(address); err != nil {
		socket.Close()
		zctx.Term()
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	return &Subscriber{
		ctx:    zctx,
		socket: socket,
		poller: poller,
		onMsg:  onMsg,
		logger: logger,
	}, nil
}

// Start begins receiving in a background goroutine.
func (s *Subscriber) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.receiveLoop(ctx)
}

func (s *Subscriber) receiveLoop(ctx context.Context) {
	defer s.wg.Done()
	for ctx.Err() == nil {
		sockets, err := s.poller.Poll(200 * time.Millisecond)
		if err != nil || len(sockets) == 0 {
			continue
		}

		frames, err := s.socket.RecvMessageBytes(0)
		if err != nil {
			s.logger.Warnf("Error receiving message: %v", err)
			continue
		}
		if len(frames) != 2 {
			s.logger.Warnf("Dropping message with %d frames", len(frames))
			continue
		}

		var msg ZeroMQMessage
		if err := json.Unmarshal(frames[1], &msg); err != nil {
			s.logger.Warnf("Dropping undecodable message on %q: %v", frames[0], err)
			continue
		}
		s.onMsg(string(frames[0]), msg)
	}
}

// Stop halts the receive loop and releases the socket.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
		s.ctx.Term()
	}
}

// Package zeromq carries the bridge protocol over ZeroMQ sockets: a REQ
// requester on the simulation side, a REP responder for controller peers and
// a PUB publisher for cycle telemetry.
package zeromq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/open-teleop/simbridge/pkg/config"
	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/pkg/transport"
)

// Common errors
var (
	ErrServiceClosed = errors.New("zeromq service is closed")
)

// Message types
const (
	MsgTypeCycle = "CYCLE"
	MsgTypeError = "ERROR"
)

// ZeroMQMessage is the envelope for telemetry and error replies.
type ZeroMQMessage struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ErrorResponse is sent by a Responder when its handler fails.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Requester is the simulation side of the exchange. It owns a REQ socket
// connected to the controller and enforces strict send/receive alternation.
type Requester struct {
	ctx          *zmq4.Context
	socket       *zmq4.Socket
	poller       *zmq4.Poller
	address      string
	replyTimeout time.Duration
	pollInterval time.Duration
	logger       customlog.Logger
	broken       bool
	mu           sync.Mutex
}

var _ transport.Transport = (*Requester)(nil)

// NewRequester connects a REQ socket to cfg.PeerAddress.
func NewRequester(cfg config.ZeroMQBootstrap, logger customlog.Logger) (*Requester, error) {
	if cfg.PeerAddress == "" {
		return nil, fmt.Errorf("zeromq: empty peer address")
	}
	pollInterval := cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}

	zctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	socket, err := zctx.NewSocket(zmq4.REQ)
	if err != nil {
		zctx.Term()
		return nil, fmt.Errorf("failed to create REQ socket: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		zctx.Term()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.Connect(cfg.PeerAddress); err != nil {
		socket.Close()
		zctx.Term()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.PeerAddress, err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("Requester connected to %s (reply timeout %v)", cfg.PeerAddress, cfg.ReplyTimeout())

	return &Requester{
		ctx:          zctx,
		socket:       socket,
		poller:       poller,
		address:      cfg.PeerAddress,
		replyTimeout: cfg.ReplyTimeout(),
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

// Exchange sends request and waits for the reply. The wait is polled in
// pollInterval slices so ctx cancellation is noticed promptly. A zero reply
// timeout waits until ctx is done. After a timeout or socket error the REQ
// state machine is stuck, so every later call fails with
// transport.ErrConnectionLost.
func (r *Requester) Exchange(ctx context.Context, request []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.socket == nil {
		return nil, transport.ErrClosed
	}
	if r.broken {
		return nil, fmt.Errorf("%w: %s did not answer a previous request", transport.ErrConnectionLost, r.address)
	}

	if _, err := r.socket.SendBytes(request, 0); err != nil {
		r.broken = true
		return nil, fmt.Errorf("%w: send to %s: %v", transport.ErrConnectionLost, r.address, err)
	}
	r.logger.Debugf("Sent %d bytes to %s", len(request), r.address)

	var deadline time.Time
	if r.replyTimeout > 0 {
		deadline = time.Now().Add(r.replyTimeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			r.broken = true
			return nil, fmt.Errorf("await reply from %s: %w", r.address, err)
		}

		wait := r.pollInterval
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				r.broken = true
				return nil, fmt.Errorf("%w: no reply from %s within %v", transport.ErrConnectionLost, r.address, r.replyTimeout)
			}
			if left < wait {
				wait = left
			}
		}

		sockets, err := r.poller.Poll(wait)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EINTR) {
				continue
			}
			r.broken = true
			return nil, fmt.Errorf("%w: poll %s: %v", transport.ErrConnectionLost, r.address, err)
		}
		if len(sockets) == 0 {
			continue
		}

		reply, err := r.socket.RecvBytes(0)
		if err != nil {
			r.broken = true
			return nil, fmt.Errorf("%w: receive from %s: %v", transport.ErrConnectionLost, r.address, err)
		}
		r.logger.Debugf("Received reply (%d bytes)", len(reply))
		return reply, nil
	}
}

// Close releases the socket and context. It is safe to call more than once.
func (r *Requester) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.socket == nil {
		return nil
	}
	err := r.socket.Close()
	r.socket = nil
	if termErr := r.ctx.Term(); err == nil {
		err = termErr
	}
	r.logger.Infof("Requester to %s closed", r.address)
	return err
}

func marshalEnvelope(msgType string, data interface{}) ([]byte, error) {
	msg := ZeroMQMessage{
		Type:      msgType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      data,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return b, nil
}

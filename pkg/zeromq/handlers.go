package zeromq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/pkg/protocol"
	"github.com/open-teleop/simbridge/pkg/transport"
)

// Responder is the controller side of the exchange: a REP socket that
// answers every state batch through a handler.
type Responder struct {
	ctx      *zmq4.Context
	socket   *zmq4.Socket
	poller   *zmq4.Poller
	handler  transport.Handler
	endpoint string
	logger   customlog.Logger
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewResponder binds a REP socket to address. Use "tcp://127.0.0.1:*" to
// let the OS pick a port; Endpoint reports the resolved address.
func NewResponder(address string, handler transport.Handler, logger customlog.Logger) (*Responder, error) {
	zctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	socket, err := zctx.NewSocket(zmq4.REP)
	if err != nil {
		zctx.Term()
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
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

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("Responder bound on %s", endpoint)

	return &Responder{
		ctx:      zctx,
		socket:   socket,
		poller:   poller,
		handler:  handler,
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// Endpoint returns the bound address.
func (r *Responder) Endpoint() string { return r.endpoint }

// Start begins answering requests in a background goroutine.
func (r *Responder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.serve(ctx)
}

func (r *Responder) serve(ctx context.Context) {
	defer r.wg.Done()
	r.logger.Infof("Responder started")

	for ctx.Err() == nil {
		// Poll with timeout to allow for clean shutdown
		sockets, err := r.poller.Poll(200 * time.Millisecond)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warnf("Error polling socket: %v", err)
			}
			continue
		}
		if len(sockets) == 0 {
			continue
		}

		msg, err := r.socket.RecvBytes(0)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warnf("Error receiving message: %v", err)
			}
			continue
		}
		r.logger.Debugf("Received request (%d bytes)", len(msg))

		response, err := r.handler(ctx, msg)
		if err != nil {
			r.logger.Errorf("Handler failed: %v", err)
			response, err = marshalEnvelope(MsgTypeError, ErrorResponse{Message: err.Error(), Code: 500})
			if err != nil {
				r.logger.Errorf("Error building error response: %v", err)
				response = []byte(`{"type":"ERROR"}`)
			}
		}

		// REP must answer before it can receive again
		if _, err := r.socket.SendBytes(response, 0); err != nil && ctx.Err() == nil {
			r.logger.Warnf("Error sending response: %v", err)
		}
	}
	r.logger.Infof("Responder stopped")
}

// Stop halts the serve loop and releases the socket.
func (r *Responder) Stop() {
	r.mu.Lock()
	if r.running {
		r.running = false
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.socket != nil {
		r.socket.Close()
		r.socket = nil
		r.ctx.Term()
	}
}

// NewHoldHandler returns a handler that answers each state batch with
// Joint commands holding every robot at its reported positions. Reports
// without positions are answered with an empty Joint command.
func NewHoldHandler(logger customlog.Logger) transport.Handler {
	var cycles uint64
	return func(_ context.Context, request []byte) ([]byte, error) {
		reports, err := protocol.DecodeStateBatch(request)
		if err != nil {
			return nil, err
		}

		cmds := make([]protocol.Command, len(reports))
		for i, st := range reports {
			cmds[i] = protocol.Joint{Positions: heldPositions(st)}
		}
		cycles++
		if cycles%240 == 1 {
			logger.Infof("Holding %d robots (cycle %d)", len(reports), cycles)
		}
		return protocol.EncodeReply(&protocol.Reply{Commands: cmds})
	}
}

func heldPositions(st protocol.StateReport) []float64 {
	switch s := st.(type) {
	case protocol.JointVelocity:
		return s.Positions
	case protocol.JointVelocityAcceleration:
		return s.Positions
	case protocol.Joint:
		return s.Positions
	}
	return nil
}

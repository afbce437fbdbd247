// Package transport defines the request/reply link between the bridge and
// its controller peer.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrConnectionLost is returned when the peer does not answer within the
	// reply timeout or the socket fails mid-exchange. The link cannot be
	// reused afterwards.
	ErrConnectionLost = errors.New("connection lost")
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport closed")
)

// Transport carries one request and its reply at a time. Exchange blocks
// until the full reply arrives, the reply timeout expires or ctx is done.
// Implementations need not be safe for concurrent use.
type Transport interface {
	Exchange(ctx context.Context, request []byte) ([]byte, error)
	Close() error
}

// Handler answers one request on the controller side of the link.
type Handler func(ctx context.Context, request []byte) ([]byte, error)

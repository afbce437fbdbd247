package protocol

import "errors"

// Protocol errors. Every decode failure wraps ErrMalformedMessage; the more
// specific sentinels are wrapped alongside it so callers can match either.
var (
	ErrMalformedMessage     = errors.New("malformed message")
	ErrUnknownCommandTag    = errors.New("unknown command tag")
	ErrLengthMismatch       = errors.New("length mismatch")
	ErrUnsupportedCommand   = errors.New("unsupported command")
	ErrUnknownObstacleShape = errors.New("unknown obstacle shape")
)

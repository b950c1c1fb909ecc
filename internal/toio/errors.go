package toio

import "errors"

// Domain-specific errors for cube protocol operations.
var (
	// ErrInvalidArgument is returned when a command parameter is outside
	// the range the protocol can encode.
	ErrInvalidArgument = errors.New("toio: invalid argument")

	// ErrMalformedPacket is returned when a notification or read value
	// does not match a known layout.
	ErrMalformedPacket = errors.New("toio: malformed packet")

	// ErrLinkFailure wraps transport errors from the BLE link.
	ErrLinkFailure = errors.New("toio: link failure")

	// ErrClosed is returned when using a cube after Close.
	ErrClosed = errors.New("toio: cube closed")
)

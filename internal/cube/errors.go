package cube

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/toio-bridge/internal/toio"
)

// Kind classifies a failure so callers can tell a missing session from a
// broken link without parsing messages.
type Kind string

// Error kinds.
const (
	KindNotFound         Kind = "not_found"
	KindNotRegistered    Kind = "not_registered"
	KindDevice           Kind = "device_error"
	KindDiscoveryTimeout Kind = "discovery_timeout"
	KindInvalidArgument  Kind = "invalid_argument"
	KindInternal         Kind = "internal"
)

// Error is a classified registry failure. Message is safe to show to the
// agent; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind-only sentinels below.
//
//	if errors.Is(err, cube.ErrNotFound) { ... }
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrNotRegistered    = &Error{Kind: KindNotRegistered}
	ErrDevice           = &Error{Kind: KindDevice}
	ErrDiscoveryTimeout = &Error{Kind: KindDiscoveryTimeout}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
)

// CubeNotFound is the error for an unknown session identifier.
func CubeNotFound(sessionID string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("Cube with ID %s not found", sessionID)}
}

// DeviceNotFound is the error for a discovery identifier no scan reported.
func DeviceNotFound(deviceID string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("Device with ID %s not found", deviceID)}
}

// NotRegistered is the error for unregistering a handler that is not installed.
func NotRegistered(sessionID string) *Error {
	return &Error{Kind: KindNotRegistered, Message: fmt.Sprintf("No notification handler registered for cube %s", sessionID)}
}

// InvalidArgument is the error for a parameter rejected before reaching a device.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// DeviceError classifies a failure talking to a cube.
func DeviceError(message string, err error) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Kind: KindDevice, Message: message, Err: err}
}

// KindOf classifies any error returned by the registry or a cube.
func KindOf(err error) Kind {
	var e *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &e):
		return e.Kind
	case errors.Is(err, toio.ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, toio.ErrLinkFailure),
		errors.Is(err, toio.ErrMalformedPacket),
		errors.Is(err, toio.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindDevice
	default:
		return KindInternal
	}
}

package telemetry

import "errors"

var (
	// ErrStopped is returned when an event arrives after Stop.
	ErrStopped = errors.New("telemetry: fanout stopped")

	// ErrNotConnected is returned by sinks whose back-end is offline.
	ErrNotConnected = errors.New("telemetry: sink not connected")
)

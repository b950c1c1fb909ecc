package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/toio"
)

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session event types.
const (
	SessionConnected    = "connected"
	SessionDisconnected = "disconnected"
)

// SessionEvent reports a cube connecting or disconnecting.
type SessionEvent struct {
	Type    string           `json:"type"`
	Session cube.SessionInfo `json:"session"`
	Error   string           `json:"error,omitempty"`
	At      time.Time        `json:"at"`
}

// Sink receives telemetry. Implementations must be safe for use from the
// fan-out worker; they are never called concurrently by one Fanout.
type Sink interface {
	Name() string
	Notification(ctx context.Context, n cube.Notification) error
	Session(ctx context.Context, ev SessionEvent) error
}

// position is the flat form of an ID-information reading shared by the
// InfluxDB and journal sinks.
type position struct {
	kind               string
	x, y, angle, value *int
}

func flattenPosition(info toio.IDInformation) position {
	p := position{kind: string(info.Kind)}
	switch {
	case info.Position != nil:
		x, y, a := int(info.Position.CenterX), int(info.Position.CenterY), int(info.Position.CenterAngle)
		p.x, p.y, p.angle = &x, &y, &a
	case info.Standard != nil:
		v, a := int(info.Standard.Value), int(info.Standard.Angle)
		p.value, p.angle = &v, &a
	}
	return p
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

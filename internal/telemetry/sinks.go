package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/history"
	"github.com/nerrad567/toio-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/toio-bridge/internal/toio"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink(logger Logger) *LogSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notification(_ context.Context, n cube.Notification) error {
	s.logger.Debug("cube notification", "cube_id", n.SessionID, "topic", n.Topic, "payload", n.Payload)
	return nil
}

func (s *LogSink) Session(_ context.Context, ev SessionEvent) error {
	if ev.Error != "" {
		s.logger.Warn("cube session "+ev.Type, "cube_id", ev.Session.ID, "device_id", ev.Session.DeviceID, "error", ev.Error)
		return nil
	}
	s.logger.Info("cube session "+ev.Type, "cube_id", ev.Session.ID, "device_id", ev.Session.DeviceID)
	return nil
}

// JSONPublisher publishes JSON documents. Implemented by *mqtt.Client.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
	IsConnected() bool
}

// MQTTSink publishes events under the toio/cube/<cube_id>/ topics.
type MQTTSink struct {
	pub    JSONPublisher
	topics mqtt.Topics
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub JSONPublisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Notification(_ context.Context, n cube.Notification) error {
	if !s.pub.IsConnected() {
		return ErrNotConnected
	}
	var topic string
	switch n.Topic {
	case cube.TopicPosition:
		topic = s.topics.CubePosition(n.SessionID)
	case cube.TopicButton:
		topic = s.topics.CubeButton(n.SessionID)
	case cube.TopicBattery:
		topic = s.topics.CubeBattery(n.SessionID)
	default:
		return fmt.Errorf("mqtt sink: unknown topic %q", n.Topic)
	}
	return s.pub.PublishJSON(topic, n, false)
}

func (s *MQTTSink) Session(_ context.Context, ev SessionEvent) error {
	if !s.pub.IsConnected() {
		return ErrNotConnected
	}
	return s.pub.PublishJSON(s.topics.CubeSession(ev.Session.ID), ev, false)
}

// PointWriter writes cube measurements. Implemented by *influxdb.Client.
type PointWriter interface {
	WriteCubePosition(cubeID, kind string, x, y, angle, value int, at time.Time)
	WriteCubeSession(cubeID, deviceID string, connected bool, at time.Time)
	WriteBatteryLevel(cubeID string, level int, at time.Time)
}

// InfluxSink records positions, battery levels and sessions as points.
// Button notifications are not recorded.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) Notification(_ context.Context, n cube.Notification) error {
	switch payload := n.Payload.(type) {
	case toio.IDInformation:
		p := flattenPosition(payload)
		s.w.WriteCubePosition(n.SessionID, p.kind, deref(p.x), deref(p.y), deref(p.angle), deref(p.value), n.At)
	case int:
		if n.Topic == cube.TopicBattery {
			s.w.WriteBatteryLevel(n.SessionID, payload, n.At)
		}
	}
	return nil
}

func (s *InfluxSink) Session(_ context.Context, ev SessionEvent) error {
	s.w.WriteCubeSession(ev.Session.ID, ev.Session.DeviceID, ev.Type == SessionConnected, ev.At)
	return nil
}

// Journal is the subset of the history repository the journal sink needs.
type Journal interface {
	RecordConnect(ctx context.Context, sessionID, deviceID, name string, at time.Time) error
	RecordDisconnect(ctx context.Context, sessionID string, at time.Time, closeErr error) error
	RecordPosition(ctx context.Context, rec history.PositionRecord) error
}

// JournalSink records sessions and position readings in SQLite.
type JournalSink struct {
	journal Journal
}

// NewJournalSink creates a sink writing to journal.
func NewJournalSink(journal Journal) *JournalSink {
	return &JournalSink{journal: journal}
}

func (s *JournalSink) Name() string { return "journal" }

func (s *JournalSink) Notification(ctx context.Context, n cube.Notification) error {
	info, ok := n.Payload.(toio.IDInformation)
	if !ok {
		return nil
	}
	p := flattenPosition(info)
	return s.journal.RecordPosition(ctx, history.PositionRecord{
		SessionID: n.SessionID,
		Kind:      p.kind,
		X:         p.x,
		Y:         p.y,
		Angle:     p.angle,
		Value:     p.value,
		CreatedAt: n.At,
	})
}

func (s *JournalSink) Session(ctx context.Context, ev SessionEvent) error {
	switch ev.Type {
	case SessionConnected:
		return s.journal.RecordConnect(ctx, ev.Session.ID, ev.Session.DeviceID, ev.Session.Name, ev.At)
	case SessionDisconnected:
		var closeErr error
		if ev.Error != "" {
			closeErr = errors.New(ev.Error)
		}
		return s.journal.RecordDisconnect(ctx, ev.Session.ID, ev.At, closeErr)
	}
	return nil
}

package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/history"
	"github.com/nerrad567/toio-bridge/internal/infrastructure/database"
	"github.com/nerrad567/toio-bridge/internal/toio"
	_ "github.com/nerrad567/toio-bridge/migrations"
)

type fakeJSONPublisher struct {
	mu        sync.Mutex
	connected bool
	topics    []string
	bodies    [][]byte
}

func (p *fakeJSONPublisher) PublishJSON(topic string, v any, _ bool) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.topics = append(p.topics, topic)
	p.bodies = append(p.bodies, b)
	p.mu.Unlock()
	return nil
}

func (p *fakeJSONPublisher) IsConnected() bool { return p.connected }

func TestMQTTSink(t *testing.T) {
	pub := &fakeJSONPublisher{connected: true}
	s := NewMQTTSink(pub)
	ctx := context.Background()

	if err := s.Notification(ctx, positionNotification("cube_1")); err != nil {
		t.Fatalf("Notification() error = %v", err)
	}
	if err := s.Notification(ctx, cube.Notification{SessionID: "cube_1", Topic: cube.TopicButton, Payload: toio.ButtonPressed}); err != nil {
		t.Fatalf("Notification() error = %v", err)
	}
	if err := s.Session(ctx, SessionEvent{Type: SessionConnected, Session: cube.SessionInfo{ID: "cube_1"}}); err != nil {
		t.Fatalf("Session() error = %v", err)
	}

	want := []string{"toio/cube/cube_1/position", "toio/cube/cube_1/button", "toio/cube/cube_1/session"}
	for i, topic := range want {
		if pub.topics[i] != topic {
			t.Errorf("topic[%d] = %q, want %q", i, pub.topics[i], topic)
		}
	}

	var body struct {
		CubeID  string         `json:"cube_id"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(pub.bodies[0], &body); err != nil {
		t.Fatalf("position body: %v", err)
	}
	if body.CubeID != "cube_1" || body.Payload["type"] != "position_id" || body.Payload["center_x"] != float64(100) {
		t.Errorf("position body = %s", pub.bodies[0])
	}
}

func TestMQTTSink_Disconnected(t *testing.T) {
	s := NewMQTTSink(&fakeJSONPublisher{})
	if err := s.Notification(context.Background(), positionNotification("cube_1")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Notification() error = %v, want ErrNotConnected", err)
	}
}

type fakePointWriter struct {
	positions []string
	batteries []int
	sessions  []bool
}

func (w *fakePointWriter) WriteCubePosition(cubeID, kind string, x, y, angle, value int, _ time.Time) {
	w.positions = append(w.positions, kind)
}

func (w *fakePointWriter) WriteCubeSession(_, _ string, connected bool, _ time.Time) {
	w.sessions = append(w.sessions, connected)
}

func (w *fakePointWriter) WriteBatteryLevel(_ string, level int, _ time.Time) {
	w.batteries = append(w.batteries, level)
}

func TestInfluxSink(t *testing.T) {
	w := &fakePointWriter{}
	s := NewInfluxSink(w)
	ctx := context.Background()

	_ = s.Notification(ctx, positionNotification("cube_1"))
	_ = s.Notification(ctx, cube.Notification{SessionID: "cube_1", Topic: cube.TopicBattery, Payload: 77})
	_ = s.Notification(ctx, cube.Notification{SessionID: "cube_1", Topic: cube.TopicButton, Payload: toio.ButtonReleased})
	_ = s.Session(ctx, SessionEvent{Type: SessionConnected})
	_ = s.Session(ctx, SessionEvent{Type: SessionDisconnected})

	if len(w.positions) != 1 || w.positions[0] != "position_id" {
		t.Errorf("positions = %v", w.positions)
	}
	if len(w.batteries) != 1 || w.batteries[0] != 77 {
		t.Errorf("batteries = %v", w.batteries)
	}
	if len(w.sessions) != 2 || !w.sessions[0] || w.sessions[1] {
		t.Errorf("sessions = %v", w.sessions)
	}
}

func TestJournalSink(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo := history.NewRepository(db.DB)
	s := NewJournalSink(repo)

	info := cube.SessionInfo{ID: "cube_1", DeviceID: "AA:01", Name: "toio Core Cube-a"}
	if err := s.Session(ctx, SessionEvent{Type: SessionConnected, Session: info, At: time.Now()}); err != nil {
		t.Fatalf("Session(connected) error = %v", err)
	}
	if err := s.Notification(ctx, positionNotification("cube_1")); err != nil {
		t.Fatalf("Notification() error = %v", err)
	}
	if err := s.Notification(ctx, cube.Notification{SessionID: "cube_1", Topic: cube.TopicBattery, Payload: 50}); err != nil {
		t.Fatalf("battery Notification() error = %v", err)
	}
	if err := s.Session(ctx, SessionEvent{Type: SessionDisconnected, Session: info, Error: "link lost", At: time.Now()}); err != nil {
		t.Fatalf("Session(disconnected) error = %v", err)
	}

	readings, err := repo.PositionHistory(ctx, "cube_1", 10)
	if err != nil {
		t.Fatalf("PositionHistory() error = %v", err)
	}
	if len(readings) != 1 || *readings[0].X != 100 || *readings[0].Angle != 90 {
		t.Errorf("readings = %+v", readings)
	}

	sessions, _ := repo.ListSessions(ctx, 10)
	if len(sessions) != 1 || sessions[0].Open() || sessions[0].DisconnectError != "link lost" {
		t.Errorf("sessions = %+v", sessions)
	}
}

type logEntry struct {
	level string
	msg   string
}

type fakeLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *fakeLogger) add(level, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level, msg})
	l.mu.Unlock()
}

func (l *fakeLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *fakeLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *fakeLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *fakeLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func TestLogSink(t *testing.T) {
	logger := &fakeLogger{}
	s := NewLogSink(logger)
	ctx := context.Background()

	_ = s.Notification(ctx, positionNotification("cube_1"))
	_ = s.Session(ctx, SessionEvent{Type: SessionConnected})
	_ = s.Session(ctx, SessionEvent{Type: SessionDisconnected, Error: "boom"})

	want := []logEntry{
		{"debug", "cube notification"},
		{"info", "cube session connected"},
		{"warn", "cube session disconnected"},
	}
	if len(logger.entries) != len(want) {
		t.Fatalf("entries = %+v", logger.entries)
	}
	for i := range want {
		if logger.entries[i] != want[i] {
			t.Errorf("entry[%d] = %+v, want %+v", i, logger.entries[i], want[i])
		}
	}
}

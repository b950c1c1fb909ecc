package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/toio"
)

// recordingSink keeps everything it receives.
type recordingSink struct {
	name string
	err  error
	gate chan struct{}

	mu            sync.Mutex
	notifications []cube.Notification
	sessions      []SessionEvent
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Notification(_ context.Context, n cube.Notification) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) Session(_ context.Context, ev SessionEvent) error {
	s.mu.Lock()
	s.sessions = append(s.sessions, ev)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications), len(s.sessions)
}

func positionNotification(id string) cube.Notification {
	return cube.Notification{
		SessionID: id,
		Topic:     cube.TopicPosition,
		Payload: toio.IDInformation{Kind: toio.KindPositionID, Position: &toio.PositionID{
			CenterX: 100, CenterY: 200, CenterAngle: 90,
		}},
		At: time.Now(),
	}
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("backend down")}
	healthy := &recordingSink{name: "healthy"}
	f := NewFanout(0, failing, healthy)
	f.Start(context.Background())

	f.Notify(positionNotification("cube_1"))
	f.SessionOpened(cube.SessionInfo{ID: "cube_1", DeviceID: "AA:01"})
	f.SessionClosed(cube.SessionInfo{ID: "cube_1", DeviceID: "AA:01"}, errors.New("link lost"))
	f.Stop()

	for _, s := range []*recordingSink{failing, healthy} {
		n, sess := s.counts()
		if n != 1 || sess != 2 {
			t.Errorf("%s got %d notifications, %d sessions; want 1, 2", s.name, n, sess)
		}
	}
	if got := healthy.sessions[1]; got.Type != SessionDisconnected || got.Error != "link lost" {
		t.Errorf("close event = %+v", got)
	}
	if got := healthy.sessions[0]; got.Type != SessionConnected || got.Error != "" {
		t.Errorf("open event = %+v", got)
	}
}

func TestFanout_DropsWhenFull(t *testing.T) {
	gate := make(chan struct{})
	slow := &recordingSink{name: "slow", gate: gate}
	f := NewFanout(2, slow)
	f.Start(context.Background())

	// One in the worker, two queued, the rest dropped.
	f.Notify(positionNotification("cube_1"))
	deadline := time.Now().Add(time.Second)
	for len(f.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	for range 5 {
		f.Notify(positionNotification("cube_1"))
	}

	if f.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", f.Dropped())
	}
	close(gate)
	f.Stop()

	if n, _ := slow.counts(); n != 3 {
		t.Errorf("delivered %d notifications, want 3", n)
	}
}

func TestFanout_StopIsIdempotent(t *testing.T) {
	s := &recordingSink{name: "s"}
	f := NewFanout(4, s)
	f.Start(context.Background())
	f.Stop()
	f.Stop()

	f.Notify(positionNotification("cube_1"))
	f.SessionOpened(cube.SessionInfo{ID: "cube_1"})
	if n, sess := s.counts(); n != 0 || sess != 0 {
		t.Errorf("events delivered after Stop: %d, %d", n, sess)
	}
}

func TestFanout_Sinks(t *testing.T) {
	f := NewFanout(1, &recordingSink{name: "a"})
	f.Add(&recordingSink{name: "b"})
	got := f.Sinks()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Sinks() = %v", got)
	}
}

func TestFlattenPosition(t *testing.T) {
	tests := []struct {
		name      string
		info      toio.IDInformation
		wantKind  string
		wantX     *int
		wantValue *int
	}{
		{
			name:     "position",
			info:     toio.IDInformation{Kind: toio.KindPositionID, Position: &toio.PositionID{CenterX: 5, CenterY: 6, CenterAngle: 7}},
			wantKind: "position_id",
			wantX:    ptr(5),
		},
		{
			name:      "standard",
			info:      toio.IDInformation{Kind: toio.KindStandardID, Standard: &toio.StandardID{Value: 42, Angle: 3}},
			wantKind:  "standard_id",
			wantValue: ptr(42),
		},
		{
			name:     "missed",
			info:     toio.IDInformation{Kind: toio.KindPositionIDMissed},
			wantKind: "position_id_missed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := flattenPosition(tt.info)
			if p.kind != tt.wantKind {
				t.Errorf("kind = %q", p.kind)
			}
			if deref(p.x) != deref(tt.wantX) || (p.x == nil) != (tt.wantX == nil) {
				t.Errorf("x = %v, want %v", p.x, tt.wantX)
			}
			if deref(p.value) != deref(tt.wantValue) || (p.value == nil) != (tt.wantValue == nil) {
				t.Errorf("value = %v, want %v", p.value, tt.wantValue)
			}
		})
	}
}

func ptr(v int) *int { return &v }

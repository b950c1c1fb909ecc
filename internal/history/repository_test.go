package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/toio-bridge/internal/infrastructure/database"
	_ "github.com/nerrad567/toio-bridge/migrations"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewRepository(db.DB)
}

func ptr(v int) *int { return &v }

func TestRecordConnectAndDisconnect(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	if err := repo.RecordConnect(ctx, "cube_1", "AA:01", "toio Core Cube-a", start); err != nil {
		t.Fatalf("RecordConnect() error = %v", err)
	}
	if err := repo.RecordConnect(ctx, "cube_2", "AA:02", "", start.Add(time.Second)); err != nil {
		t.Fatalf("RecordConnect() error = %v", err)
	}
	if err := repo.RecordDisconnect(ctx, "cube_1", start.Add(time.Minute), errors.New("link lost")); err != nil {
		t.Fatalf("RecordDisconnect() error = %v", err)
	}

	sessions, err := repo.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("ListSessions() len = %d, want 2", len(sessions))
	}
	if sessions[0].SessionID != "cube_2" || !sessions[0].Open() {
		t.Errorf("newest session = %+v, want open cube_2", sessions[0])
	}
	closed := sessions[1]
	if closed.Open() || closed.DisconnectError != "link lost" {
		t.Errorf("closed session = %+v", closed)
	}
	if !closed.ConnectedAt.Equal(start) {
		t.Errorf("ConnectedAt = %v, want %v", closed.ConnectedAt, start)
	}
}

func TestRecordDisconnect_OnlyLatestOpenEntry(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	// Same id from two process runs.
	_ = repo.RecordConnect(ctx, "cube_1", "AA:01", "", now.Add(-time.Hour))
	_ = repo.RecordDisconnect(ctx, "cube_1", now.Add(-50*time.Minute), nil)
	_ = repo.RecordConnect(ctx, "cube_1", "AA:09", "", now)
	if err := repo.RecordDisconnect(ctx, "cube_1", now.Add(time.Minute), nil); err != nil {
		t.Fatalf("RecordDisconnect() error = %v", err)
	}

	sessions, _ := repo.ListSessions(ctx, 10)
	if len(sessions) != 2 {
		t.Fatalf("len = %d", len(sessions))
	}
	for _, s := range sessions {
		if s.Open() {
			t.Errorf("session %d still open", s.ID)
		}
	}
	if got := sessions[1].DisconnectedAt.Sub(now.Add(-50 * time.Minute)); got > time.Second || got < -time.Second {
		t.Errorf("earlier entry was overwritten: %v", sessions[1].DisconnectedAt)
	}
}

func TestCloseDangling(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_ = repo.RecordConnect(ctx, "cube_1", "AA:01", "", time.Now())
	_ = repo.RecordConnect(ctx, "cube_2", "AA:02", "", time.Now())
	_ = repo.RecordDisconnect(ctx, "cube_2", time.Now(), nil)

	n, err := repo.CloseDangling(ctx, time.Now(), "bridge restarted")
	if err != nil {
		t.Fatalf("CloseDangling() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CloseDangling() = %d, want 1", n)
	}
}

func TestPositionHistory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	records := []PositionRecord{
		{SessionID: "cube_1", Kind: "position_id", X: ptr(100), Y: ptr(200), Angle: ptr(90), CreatedAt: base},
		{SessionID: "cube_1", Kind: "position_id_missed", CreatedAt: base.Add(time.Second)},
		{SessionID: "cube_1", Kind: "standard_id", Value: ptr(3670016), Angle: ptr(0), CreatedAt: base.Add(2 * time.Second)},
		{SessionID: "cube_2", Kind: "position_id", X: ptr(1), Y: ptr(1), Angle: ptr(1), CreatedAt: base},
	}
	for _, rec := range records {
		if err := repo.RecordPosition(ctx, rec); err != nil {
			t.Fatalf("RecordPosition() error = %v", err)
		}
	}

	got, err := repo.PositionHistory(ctx, "cube_1", 2)
	if err != nil {
		t.Fatalf("PositionHistory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Kind != "standard_id" || got[0].Value == nil || *got[0].Value != 3670016 {
		t.Errorf("newest = %+v", got[0])
	}
	if got[1].Kind != "position_id_missed" || got[1].X != nil || got[1].Angle != nil {
		t.Errorf("missed reading carries coordinates: %+v", got[1])
	}

	all, _ := repo.PositionHistory(ctx, "cube_1", 0)
	oldest := all[len(all)-1]
	if oldest.X == nil || *oldest.X != 100 || *oldest.Y != 200 || *oldest.Angle != 90 {
		t.Errorf("oldest = %+v", oldest)
	}
}

func TestValidation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.RecordConnect(ctx, "", "AA", "", time.Now()); !errors.Is(err, ErrSessionIDRequired) {
		t.Errorf("RecordConnect() error = %v", err)
	}
	if err := repo.RecordPosition(ctx, PositionRecord{Kind: "position_id"}); !errors.Is(err, ErrSessionIDRequired) {
		t.Errorf("RecordPosition() error = %v", err)
	}
	if _, err := repo.PositionHistory(ctx, "", 1); !errors.Is(err, ErrSessionIDRequired) {
		t.Errorf("PositionHistory() error = %v", err)
	}
	if _, err := repo.Prune(ctx, 0); !errors.Is(err, ErrInvalidRetention) {
		t.Errorf("Prune(0) error = %v", err)
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	_ = repo.RecordPosition(ctx, PositionRecord{SessionID: "cube_1", Kind: "position_id_missed", CreatedAt: old})
	_ = repo.RecordPosition(ctx, PositionRecord{SessionID: "cube_1", Kind: "position_id_missed", CreatedAt: time.Now()})
	_ = repo.RecordConnect(ctx, "cube_1", "AA:01", "", old)
	_ = repo.RecordDisconnect(ctx, "cube_1", old.Add(time.Minute), nil)
	_ = repo.RecordConnect(ctx, "cube_2", "AA:02", "", old)

	n, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}

	sessions, _ := repo.ListSessions(ctx, 10)
	if len(sessions) != 1 || sessions[0].SessionID != "cube_2" {
		t.Errorf("open session was pruned: %+v", sessions)
	}
	readings, _ := repo.PositionHistory(ctx, "cube_1", 10)
	if len(readings) != 1 {
		t.Errorf("readings left = %d, want 1", len(readings))
	}
}

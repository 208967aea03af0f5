package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.Record(ctx, Run{Mode: ModeSolo, WPM: 60, Accuracy: 100, Errors: 5, Chars: 120, StartedAt: base, Duration: 24 * time.Second}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := s.Record(ctx, Run{Mode: ModeRace, RoomID: "lobby", WPM: 80, Accuracy: 97, Errors: 2, Chars: 200, StartedAt: base.Add(time.Hour), Duration: 30 * time.Second}); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 || runs[0].Mode != ModeRace || runs[0].RoomID != "lobby" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[1].Score != 45 || runs[1].Duration != 24*time.Second || !runs[1].StartedAt.Equal(base) {
		t.Fatalf("unexpected solo run %+v", runs[1])
	}
}

func TestBestPicksHighestScore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if best, err := s.Best(ctx, ModeSolo); err != nil || best != nil {
		t.Fatalf("empty best = %+v, %v", best, err)
	}
	s.Record(ctx, Run{Mode: ModeSolo, WPM: 120, Accuracy: 40, StartedAt: now})
	s.Record(ctx, Run{Mode: ModeSolo, WPM: 60, Accuracy: 100, StartedAt: now.Add(time.Second)})
	s.Record(ctx, Run{Mode: ModePractice, WPM: 200, Accuracy: 100, StartedAt: now})

	best, err := s.Best(ctx, ModeSolo)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if best == nil || best.WPM != 60 || best.Score != 60 {
		t.Fatalf("best = %+v", best)
	}
}

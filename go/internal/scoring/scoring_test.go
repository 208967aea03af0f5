package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/typerace/go/internal/models"
)

func TestScore(t *testing.T) {
	tests := []struct {
		wpm, accuracy, errors int
		want                  float64
	}{
		{60, 100, 0, 60.0},
		{60, 100, 5, 45.0},
		{100, 40, 0, 4.0},
		{50, 100, 25, 0},
		{0, 100, 0, 0},
		{80, 95, 2, 68.4},
		{120, 50, 20, 0},
		{90, 49, 1, 4.2},
		{73, 97, 3, 60.2},
	}
	for _, tt := range tests {
		if got := Score(tt.wpm, tt.accuracy, tt.errors); got != tt.want {
			t.Errorf("Score(%d, %d, %d) = %v, want %v", tt.wpm, tt.accuracy, tt.errors, got, tt.want)
		}
	}
}

func TestRankOrdersByScoreThenTime(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	slow := models.LeaderboardRecord{ID: uuid.New(), PlayerID: "slow", WPM: 30, Accuracy: 100, UpdatedAt: base}
	fastLate := models.LeaderboardRecord{ID: uuid.New(), PlayerID: "fast-late", WPM: 60, Accuracy: 100, UpdatedAt: base.Add(time.Hour)}
	fastEarly := models.LeaderboardRecord{ID: uuid.New(), PlayerID: "fast-early", WPM: 60, Accuracy: 100, UpdatedAt: base}
	sloppy := models.LeaderboardRecord{ID: uuid.New(), PlayerID: "sloppy", WPM: 200, Accuracy: 30, Errors: 40, UpdatedAt: base}

	ranked := Rank([]models.LeaderboardRecord{slow, fastLate, sloppy, fastEarly})

	wantOrder := []string{"fast-early", "fast-late", "slow", "sloppy"}
	if len(ranked) != len(wantOrder) {
		t.Fatalf("got %d records", len(ranked))
	}
	for i, want := range wantOrder {
		if ranked[i].PlayerID != want {
			t.Fatalf("position %d = %s, want %s", i, ranked[i].PlayerID, want)
		}
		if ranked[i].Rank != i+1 {
			t.Fatalf("rank at %d = %d", i, ranked[i].Rank)
		}
	}
	if ranked[0].Score != 60 {
		t.Fatalf("top score = %v", ranked[0].Score)
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Fatalf("expected empty ranking, got %d", len(got))
	}
}

package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/mcdev12/typerace/go/internal/client"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/race"
)

func TestTranslateKey(t *testing.T) {
	keys := translateKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ab")})
	if len(keys) != 2 || keys[0] != race.CharKey('a') || keys[1] != race.CharKey('b') {
		t.Fatalf("runes = %+v", keys)
	}
	if keys := translateKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("pasted"), Paste: true}); len(keys) != 0 {
		t.Fatalf("paste produced keys %+v", keys)
	}
	if keys := translateKey(tea.KeyMsg{Type: tea.KeySpace}); len(keys) != 1 || keys[0] != race.CharKey(' ') {
		t.Fatalf("space = %+v", keys)
	}
	if keys := translateKey(tea.KeyMsg{Type: tea.KeyBackspace}); len(keys) != 1 || keys[0] != race.BackspaceKey(false) {
		t.Fatalf("backspace = %+v", keys)
	}
	if keys := translateKey(tea.KeyMsg{Type: tea.KeyCtrlW}); len(keys) != 1 || keys[0] != race.BackspaceKey(true) {
		t.Fatalf("ctrl+w = %+v", keys)
	}
}

func TestSplitKeepSpaces(t *testing.T) {
	parts := splitKeepSpaces([]rune("ab  c"))
	var got []string
	for _, p := range parts {
		got = append(got, string(p))
	}
	if strings.Join(got, "|") != "ab| | |c" {
		t.Fatalf("parts = %q", got)
	}
}

func TestFitNameKeepsWidth(t *testing.T) {
	for _, name := range []string{"ana", "a-very-long-player-name", "日本語の名前です"} {
		if w := runewidth.StringWidth(fitName(name)); w != nameWidth {
			t.Fatalf("fitName(%q) width = %d", name, w)
		}
	}
}

func TestLeaderboardRowsMarkRanks(t *testing.T) {
	records := []models.RankedRecord{
		{LeaderboardRecord: models.LeaderboardRecord{PlayerID: "p1", WPM: 90, Accuracy: 98, UpdatedAt: time.Unix(0, 0)}, Score: 88.2, Rank: 1},
		{LeaderboardRecord: models.LeaderboardRecord{PlayerID: "p2", UserID: "ben", WPM: 40, Accuracy: 90, UpdatedAt: time.Unix(0, 0)}, Score: 36, Rank: 4},
	}
	rows := leaderboardRows(records, "p2")
	if rows[0][0] != "🥇" || rows[1][0] != "4" {
		t.Fatalf("rank labels = %q, %q", rows[0][0], rows[1][0])
	}
	if !strings.HasPrefix(rows[1][1], "ben") || !strings.HasSuffix(rows[1][1], "◀") {
		t.Fatalf("own row not marked: %q", rows[1][1])
	}
	if rows[0][5] != "88.2" {
		t.Fatalf("score = %q", rows[0][5])
	}
}

type fakeDriver struct {
	views   chan client.View
	pressed []race.Key
	entered string
	ready   int
	resets  int
}

func (f *fakeDriver) Views() <-chan client.View { return f.views }
func (f *fakeDriver) Press(k race.Key) { f.pressed = append(f.pressed, k) }
func (f *fakeDriver) Enter(room, fallback string) { f.entered = room }
func (f *fakeDriver) Ready() { f.ready++ }
func (f *fakeDriver) Reset() { f.resets++ }

func TestRaceModelRoutesInput(t *testing.T) {
	d := &fakeDriver{views: make(chan client.View, 1)}
	m := NewRaceModel(d, "p1", "lobby", "ab cd", nil)
	m.Init()
	if d.entered != "lobby" {
		t.Fatalf("entered %q", d.entered)
	}

	// Enter before the room is known does nothing.
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if d.ready != 0 {
		t.Fatalf("ready sent without a room")
	}

	room := &models.Room{ID: "lobby", Status: models.RoomStatusWaiting, Players: []models.Player{{ID: "p1", Name: "ana", IsHost: true}}}
	m.Update(raceViewMsg(client.View{Session: client.StateInRoom, Room: room}))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if d.ready != 1 {
		t.Fatalf("ready = %d", d.ready)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if len(d.pressed) != 1 || d.resets != 1 {
		t.Fatalf("pressed=%v resets=%d", d.pressed, d.resets)
	}
	if !strings.Contains(m.View(), "ana") {
		t.Fatalf("player missing from view")
	}
}

func TestDescribeError(t *testing.T) {
	if got := describeError(&client.RoomFullError{RoomID: "lobby"}); got != "Room lobby is full" {
		t.Fatalf("got %q", got)
	}
	if got := describeError(errors.New("boom")); got != "boom" {
		t.Fatalf("got %q", got)
	}
}

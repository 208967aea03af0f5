package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/race"
)

type fixedPassage string

func (f fixedPassage) Pick(context.Context) (string, error) { return string(f), nil }

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return NewRegistry(DefaultConfig(), fixedPassage("the quick brown fox"), clock), clock
}

func createTwoPlayerRoom(t *testing.T, r *Registry) {
	t.Helper()
	if _, err := r.Create(context.Background(), CreateParams{RoomName: "lobby", PlayerName: "ana", PlayerID: "p1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := r.Join("lobby", "p2", "ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
}

func TestCreateMakesCreatorHost(t *testing.T) {
	r, _ := newTestRegistry(t)
	room, err := r.Create(context.Background(), CreateParams{RoomName: " lobby ", PlayerName: "ana", PlayerID: "p1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.ID != "lobby" || room.Text != "the quick brown fox" || room.Status != models.RoomStatusWaiting {
		t.Fatalf("unexpected room %+v", room)
	}
	if len(room.Players) != 1 || !room.Players[0].IsHost {
		t.Fatalf("creator is not host: %+v", room.Players)
	}

	custom, err := r.Create(context.Background(), CreateParams{RoomName: "custom", PlayerName: "ana", PlayerID: "p1", Text: "own text"})
	if err != nil || custom.Text != "own text" {
		t.Fatalf("custom text not kept: %v %+v", err, custom)
	}

	if _, err := r.Create(context.Background(), CreateParams{RoomName: "lobby", PlayerName: "x", PlayerID: "p9"}); !errors.Is(err, ErrRoomExists) {
		t.Fatalf("err = %v, want ErrRoomExists", err)
	}
}

func TestCreateCollapsesPassageWhitespace(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(DefaultConfig(), fixedPassage("  first line\nsecond\tline \n"), clock)

	custom, err := r.Create(context.Background(), CreateParams{RoomName: "custom", PlayerName: "ana", PlayerID: "p1", Text: "go\tfast\nnow"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if custom.Text != "go fast now" {
		t.Fatalf("text = %q, want %q", custom.Text, "go fast now")
	}
	picked, err := r.Create(context.Background(), CreateParams{RoomName: "picked", PlayerName: "ana", PlayerID: "p1", Text: " \n\t"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if picked.Text != "first line second line" {
		t.Fatalf("picked text = %q", picked.Text)
	}

	c := race.NewController(custom.Text, clock)
	c.Unlock()
	for _, ch := range "go\tfast\nnow" {
		if ch == '\t' || ch == '\n' {
			ch = ' '
		}
		c.HandleKey(race.CharKey(ch))
	}
	if c.State() != race.StateCompleted {
		t.Fatalf("race stuck at %d/%d in state %s", c.Position(), len([]rune(custom.Text)), c.State())
	}
}

func TestJoinCapacityAndRejoin(t *testing.T) {
	r, _ := newTestRegistry(t)
	createTwoPlayerRoom(t, r)

	if _, _, err := r.Join("lobby", "p3", "cy"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("third player err = %v, want ErrRoomFull", err)
	}
	room, rejoined, err := r.Join("lobby", "p2", "benji")
	if err != nil || !rejoined {
		t.Fatalf("rejoin: rejoined=%v err=%v", rejoined, err)
	}
	if len(room.Players) != 2 || room.Player("p2").Name != "benji" || room.Player("p2").IsHost {
		t.Fatalf("rejoin changed membership: %+v", room.Players)
	}
	if _, _, err := r.Join("nowhere", "p4", "dee"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestReadyQuorumStartsRace(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Create(context.Background(), CreateParams{RoomName: "lobby", PlayerName: "ana", PlayerID: "p1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	room, started, err := r.Ready("lobby", "p1")
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if room.Status != models.RoomStatusWaiting || started {
		t.Fatalf("single player started the race")
	}
	room, _, _ = r.Ready("lobby", "p1")
	if len(room.Ready) != 1 {
		t.Fatalf("ready is not idempotent: %v", room.Ready)
	}

	if _, _, err := r.Join("lobby", "p2", "ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	room, _ = r.Get("lobby")
	if room.Status != models.RoomStatusWaiting {
		t.Fatalf("status = %s before second ready", room.Status)
	}
	room, started, err = r.Ready("lobby", "p2")
	if err != nil {
		t.Fatalf("ready p2: %v", err)
	}
	if room.Status != models.RoomStatusRunning || !started {
		t.Fatalf("status = %s started = %v, want running and started", room.Status, started)
	}
	if _, started, _ = r.Ready("lobby", "p2"); started {
		t.Fatalf("repeated ready reported a second start")
	}

	if _, _, err := r.Ready("lobby", "stranger"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("err = %v, want ErrNotMember", err)
	}
}

func TestResetReturnsToWaiting(t *testing.T) {
	r, _ := newTestRegistry(t)
	createTwoPlayerRoom(t, r)
	r.Ready("lobby", "p1")
	r.Ready("lobby", "p2")

	room, err := r.Reset("lobby", "p2")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if room.Status != models.RoomStatusWaiting || len(room.Ready) != 0 {
		t.Fatalf("reset left %s with ready %v", room.Status, room.Ready)
	}
}

func TestCompleteFinishesWhenEveryoneDone(t *testing.T) {
	r, _ := newTestRegistry(t)
	createTwoPlayerRoom(t, r)

	if _, err := r.Complete("lobby", "p1"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("complete before start err = %v", err)
	}
	r.Ready("lobby", "p1")
	r.Ready("lobby", "p2")

	room, err := r.Complete("lobby", "p1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if room.Status != models.RoomStatusRunning {
		t.Fatalf("finished after one player")
	}
	if room, _, _ = r.Ready("lobby", "p1"); room.Status != models.RoomStatusRunning {
		t.Fatalf("ready during race changed status")
	}

	room, err = r.Complete("lobby", "p2")
	if err != nil {
		t.Fatalf("complete p2: %v", err)
	}
	if room.Status != models.RoomStatusFinished {
		t.Fatalf("status = %s, want finished", room.Status)
	}
	if _, _, err := r.Ready("lobby", "p1"); !errors.Is(err, ErrRaceFinished) {
		t.Fatalf("ready after finish err = %v", err)
	}

	room, _ = r.Reset("lobby", "p1")
	if room.Status != models.RoomStatusWaiting || len(room.Finished) != 0 {
		t.Fatalf("reset after finish: %+v", room)
	}
}

func TestLeaveDowngradesAndPromotesHost(t *testing.T) {
	r, _ := newTestRegistry(t)
	createTwoPlayerRoom(t, r)
	r.Ready("lobby", "p1")
	r.Ready("lobby", "p2")

	room, err := r.Leave("lobby", "p1")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if room.Status != models.RoomStatusWaiting {
		t.Fatalf("room still %s with one player", room.Status)
	}
	if len(room.Ready) != 0 {
		t.Fatalf("readiness kept after downgrade: %v", room.Ready)
	}
	if len(room.Players) != 1 || !room.Players[0].IsHost || room.Players[0].ID != "p2" {
		t.Fatalf("host not promoted: %+v", room.Players)
	}

	room, err = r.Leave("lobby", "p2")
	if err != nil || room != nil {
		t.Fatalf("last leave: room=%+v err=%v", room, err)
	}
	if _, err := r.Get("lobby"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("empty room not deleted: %v", err)
	}
}

func TestLeaveWhileWaitingKeepsOtherReady(t *testing.T) {
	r, _ := newTestRegistry(t)
	createTwoPlayerRoom(t, r)
	r.Ready("lobby", "p2")

	room, err := r.Leave("lobby", "p1")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !room.IsReady("p2") || room.IsReady("p1") {
		t.Fatalf("ready set = %v", room.Ready)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	r, _ := newTestRegistry(t)
	createTwoPlayerRoom(t, r)
	room, _ := r.Get("lobby")
	room.Players[0].Name = "mutated"
	room.Ready = append(room.Ready, "p1")

	fresh, _ := r.Get("lobby")
	if fresh.Players[0].Name != "ana" || len(fresh.Ready) != 0 {
		t.Fatalf("registry state leaked through snapshot: %+v", fresh)
	}
}

func TestSweepEvictsIdleRooms(t *testing.T) {
	r, clock := newTestRegistry(t)
	createTwoPlayerRoom(t, r)
	if _, err := r.Create(context.Background(), CreateParams{RoomName: "busy", PlayerName: "cy", PlayerID: "p3"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(20 * time.Minute)
	r.Touch("busy")
	clock.Advance(15 * time.Minute)

	evicted := r.Sweep()
	if len(evicted) != 1 || evicted[0] != "lobby" {
		t.Fatalf("evicted = %v, want [lobby]", evicted)
	}
	if r.Len() != 1 {
		t.Fatalf("rooms left = %d", r.Len())
	}
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(Config{IdleTTL: time.Minute, SweepInterval: time.Second}, fixedPassage("x"), clock)
	if _, err := r.Create(context.Background(), CreateParams{RoomName: "lobby", PlayerName: "ana", PlayerID: "p1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunSweeper(ctx)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("sweeper never armed its ticker: %v", err)
	}
	clock.Advance(2 * time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.Len() != 0 {
		t.Fatalf("idle room survived the sweeper")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}

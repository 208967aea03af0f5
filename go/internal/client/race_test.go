package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/protocol"
	"github.com/mcdev12/typerace/go/internal/race"
)

type raceHarness struct {
	race    *Race
	tr      *fakeTransport
	clock   *clockwork.FakeClock
	results []Result
}

func newRaceHarness(t *testing.T) *raceHarness {
	t.Helper()
	h := &raceHarness{tr: newFakeTransport(), clock: clockwork.NewFakeClock()}
	h.race = NewRace(h.tr, RaceConfig{
		PlayerID:      "p1",
		PlayerName:    "ana",
		CountdownFrom: 3,
		CountdownStep: time.Second,
	}, h.clock, func(res Result) { h.results = append(h.results, res) })
	return h
}

func (h *raceHarness) enterRunningRoom(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := h.race.session.RequestEnter(ctx, "lobby", ""); err != nil {
		t.Fatalf("enter: %v", err)
	}
	h.race.handleEnvelope(ctx, mustReply(t, h.tr.last(t), protocol.EventRoomData, testRoom(models.RoomStatusWaiting, "p1")))
	h.race.handleEnvelope(ctx, mustEvent(t, protocol.EventRoomData, testRoom(models.RoomStatusRunning, "p1", "p2")))
	if h.race.settle == nil {
		t.Fatalf("running room did not schedule the countdown")
	}
}

func (h *raceHarness) fireSettle(t *testing.T) {
	t.Helper()
	h.clock.Advance(DefaultSettleDelay)
	select {
	case <-h.race.settleChan():
		h.race.handleSettle()
	case <-time.After(2 * time.Second):
		t.Fatalf("settle timer never fired")
	}
}

func (h *raceHarness) tick(t *testing.T) race.Tick {
	t.Helper()
	h.clock.Advance(time.Second)
	select {
	case tick := <-h.race.countdown.Ticks():
		h.race.handleTick(tick)
		return tick
	case <-time.After(2 * time.Second):
		t.Fatalf("countdown did not tick")
	}
	return race.Tick{}
}

func (h *raceHarness) typeString(s string) {
	for _, r := range s {
		h.race.handleKey(context.Background(), race.CharKey(r))
	}
}

func TestRaceUnlocksAfterSettleAndCountdown(t *testing.T) {
	h := newRaceHarness(t)
	h.enterRunningRoom(t)

	h.typeString("a")
	if h.race.controller.State() != race.StateIdle || len(h.tr.sentOfType(protocol.EventUpdateStats)) != 0 {
		t.Fatalf("input accepted before the countdown")
	}

	h.fireSettle(t)
	for want := 2; want >= 0; want-- {
		if got := h.tick(t); got.Remaining != want {
			t.Fatalf("tick = %d, want %d", got.Remaining, want)
		}
		if want > 0 && h.race.controller.State() != race.StateIdle {
			t.Fatalf("unlocked at %d", want)
		}
	}
	if h.race.controller.State() != race.StateActive {
		t.Fatalf("controller still %s after zero", h.race.controller.State())
	}
}

func TestRacePublishesAndCompletesOnce(t *testing.T) {
	h := newRaceHarness(t)
	h.enterRunningRoom(t)
	h.fireSettle(t)
	for i := 0; i < 3; i++ {
		h.tick(t)
	}

	h.typeString("ab c")
	if n := len(h.tr.sentOfType(protocol.EventUpdateStats)); n != 4 {
		t.Fatalf("updateStats sent %d times, want 4", n)
	}
	h.clock.Advance(6 * time.Second)
	h.typeString("d")
	h.typeString("dddd")

	finals := h.tr.sentOfType(protocol.EventRaceCompleted)
	if len(finals) != 1 || len(h.results) != 1 {
		t.Fatalf("completion fired %d/%d times", len(finals), len(h.results))
	}
	final := decodeSent[protocol.StatsPayload](t, finals[0])
	if final.RoomID != "lobby" || final.Stats.Accuracy != 100 || final.Stats.WPM != 10 {
		t.Fatalf("final stats %+v", final)
	}
	if !h.race.View().Done || h.results[0].Duration != 6*time.Second {
		t.Fatalf("result %+v", h.results[0])
	}

	h.race.handleEnvelope(context.Background(), mustEvent(t, protocol.EventGameReset, protocol.GameResetPayload{RoomID: "lobby"}))
	v := h.race.View()
	if v.Typed != "" || v.State != race.StateIdle || v.Done {
		t.Fatalf("reset left %+v", v)
	}
}

func TestResetCancelsScheduledCountdown(t *testing.T) {
	h := newRaceHarness(t)
	h.enterRunningRoom(t)

	h.race.handleEnvelope(context.Background(), mustEvent(t, protocol.EventGameReset, protocol.GameResetPayload{RoomID: "lobby"}))
	if h.race.settle != nil {
		t.Fatalf("settle timer survived the reset")
	}
	h.clock.Advance(5 * time.Second)
	if h.race.countdown.Running() || h.race.countdown.Current() != 3 {
		t.Fatalf("countdown started after reset")
	}
}

func TestResetDuringCountdownKeepsInputLocked(t *testing.T) {
	h := newRaceHarness(t)
	h.enterRunningRoom(t)
	h.fireSettle(t)
	h.tick(t)

	h.race.handleEnvelope(context.Background(), mustEvent(t, protocol.EventGameReset, protocol.GameResetPayload{RoomID: "lobby"}))
	if h.race.countdown.Current() != 3 {
		t.Fatalf("countdown = %d after reset", h.race.countdown.Current())
	}
	h.clock.Advance(5 * time.Second)
	select {
	case tick := <-h.race.countdown.Ticks():
		h.race.handleTick(tick)
	case <-time.After(50 * time.Millisecond):
	}
	if h.race.controller.State() != race.StateIdle {
		t.Fatalf("controller unlocked by a cancelled countdown")
	}
}

func TestOpponentLeavingDoesNotStopLocalRun(t *testing.T) {
	h := newRaceHarness(t)
	h.enterRunningRoom(t)
	h.fireSettle(t)
	for i := 0; i < 3; i++ {
		h.tick(t)
	}
	h.typeString("ab")

	ctx := context.Background()
	h.race.handleEnvelope(ctx, mustEvent(t, protocol.EventPlayerDisconnected, protocol.PlayerDisconnectedPayload{PlayerID: "p2", RoomID: "lobby"}))
	if o, _ := h.race.stats.Opponent("p2"); !o.Stale {
		t.Fatalf("opponent not marked stale")
	}

	downgraded := testRoom(models.RoomStatusWaiting)
	downgraded.Players = downgraded.Players[:1]
	h.race.handleEnvelope(ctx, mustEvent(t, protocol.EventRoomData, downgraded))

	h.typeString(" cd")
	if len(h.results) != 1 || h.race.controller.State() != race.StateCompleted {
		t.Fatalf("local run did not complete after the opponent left")
	}
}

func TestOpponentStatsReachTheView(t *testing.T) {
	h := newRaceHarness(t)
	h.enterRunningRoom(t)
	h.race.handleEnvelope(context.Background(), mustEvent(t, protocol.EventPlayerStats, protocol.PlayerStatsPayload{
		RoomID: "lobby", PlayerID: "p2", PlayerName: "ben", Seq: 1, Stats: models.Stats{WPM: 33, Accuracy: 97},
	}))
	v := h.race.View()
	if len(v.Opponents) != 1 || v.Opponents[0].Stats.WPM != 33 {
		t.Fatalf("opponents = %+v", v.Opponents)
	}
}

func TestTransportLossMarksEverythingStale(t *testing.T) {
	h := newRaceHarness(t)
	h.enterRunningRoom(t)
	h.race.handleDisconnect()

	v := h.race.View()
	if v.Session != StateUnconfirmed || !errors.Is(v.Err, ErrDisconnected) || !v.Opponents[0].Stale {
		t.Fatalf("view after disconnect %+v", v)
	}
}

func TestRunLoopEntersRoom(t *testing.T) {
	h := newRaceHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.race.Run(ctx) }()

	h.race.Enter("lobby", "ab cd")
	lookup := waitForSent(t, h.tr, protocol.EventGetRoomData)
	h.tr.events <- mustReply(t, lookup, protocol.EventRoomData, nil)
	create := waitForSent(t, h.tr, protocol.EventCreateRoom)
	h.tr.events <- mustReply(t, create, protocol.EventRoomCreated, protocol.RoomCreatedPayload{RoomID: "lobby", PlayerID: "p1", Text: "ab cd"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-h.race.Views():
			if v.Session == StateInRoom {
				cancel()
				if err := <-done; !errors.Is(err, context.Canceled) {
					t.Fatalf("run returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatalf("session never entered the room")
		}
	}
}

func TestActionsAfterRunReturnsDoNotBlock(t *testing.T) {
	h := newRaceHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.race.Run(ctx) }()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}

	returned := make(chan struct{})
	go func() {
		for i := 0; i < 2*cap(h.race.actions); i++ {
			h.race.Ready()
			h.race.Reset()
		}
		h.race.Enter("lobby", "ab cd")
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("actions blocked after the run loop stopped")
	}
}

func waitForSent(t *testing.T, tr *fakeTransport, typ protocol.EventType) protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sent := tr.sentOfType(typ); len(sent) > 0 {
			return sent[len(sent)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s was never sent", typ)
	return protocol.Envelope{}
}

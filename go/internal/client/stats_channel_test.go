package client

import (
	"context"
	"testing"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/protocol"
)

func TestStatsChannelKeepsLatestRemoteSnapshot(t *testing.T) {
	c := NewStatsChannel(newFakeTransport(), "p1", "")

	if c.Handle(protocol.PlayerStatsPayload{PlayerID: "p1", Seq: 1, Stats: models.Stats{WPM: 99}}) {
		t.Fatalf("own snapshot was stored")
	}
	c.Handle(protocol.PlayerStatsPayload{PlayerID: "p2", PlayerName: "ben", Seq: 2, Stats: models.Stats{WPM: 40, Accuracy: 95}})
	if c.Handle(protocol.PlayerStatsPayload{PlayerID: "p2", Seq: 1, Stats: models.Stats{WPM: 10}}) {
		t.Fatalf("older snapshot overwrote a newer one")
	}
	c.Handle(protocol.PlayerStatsPayload{PlayerID: "p2", PlayerName: "ben", Seq: 3, Stats: models.Stats{WPM: 45, Accuracy: 96, Errors: 1}})

	o, ok := c.Opponent("p2")
	if !ok || o.Stats.WPM != 45 || o.Seq != 3 || o.PlayerName != "ben" {
		t.Fatalf("opponent = %+v", o)
	}
	if len(c.Opponents()) != 1 {
		t.Fatalf("opponents = %+v", c.Opponents())
	}
}

func TestStatsChannelAcceptsRestartedSession(t *testing.T) {
	c := NewStatsChannel(newFakeTransport(), "p1", "")
	c.Handle(protocol.PlayerStatsPayload{PlayerID: "p2", Session: "conn-a", Seq: 9, Stats: models.Stats{WPM: 70, Accuracy: 98}})
	if c.Handle(protocol.PlayerStatsPayload{PlayerID: "p2", Session: "conn-a", Seq: 2, Stats: models.Stats{WPM: 5}}) {
		t.Fatalf("stale snapshot from the same session accepted")
	}
	if !c.Handle(protocol.PlayerStatsPayload{PlayerID: "p2", Session: "conn-b", Seq: 1, Stats: models.Stats{WPM: 12, Accuracy: 100}}) {
		t.Fatalf("first snapshot after reconnect dropped")
	}
	if !c.Handle(protocol.PlayerStatsPayload{PlayerID: "p2", Session: "conn-b", Seq: 2, Stats: models.Stats{WPM: 30, Accuracy: 97}, Final: true}) {
		t.Fatalf("final snapshot after reconnect dropped")
	}
	o, _ := c.Opponent("p2")
	if o.Stats.WPM != 30 || !o.Final || o.Session != "conn-b" {
		t.Fatalf("opponent = %+v", o)
	}
}

func TestStatsChannelStaleAndReset(t *testing.T) {
	c := NewStatsChannel(newFakeTransport(), "p1", "")
	c.Track(testRoom(models.RoomStatusWaiting))
	if o, _ := c.Opponent("p2"); o.Stats != models.DefaultStats {
		t.Fatalf("tracked opponent starts at %+v", o.Stats)
	}
	c.Handle(protocol.PlayerStatsPayload{PlayerID: "p2", Seq: 4, Stats: models.Stats{WPM: 50, Accuracy: 90, Errors: 2}})

	c.MarkStale("p2")
	if o, _ := c.Opponent("p2"); !o.Stale {
		t.Fatalf("opponent not stale")
	}
	c.Reset()
	o, _ := c.Opponent("p2")
	if o.Stale || o.Stats != models.DefaultStats {
		t.Fatalf("reset left %+v", o)
	}

	c.Forget(&models.Room{ID: "lobby", Players: []models.Player{{ID: "p1"}}})
	if _, ok := c.Opponent("p2"); ok {
		t.Fatalf("departed opponent kept")
	}
}

func TestStatsChannelPublishesIncreasingSeq(t *testing.T) {
	tr := newFakeTransport()
	c := NewStatsChannel(tr, "p1", "u1")
	ctx := context.Background()
	c.Publish(ctx, "lobby", models.Stats{WPM: 10, Accuracy: 100})
	c.PublishFinal(ctx, "lobby", models.Stats{WPM: 12, Accuracy: 100})

	live := decodeSent[protocol.StatsPayload](t, tr.sentOfType(protocol.EventUpdateStats)[0])
	final := decodeSent[protocol.StatsPayload](t, tr.sentOfType(protocol.EventRaceCompleted)[0])
	if live.Seq != 1 || final.Seq != 2 || final.UserID != "u1" || final.Stats.WPM != 12 {
		t.Fatalf("live=%+v final=%+v", live, final)
	}
}

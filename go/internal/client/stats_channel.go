package client

import (
	"context"
	"sort"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/protocol"
)

// Opponent is the latest view of a remote player.
type Opponent struct {
	PlayerID   string
	PlayerName string
	Stats      models.Stats
	Seq        uint64
	Session    string
	Final      bool
	// Stale is set when the player disconnected or the link to the server
	// is in doubt.
	Stale bool
}

// StatsChannel carries local snapshots out and keeps the latest remote
// snapshot per player. Like RoomSession it is owned by a single loop.
type StatsChannel struct {
	transport Transport
	playerID  string
	userID    string
	seq       uint64
	opponents map[string]*Opponent
}

// NewStatsChannel creates a channel for the local player.
func NewStatsChannel(transport Transport, playerID, userID string) *StatsChannel {
	return &StatsChannel{
		transport: transport,
		playerID:  playerID,
		userID:    userID,
		opponents: make(map[string]*Opponent),
	}
}

// Publish sends a live snapshot for roomID.
func (c *StatsChannel) Publish(ctx context.Context, roomID string, stats models.Stats) error {
	return c.send(ctx, protocol.EventUpdateStats, roomID, stats)
}

// PublishFinal sends the completed run for roomID.
func (c *StatsChannel) PublishFinal(ctx context.Context, roomID string, stats models.Stats) error {
	return c.send(ctx, protocol.EventRaceCompleted, roomID, stats)
}

func (c *StatsChannel) send(ctx context.Context, t protocol.EventType, roomID string, stats models.Stats) error {
	c.seq++
	env, err := protocol.NewEnvelope(t, protocol.StatsPayload{
		RoomID:   roomID,
		PlayerID: c.playerID,
		UserID:   c.userID,
		Stats:    stats,
		Seq:      c.seq,
	})
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, env)
}

// Handle stores a remote snapshot. Snapshots of the local player and ones
// older than what is already held for the same session are dropped. A new
// session restarts the sequence. It reports whether the view changed.
func (c *StatsChannel) Handle(p protocol.PlayerStatsPayload) bool {
	if p.PlayerID == c.playerID {
		return false
	}
	current, ok := c.opponents[p.PlayerID]
	if ok && p.Seq != 0 && p.Session == current.Session && p.Seq <= current.Seq {
		return false
	}
	c.opponents[p.PlayerID] = &Opponent{
		PlayerID:   p.PlayerID,
		PlayerName: p.PlayerName,
		Stats:      p.Stats,
		Seq:        p.Seq,
		Session:    p.Session,
		Final:      p.Final,
	}
	return true
}

// MarkStale flags playerID, or every opponent when playerID is empty.
func (c *StatsChannel) MarkStale(playerID string) {
	for id, o := range c.opponents {
		if playerID == "" || id == playerID {
			o.Stale = true
		}
	}
}

// Reset restores every opponent to the default stats for a new race.
func (c *StatsChannel) Reset() {
	for _, o := range c.opponents {
		o.Stats = models.DefaultStats
		o.Final = false
		o.Stale = false
	}
}

// Forget drops opponents that are no longer in room.
func (c *StatsChannel) Forget(room *models.Room) {
	for id := range c.opponents {
		if room == nil || !room.HasPlayer(id) {
			delete(c.opponents, id)
		}
	}
}

// Track makes sure every remote member of room has a view, starting from the
// default stats.
func (c *StatsChannel) Track(room *models.Room) {
	if room == nil {
		return
	}
	for _, p := range room.Players {
		if p.ID == c.playerID {
			continue
		}
		if o, ok := c.opponents[p.ID]; ok {
			o.PlayerName = p.Name
			continue
		}
		c.opponents[p.ID] = &Opponent{PlayerID: p.ID, PlayerName: p.Name, Stats: models.DefaultStats}
	}
}

// Opponents returns copies of every remote view ordered by player id.
func (c *StatsChannel) Opponents() []Opponent {
	out := make([]Opponent, 0, len(c.opponents))
	for _, o := range c.opponents {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Opponent returns a remote view by id.
func (c *StatsChannel) Opponent(playerID string) (Opponent, bool) {
	o, ok := c.opponents[playerID]
	if !ok {
		return Opponent{}, false
	}
	return *o, true
}

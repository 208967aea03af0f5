package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/activity"
	"github.com/mcdev12/typerace/go/internal/leaderboard"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/protocol"
	"github.com/mcdev12/typerace/go/internal/room"
	"github.com/mcdev12/typerace/go/internal/statsbus"
)

// ResultSubmitter persists finished runs.
type ResultSubmitter interface {
	Submit(ctx context.Context, req leaderboard.SubmitRequest) (*models.LeaderboardRecord, error)
}

// Dispatcher applies inbound events to the room registry and fans out the
// resulting events.
type Dispatcher struct {
	registry *room.Registry
	bus      statsbus.Bus
	results  ResultSubmitter
	activity activity.Log
	conns    *ConnectionManager
	timeout  time.Duration
}

func (d *Dispatcher) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.timeout)
}

// HandleMessage decodes one raw frame and routes it.
func (d *Dispatcher) HandleMessage(c *Connection, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("rejected malformed envelope")
		d.replyError(c, protocol.Envelope{}, "malformed message")
		return
	}
	payload, err := protocol.ParsePayload(env)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Str("event_type", string(env.Type)).Msg("rejected invalid payload")
		d.replyError(c, env, err.Error())
		return
	}

	switch p := payload.(type) {
	case protocol.CreateRoomPayload:
		d.createRoom(c, env, p)
	case protocol.JoinRoomPayload:
		d.joinRoom(c, env, p)
	case protocol.PlayerReadyPayload:
		if d.authorize(c, env, p.PlayerID) {
			d.playerReady(c, env, p)
		}
	case protocol.StatsPayload:
		if !d.authorize(c, env, p.PlayerID) {
			return
		}
		if env.Type == protocol.EventRaceCompleted {
			d.raceCompleted(c, env, p)
		} else {
			d.updateStats(c, env, p)
		}
	case protocol.ResetRoomPayload:
		if d.authorize(c, env, p.PlayerID) {
			d.resetRoom(c, env, p)
		}
	case protocol.GetRoomDataPayload:
		d.getRoomData(c, env, p)
	default:
		d.replyError(c, env, "unexpected event "+string(env.Type))
	}
}

// authorize rejects events sent on behalf of another player.
func (d *Dispatcher) authorize(c *Connection, env protocol.Envelope, playerID string) bool {
	if c.PlayerID != "" && c.PlayerID != playerID {
		log.Warn().
			Str("connection_id", c.ID).
			Str("player_id", c.PlayerID).
			Str("claimed_player_id", playerID).
			Msg("rejected event for another player")
		d.replyError(c, env, "player id does not match this connection")
		return false
	}
	return true
}

func (d *Dispatcher) createRoom(c *Connection, env protocol.Envelope, p protocol.CreateRoomPayload) {
	if !d.authorize(c, env, p.PlayerID) {
		return
	}
	ctx, cancel := d.ctx()
	defer cancel()
	r, err := d.registry.Create(ctx, room.CreateParams{
		RoomName:   p.RoomName,
		PlayerName: p.PlayerName,
		PlayerID:   p.PlayerID,
		Text:       p.Text,
	})
	if err != nil {
		d.replyRegistryError(c, env, p.RoomName, err)
		return
	}
	d.leaveCurrentRoom(c, r.ID)

	d.conns.BindRoom(c, r.ID, p.PlayerID)
	d.reply(c, env, protocol.EventRoomCreated, protocol.RoomCreatedPayload{
		RoomID:     r.ID,
		PlayerID:   p.PlayerID,
		PlayerName: r.Player(p.PlayerID).Name,
		Text:       r.Text,
	})
	d.broadcastRoom(r)
	d.activity.Record(ctx, activity.Event{Kind: activity.RoomCreated, RoomID: r.ID, PlayerID: p.PlayerID, Status: string(r.Status)})
}

func (d *Dispatcher) joinRoom(c *Connection, env protocol.Envelope, p protocol.JoinRoomPayload) {
	if !d.authorize(c, env, p.PlayerID) {
		return
	}
	r, rejoined, err := d.registry.Join(p.RoomName, p.PlayerID, p.PlayerName)
	if err != nil {
		d.replyRegistryError(c, env, p.RoomName, err)
		return
	}
	d.leaveCurrentRoom(c, r.ID)

	d.conns.BindRoom(c, r.ID, p.PlayerID)
	d.reply(c, env, protocol.EventRoomJoined, protocol.RoomJoinedPayload{RoomID: r.ID})
	if !rejoined {
		d.broadcast(r.ID, protocol.EventPlayerJoined, protocol.PlayerJoinedPayload{
			RoomID:     r.ID,
			PlayerID:   p.PlayerID,
			PlayerName: r.Player(p.PlayerID).Name,
			Players:    r.Players,
		})
	}
	d.broadcastRoom(r)

	ctx, cancel := d.ctx()
	defer cancel()
	d.activity.Record(ctx, activity.Event{Kind: activity.PlayerJoined, RoomID: r.ID, PlayerID: p.PlayerID, Status: string(r.Status)})
}

func (d *Dispatcher) playerReady(c *Connection, env protocol.Envelope, p protocol.PlayerReadyPayload) {
	r, started, err := d.registry.Ready(p.RoomID, p.PlayerID)
	if err != nil {
		d.replyRegistryError(c, env, p.RoomID, err)
		return
	}
	d.broadcastRoom(r)

	ctx, cancel := d.ctx()
	defer cancel()
	d.activity.Record(ctx, activity.Event{Kind: activity.PlayerReady, RoomID: r.ID, PlayerID: p.PlayerID, Status: string(r.Status)})
	if started {
		log.Info().Str("room_id", r.ID).Msg("race started")
		d.activity.Record(ctx, activity.Event{Kind: activity.RaceStarted, RoomID: r.ID, Status: string(r.Status)})
	}
}

func (d *Dispatcher) updateStats(c *Connection, env protocol.Envelope, p protocol.StatsPayload) {
	r, err := d.registry.Get(p.RoomID)
	if err != nil {
		d.replyRegistryError(c, env, p.RoomID, err)
		return
	}
	player := r.Player(p.PlayerID)
	if player == nil {
		d.replyRegistryError(c, env, p.RoomID, room.ErrNotMember)
		return
	}
	d.registry.Touch(r.ID)
	d.publish(c, r.ID, player.Name, p, false)
}

func (d *Dispatcher) raceCompleted(c *Connection, env protocol.Envelope, p protocol.StatsPayload) {
	r, err := d.registry.Complete(p.RoomID, p.PlayerID)
	switch {
	case errors.Is(err, room.ErrNotRunning):
		// The opponent may have left mid-race; the run still counts.
		r, err = d.registry.Get(p.RoomID)
		if err != nil {
			d.replyRegistryError(c, env, p.RoomID, err)
			return
		}
	case err != nil:
		d.replyRegistryError(c, env, p.RoomID, err)
		return
	}

	ctx, cancel := d.ctx()
	defer cancel()

	if rec, err := d.results.Submit(ctx, leaderboard.SubmitRequest{
		PlayerID: p.PlayerID,
		UserID:   p.UserID,
		Stats:    p.Stats,
	}); err != nil {
		log.Error().Err(err).Str("room_id", r.ID).Str("player_id", p.PlayerID).Msg("failed to persist race result")
	} else {
		log.Info().Str("room_id", r.ID).Str("record_id", rec.ID.String()).Msg("race result persisted")
	}

	name := ""
	if player := r.Player(p.PlayerID); player != nil {
		name = player.Name
	}
	d.publish(c, r.ID, name, p, true)
	d.broadcastRoom(r)
	d.activity.Record(ctx, activity.Event{
		Kind:     activity.RaceCompleted,
		RoomID:   r.ID,
		PlayerID: p.PlayerID,
		Status:   string(r.Status),
		WPM:      p.Stats.WPM,
		Accuracy: p.Stats.Accuracy,
	})
}

func (d *Dispatcher) resetRoom(c *Connection, env protocol.Envelope, p protocol.ResetRoomPayload) {
	r, err := d.registry.Reset(p.RoomID, p.PlayerID)
	if err != nil {
		d.replyRegistryError(c, env, p.RoomID, err)
		return
	}
	d.broadcast(r.ID, protocol.EventGameReset, protocol.GameResetPayload{RoomID: r.ID})
	d.broadcastRoom(r)

	ctx, cancel := d.ctx()
	defer cancel()
	d.activity.Record(ctx, activity.Event{Kind: activity.RoomReset, RoomID: r.ID, PlayerID: p.PlayerID, Status: string(r.Status)})
}

func (d *Dispatcher) getRoomData(c *Connection, env protocol.Envelope, p protocol.GetRoomDataPayload) {
	r, err := d.registry.Get(p.RoomID)
	if err != nil && !errors.Is(err, room.ErrRoomNotFound) {
		d.replyRegistryError(c, env, p.RoomID, err)
		return
	}
	d.reply(c, env, protocol.EventRoomData, r)
}

// HandleDisconnect removes the player from their room unless another socket
// still carries them.
func (d *Dispatcher) HandleDisconnect(c *Connection) {
	d.leaveCurrentRoom(c, "")
}

// leaveCurrentRoom leaves the room c is bound to unless it is keep.
func (d *Dispatcher) leaveCurrentRoom(c *Connection, keep string) {
	roomID := d.conns.RoomOf(c)
	if roomID == "" || roomID == keep || c.PlayerID == "" {
		return
	}
	if d.conns.HasOtherConnection(roomID, c.PlayerID, c) {
		return
	}

	r, err := d.registry.Leave(roomID, c.PlayerID)
	if err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrNotMember) {
			log.Error().Err(err).Str("room_id", roomID).Str("player_id", c.PlayerID).Msg("failed to leave room")
		}
		return
	}

	ctx, cancel := d.ctx()
	defer cancel()
	d.activity.Record(ctx, activity.Event{Kind: activity.PlayerDisconnected, RoomID: roomID, PlayerID: c.PlayerID})
	if r == nil {
		return
	}
	d.broadcast(roomID, protocol.EventPlayerDisconnected, protocol.PlayerDisconnectedPayload{PlayerID: c.PlayerID, RoomID: roomID})
	d.broadcastRoom(r)
}

func (d *Dispatcher) publish(c *Connection, roomID, playerName string, p protocol.StatsPayload, final bool) {
	ctx, cancel := d.ctx()
	defer cancel()
	err := d.bus.Publish(ctx, models.StatsSnapshot{
		RoomID:     roomID,
		PlayerID:   p.PlayerID,
		PlayerName: playerName,
		Stats:      p.Stats,
		Seq:        p.Seq,
		Session:    c.ID,
		Final:      final,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("player_id", p.PlayerID).Msg("failed to publish stats")
	}
}

func (d *Dispatcher) reply(c *Connection, request protocol.Envelope, t protocol.EventType, payload any) {
	env, err := protocol.Reply(request, t, payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to build reply")
		return
	}
	d.conns.SendTo(c, env)
}

func (d *Dispatcher) replyError(c *Connection, request protocol.Envelope, msg string) {
	d.reply(c, request, protocol.EventRoomError, protocol.RoomErrorPayload{Message: msg})
}

func (d *Dispatcher) replyRegistryError(c *Connection, request protocol.Envelope, roomID string, err error) {
	if errors.Is(err, room.ErrRoomFull) {
		d.reply(c, request, protocol.EventRoomFull, protocol.RoomFullPayload{Message: err.Error(), RoomID: strings.TrimSpace(roomID)})
		return
	}
	d.replyError(c, request, err.Error())
}

func (d *Dispatcher) broadcast(roomID string, t protocol.EventType, payload any) {
	env, err := protocol.NewEnvelope(t, payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to build broadcast")
		return
	}
	d.conns.BroadcastToRoom(roomID, env)
}

func (d *Dispatcher) broadcastRoom(r *models.Room) {
	env, err := protocol.RoomData(r)
	if err != nil {
		log.Error().Err(err).Str("room_id", r.ID).Msg("failed to build room data")
		return
	}
	d.conns.BroadcastToRoom(r.ID, env)
}

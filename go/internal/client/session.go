package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/protocol"
)

// DefaultRequestTimeout bounds how long a room request may stay unanswered.
const DefaultRequestTimeout = 5 * time.Second

// SessionState is where the session stands with the server.
type SessionState int

const (
	// StateOutside means the player is in no room.
	StateOutside SessionState = iota
	// StatePending means a create, join or lookup is in flight.
	StatePending
	StateInRoom
	// StateUnconfirmed means a request went unanswered or the transport
	// dropped; the local view may be stale.
	StateUnconfirmed
)

func (s SessionState) String() string {
	switch s {
	case StateOutside:
		return "outside"
	case StatePending:
		return "pending"
	case StateInRoom:
		return "in_room"
	case StateUnconfirmed:
		return "unconfirmed"
	default:
		return "unknown"
	}
}

// RoomFullError is a join rejected because the room already has two players.
type RoomFullError struct {
	RoomID  string
	Message string
}

func (e *RoomFullError) Error() string {
	return fmt.Sprintf("room %s is full: %s", e.RoomID, e.Message)
}

// RemoteError is a roomError sent by the server.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

type requestKind int

const (
	requestCreate requestKind = iota
	requestJoin
	requestLookup
	requestReady
	requestReset
)

func (k requestKind) String() string {
	return [...]string{"create", "join", "lookup", "ready", "reset"}[k]
}

type pendingRequest struct {
	kind     requestKind
	roomName string
	text     string
	timer    clockwork.Timer
}

// Effect tells the owner what an inbound event changed.
type Effect struct {
	RoomChanged bool
	// Started is set on the transition into Running with quorum.
	Started bool
	// GameReset is set when the room was reset by any member.
	GameReset bool
	// Left is the id of a player who disconnected.
	Left string
	// Stats is set for playerStats events.
	Stats *protocol.PlayerStatsPayload
	// Failed is set when an error was surfaced.
	Failed bool
}

// SessionConfig holds RoomSession settings.
type SessionConfig struct {
	PlayerID       string
	PlayerName     string
	RequestTimeout time.Duration
}

// RoomSession is the client view of a server-owned room. It is not safe for
// concurrent use: one loop calls the Request methods, Handle and
// HandleTimeout. Timeouts arrive on Timeouts().
type RoomSession struct {
	transport Transport
	clock     clockwork.Clock
	config    SessionConfig

	state   SessionState
	roomID  string
	room    *models.Room
	pending map[string]*pendingRequest
	err     error

	timeouts chan string
}

// NewRoomSession creates a session for one player.
func NewRoomSession(transport Transport, config SessionConfig, clock clockwork.Clock) *RoomSession {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	return &RoomSession{
		transport: transport,
		clock:     clock,
		config:    config,
		pending:   make(map[string]*pendingRequest),
		timeouts:  make(chan string, 16),
	}
}

// Timeouts delivers the ids of requests whose timer expired.
func (s *RoomSession) Timeouts() <-chan string { return s.timeouts }

// RequestCreate asks the server to open roomName. An empty text lets the
// server pick the passage.
func (s *RoomSession) RequestCreate(ctx context.Context, roomName, text string) error {
	if err := s.validate(roomName); err != nil {
		return err
	}
	return s.request(ctx, &pendingRequest{kind: requestCreate, roomName: roomName, text: text},
		protocol.EventCreateRoom, protocol.CreateRoomPayload{
			RoomName:   roomName,
			PlayerName: s.config.PlayerName,
			PlayerID:   s.config.PlayerID,
			Text:       text,
		})
}

// RequestJoin asks the server to add the player to roomName.
func (s *RoomSession) RequestJoin(ctx context.Context, roomName string) error {
	if err := s.validate(roomName); err != nil {
		return err
	}
	return s.request(ctx, &pendingRequest{kind: requestJoin, roomName: roomName},
		protocol.EventJoinRoom, protocol.JoinRoomPayload{
			RoomName:   roomName,
			PlayerName: s.config.PlayerName,
			PlayerID:   s.config.PlayerID,
		})
}

// RequestEnter looks roomName up and then joins it, or creates it with
// fallbackText when it does not exist.
func (s *RoomSession) RequestEnter(ctx context.Context, roomName, fallbackText string) error {
	if err := s.validate(roomName); err != nil {
		return err
	}
	roomName = strings.TrimSpace(roomName)
	return s.request(ctx, &pendingRequest{kind: requestLookup, roomName: roomName, text: fallbackText},
		protocol.EventGetRoomData, protocol.GetRoomDataPayload{RoomID: roomName})
}

// RequestReady signals readiness for the current room.
func (s *RoomSession) RequestReady(ctx context.Context) error {
	if s.roomID == "" {
		return fmt.Errorf("ready: not in a room")
	}
	return s.request(ctx, &pendingRequest{kind: requestReady, roomName: s.roomID},
		protocol.EventPlayerReady, protocol.PlayerReadyPayload{RoomID: s.roomID, PlayerID: s.config.PlayerID})
}

// RequestReset asks the server to return the room to waiting.
func (s *RoomSession) RequestReset(ctx context.Context) error {
	if s.roomID == "" {
		return fmt.Errorf("reset: not in a room")
	}
	return s.request(ctx, &pendingRequest{kind: requestReset, roomName: s.roomID},
		protocol.EventResetRoom, protocol.ResetRoomPayload{RoomID: s.roomID, PlayerID: s.config.PlayerID})
}

// validate rejects bad input locally; the error stays surfaced until the
// next user action clears it.
func (s *RoomSession) validate(roomName string) error {
	if err := protocol.ValidateRoomName(roomName); err != nil {
		s.fail(err)
		return err
	}
	if err := protocol.ValidatePlayerName(s.config.PlayerName); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

func (s *RoomSession) request(ctx context.Context, req *pendingRequest, t protocol.EventType, payload any) error {
	env, err := protocol.NewEnvelope(t, payload)
	if err != nil {
		s.fail(fmt.Errorf("%s request: %w", req.kind, err))
		return err
	}
	if err := s.transport.Send(ctx, env); err != nil {
		s.fail(fmt.Errorf("%s request: %w", req.kind, err))
		return err
	}

	id := env.ID
	req.timer = s.clock.AfterFunc(s.config.RequestTimeout, func() {
		select {
		case s.timeouts <- id:
		default:
		}
	})
	s.pending[id] = req
	if req.kind == requestCreate || req.kind == requestJoin || req.kind == requestLookup {
		s.state = StatePending
	}
	log.Debug().Str("request_id", id).Str("kind", req.kind.String()).Str("room", req.roomName).Msg("room request sent")
	return nil
}

// HandleTimeout expires the request id. It reports whether the request was
// still unanswered.
func (s *RoomSession) HandleTimeout(id string) bool {
	req, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	log.Warn().Str("request_id", id).Str("kind", req.kind.String()).Msg("room request timed out")
	s.state = StateUnconfirmed
	s.fail(ErrRequestTimeout)
	return true
}

// MarkDisconnected records that the transport is gone.
func (s *RoomSession) MarkDisconnected() {
	s.clearPending()
	s.state = StateUnconfirmed
	s.fail(ErrDisconnected)
}

// Handle applies one inbound envelope. Room broadcasts are latest-wins truth.
func (s *RoomSession) Handle(ctx context.Context, env protocol.Envelope) Effect {
	payload, err := protocol.ParsePayload(env)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(env.Type)).Msg("ignored invalid event")
		return Effect{}
	}
	req := s.pending[env.ReplyTo]

	switch p := payload.(type) {
	case protocol.RoomCreatedPayload:
		s.settle(env.ReplyTo)
		s.enter(p.RoomID)
		return Effect{}

	case protocol.RoomJoinedPayload:
		s.settle(env.ReplyTo)
		s.enter(p.RoomID)
		return Effect{}

	case protocol.RoomFullPayload:
		s.settle(env.ReplyTo)
		if p.RoomID == s.roomID && s.state == StateInRoom {
			return Effect{}
		}
		if s.state == StatePending {
			s.state = s.restingState()
		}
		s.fail(&RoomFullError{RoomID: p.RoomID, Message: p.Message})
		return Effect{Failed: true}

	case protocol.RoomErrorPayload:
		s.settle(env.ReplyTo)
		if s.state == StatePending {
			s.state = s.restingState()
		}
		s.fail(&RemoteError{Message: p.Message})
		return Effect{Failed: true}

	case protocol.RoomDataPayload:
		if req != nil && req.kind == requestLookup {
			s.settle(env.ReplyTo)
			return s.afterLookup(ctx, req, p.Room)
		}
		return s.applyRoom(p.Room)

	case protocol.PlayerJoinedPayload:
		if p.RoomID != s.roomID || s.room == nil {
			return Effect{}
		}
		s.room.Players = p.Players
		return Effect{RoomChanged: true}

	case protocol.PlayerDisconnectedPayload:
		if p.RoomID != "" && p.RoomID != s.roomID {
			return Effect{}
		}
		return Effect{Left: p.PlayerID}

	case protocol.GameResetPayload:
		if p.RoomID != "" && p.RoomID != s.roomID {
			return Effect{}
		}
		s.settleKind(requestReset)
		if s.room != nil {
			s.room.Status = models.RoomStatusWaiting
			s.room.Ready = []string{}
			s.room.Finished = nil
		}
		return Effect{GameReset: true, RoomChanged: true}

	case protocol.PlayerStatsPayload:
		if p.RoomID != "" && p.RoomID != s.roomID {
			return Effect{}
		}
		return Effect{Stats: &p}
	}
	return Effect{}
}

func (s *RoomSession) afterLookup(ctx context.Context, req *pendingRequest, room *models.Room) Effect {
	switch {
	case room == nil:
		log.Info().Str("room", req.roomName).Msg("room not found, creating it")
		// A failed request is already recorded through fail.
		if err := s.RequestCreate(ctx, req.roomName, req.text); err != nil {
			log.Debug().Err(err).Str("room", req.roomName).Msg("create after lookup failed")
		}
		return Effect{}
	case !room.HasPlayer(s.config.PlayerID):
		if err := s.RequestJoin(ctx, room.ID); err != nil {
			log.Debug().Err(err).Str("room", room.ID).Msg("join after lookup failed")
		}
		return Effect{}
	default:
		s.enter(room.ID)
		return s.applyRoom(room)
	}
}

func (s *RoomSession) applyRoom(room *models.Room) Effect {
	if room == nil || room.ID != s.roomID {
		return Effect{}
	}
	wasRunning := s.room != nil && s.room.Status == models.RoomStatusRunning
	s.room = room
	if s.state == StateUnconfirmed {
		s.state = StateInRoom
	}

	if room.IsReady(s.config.PlayerID) || room.Status != models.RoomStatusWaiting {
		s.settleKind(requestReady)
	}
	return Effect{
		RoomChanged: true,
		Started:     !wasRunning && room.Status == models.RoomStatusRunning && room.HasQuorum(),
	}
}

func (s *RoomSession) enter(roomID string) {
	if s.roomID != roomID {
		s.room = nil
	}
	s.roomID = roomID
	s.state = StateInRoom
}

func (s *RoomSession) restingState() SessionState {
	if s.roomID != "" {
		return StateInRoom
	}
	return StateOutside
}

func (s *RoomSession) settle(id string) {
	if req, ok := s.pending[id]; ok {
		req.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *RoomSession) settleKind(kind requestKind) {
	for id, req := range s.pending {
		if req.kind == kind {
			s.settle(id)
		}
	}
}

func (s *RoomSession) clearPending() {
	for id := range s.pending {
		s.settle(id)
	}
}

func (s *RoomSession) fail(err error) {
	s.err = err
}

// TakeError returns the surfaced error once and clears it.
func (s *RoomSession) TakeError() error {
	err := s.err
	s.err = nil
	return err
}

// ClearError drops a surfaced error on the next user action.
func (s *RoomSession) ClearError() { s.err = nil }

// Err returns the surfaced error without clearing it.
func (s *RoomSession) Err() error { return s.err }

// State returns the session state.
func (s *RoomSession) State() SessionState { return s.state }

// RoomID returns the current room id, empty outside a room.
func (s *RoomSession) RoomID() string { return s.roomID }

// Room returns the latest room snapshot, nil before the first one.
func (s *RoomSession) Room() *models.Room { return s.room.Clone() }

// PlayerID returns the local player id.
func (s *RoomSession) PlayerID() string { return s.config.PlayerID }

// IsHost reports whether the local player hosts the current room.
func (s *RoomSession) IsHost() bool {
	if s.room == nil {
		return false
	}
	p := s.room.Player(s.config.PlayerID)
	return p != nil && p.IsHost
}

// Pending reports whether any request is unanswered.
func (s *RoomSession) Pending() bool { return len(s.pending) > 0 }

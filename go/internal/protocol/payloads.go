package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/typerace/go/internal/models"
)

// CreateRoomPayload asks the server to open a room named RoomName. Text is
// optional; the server picks a passage when empty.
type CreateRoomPayload struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId"`
	Text       string `json:"text,omitempty"`
}

type JoinRoomPayload struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId"`
}

type PlayerReadyPayload struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
}

// StatsPayload carries live stats (updateStats) or final stats (raceCompleted).
type StatsPayload struct {
	RoomID   string       `json:"roomId"`
	PlayerID string       `json:"playerId"`
	UserID   string       `json:"userId,omitempty"`
	Stats    models.Stats `json:"stats"`
	Seq      uint64       `json:"seq,omitempty"`
}

type ResetRoomPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type GetRoomDataPayload struct {
	RoomID string `json:"roomId"`
}

type RoomCreatedPayload struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
}

type RoomJoinedPayload struct {
	RoomID string `json:"roomId"`
}

type RoomFullPayload struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

type PlayerJoinedPayload struct {
	RoomID     string          `json:"roomId"`
	PlayerID   string          `json:"playerId"`
	PlayerName string          `json:"playerName"`
	Players    []models.Player `json:"players"`
}

type PlayerDisconnectedPayload struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId,omitempty"`
}

// RoomDataPayload is a room snapshot; Room is nil when the room does not exist.
type RoomDataPayload struct {
	Room *models.Room
}

type PlayerStatsPayload struct {
	RoomID     string       `json:"roomId,omitempty"`
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName"`
	Stats      models.Stats `json:"stats"`
	Seq        uint64       `json:"seq,omitempty"`
	Session    string       `json:"session,omitempty"`
	Final      bool         `json:"final,omitempty"`
}

type GameResetPayload struct {
	RoomID string `json:"roomId,omitempty"`
}

type RoomErrorPayload struct {
	Message string `json:"message"`
}

// PlayerStatsFromSnapshot builds the outbound payload for a snapshot.
func PlayerStatsFromSnapshot(s models.StatsSnapshot) PlayerStatsPayload {
	return PlayerStatsPayload{
		RoomID:     s.RoomID,
		PlayerID:   s.PlayerID,
		PlayerName: s.PlayerName,
		Stats:      s.Stats,
		Seq:        s.Seq,
		Session:    s.Session,
		Final:      s.Final,
	}
}

// RoomData builds a roomData envelope; a nil room encodes as null.
func RoomData(room *models.Room) (Envelope, error) {
	return NewEnvelope(EventRoomData, room)
}

func parseRoomData(env Envelope) (any, error) {
	if env.IsNull() {
		return RoomDataPayload{}, nil
	}
	var room models.Room
	if err := json.Unmarshal(env.Data, &room); err != nil {
		return nil, fmt.Errorf("decode roomData payload: %w", err)
	}
	if room.ID == "" {
		return RoomDataPayload{}, nil
	}
	return RoomDataPayload{Room: &room}, nil
}

func parseGameReset(env Envelope) (any, error) {
	var payload GameResetPayload
	if env.IsNull() {
		return payload, nil
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode gameReset payload: %w", err)
	}
	return payload, nil
}

// Package protocol defines the named events exchanged between race clients
// and the gateway, with one tagged payload schema per event.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names an event on the wire.
type EventType string

// Client to server.
const (
	EventCreateRoom    EventType = "createRoom"
	EventJoinRoom      EventType = "joinRoom"
	EventPlayerReady   EventType = "playerReady"
	EventUpdateStats   EventType = "updateStats"
	EventRaceCompleted EventType = "raceCompleted"
	EventResetRoom     EventType = "resetRoom"
	EventPlayerReset   EventType = "playerReset"
	EventGetRoomData   EventType = "getRoomData"
)

// Server to client.
const (
	EventRoomCreated        EventType = "roomCreated"
	EventRoomJoined         EventType = "roomJoined"
	EventRoomFull           EventType = "roomFull"
	EventPlayerJoined       EventType = "playerJoined"
	EventPlayerDisconnected EventType = "playerDisconnected"
	EventRoomData           EventType = "roomData"
	EventPlayerStats        EventType = "playerStats"
	EventGameReset          EventType = "gameReset"
	EventRoomError          EventType = "roomError"
)

// ErrUnknownEvent is returned for event types outside the protocol.
var ErrUnknownEvent = errors.New("unknown event type")

// Envelope wraps every message on the connection.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	ReplyTo   string          `json:"replyTo,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// IsNull reports whether the payload is absent or JSON null.
func (e Envelope) IsNull() bool {
	return len(e.Data) == 0 || string(e.Data) == "null"
}

// NewEnvelope marshals payload into a new envelope with a fresh id.
func NewEnvelope(t EventType, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Reply builds an envelope answering request.
func Reply(request Envelope, t EventType, payload any) (Envelope, error) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.ReplyTo = request.ID
	return env, nil
}

// Decode parses raw bytes into an envelope and checks the event type is known.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if _, ok := payloadFactories[env.Type]; !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	return env, nil
}

// Unmarshal decodes the payload of env into T and validates it when T has rules.
func Unmarshal[T any](env Envelope) (T, error) {
	var payload T
	if env.IsNull() {
		return payload, &ValidationError{Field: "data", Message: "payload is required"}
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	if v, ok := any(&payload).(validator); ok {
		if err := v.Validate(); err != nil {
			return payload, err
		}
	}
	return payload, nil
}

// ParsePayload decodes env into the payload struct registered for its type.
func ParsePayload(env Envelope) (any, error) {
	factory, ok := payloadFactories[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	return factory(env)
}

var payloadFactories = map[EventType]func(Envelope) (any, error){
	EventCreateRoom:         func(e Envelope) (any, error) { return Unmarshal[CreateRoomPayload](e) },
	EventJoinRoom:           func(e Envelope) (any, error) { return Unmarshal[JoinRoomPayload](e) },
	EventPlayerReady:        func(e Envelope) (any, error) { return Unmarshal[PlayerReadyPayload](e) },
	EventUpdateStats:        func(e Envelope) (any, error) { return Unmarshal[StatsPayload](e) },
	EventRaceCompleted:      func(e Envelope) (any, error) { return Unmarshal[StatsPayload](e) },
	EventResetRoom:          func(e Envelope) (any, error) { return Unmarshal[ResetRoomPayload](e) },
	EventPlayerReset:        func(e Envelope) (any, error) { return Unmarshal[ResetRoomPayload](e) },
	EventGetRoomData:        func(e Envelope) (any, error) { return Unmarshal[GetRoomDataPayload](e) },
	EventRoomCreated:        func(e Envelope) (any, error) { return Unmarshal[RoomCreatedPayload](e) },
	EventRoomJoined:         func(e Envelope) (any, error) { return Unmarshal[RoomJoinedPayload](e) },
	EventRoomFull:           func(e Envelope) (any, error) { return Unmarshal[RoomFullPayload](e) },
	EventPlayerJoined:       func(e Envelope) (any, error) { return Unmarshal[PlayerJoinedPayload](e) },
	EventPlayerDisconnected: func(e Envelope) (any, error) { return Unmarshal[PlayerDisconnectedPayload](e) },
	EventRoomData:           parseRoomData,
	EventPlayerStats:        func(e Envelope) (any, error) { return Unmarshal[PlayerStatsPayload](e) },
	EventGameReset:          parseGameReset,
	EventRoomError:          func(e Envelope) (any, error) { return Unmarshal[RoomErrorPayload](e) },
}

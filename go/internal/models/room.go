package models

import (
	"slices"
	"time"
)

// RoomStatus defines the lifecycle status of a room.
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusRunning  RoomStatus = "running"
	RoomStatusFinished RoomStatus = "finished"
)

// MaxPlayers is the room capacity.
const MaxPlayers = 2

// Quorum is the number of players and ready signals needed to start a race.
const Quorum = 2

// Player is a member of a room.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// Room is the snapshot of a race room as seen on the wire.
type Room struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Players   []Player   `json:"players"`
	Ready     []string   `json:"ready"`
	Finished  []string   `json:"finished,omitempty"`
	Status    RoomStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// HasPlayer reports whether playerID is a member of the room.
func (r *Room) HasPlayer(playerID string) bool {
	return r.Player(playerID) != nil
}

// Player returns the member with the given id or nil.
func (r *Room) Player(playerID string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

// IsReady reports whether playerID has signalled ready.
func (r *Room) IsReady(playerID string) bool {
	return slices.Contains(r.Ready, playerID)
}

// HasQuorum reports whether the room holds enough players and ready signals to race.
func (r *Room) HasQuorum() bool {
	return len(r.Players) >= Quorum && len(r.Ready) >= Quorum
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = slices.Clone(r.Players)
	c.Ready = slices.Clone(r.Ready)
	c.Finished = slices.Clone(r.Finished)
	return &c
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stats are the live metrics of one typing session.
type Stats struct {
	WPM      int `json:"wpm"`
	Accuracy int `json:"accuracy"`
	Errors   int `json:"errors"`
}

// DefaultStats is the opponent view before any snapshot arrives or after a reset.
var DefaultStats = Stats{WPM: 0, Accuracy: 100, Errors: 0}

// StatsSnapshot is a point-in-time copy of a player's metrics sent to the opponent.
type StatsSnapshot struct {
	RoomID     string    `json:"roomId"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Stats      Stats     `json:"stats"`
	Seq        uint64    `json:"seq"`
	Session    string    `json:"session,omitempty"`
	Final      bool      `json:"final,omitempty"`
	SentAt     time.Time `json:"sentAt"`
}

// LeaderboardRecord is one persisted race result.
type LeaderboardRecord struct {
	ID        uuid.UUID       `json:"id"`
	PlayerID  string          `json:"playerId"`
	UserID    string          `json:"userId,omitempty"`
	WPM       int             `json:"wpm"`
	Accuracy  int             `json:"accuracy"`
	Errors    int             `json:"errors"`
	Details   json.RawMessage `json:"details,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// RankedRecord is a LeaderboardRecord with its computed score and position.
type RankedRecord struct {
	LeaderboardRecord
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

package protocol

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxRoomNameLen   = 32
	MaxPlayerNameLen = 24
	MaxPlayerIDLen   = 64
	MaxTextLen       = 2000
	MaxWPM           = 1000

	// maxEscapedRune is the longest JSON encoding of one rune: a surrogate
	// pair written as two \uXXXX escapes.
	maxEscapedRune = 12

	// MaxEnvelopeSize bounds an inbound frame. Any payload that passes
	// validation fits, however its strings are escaped.
	MaxEnvelopeSize = MaxTextLen*maxEscapedRune + 4*1024
)

// ValidationError is a rejected payload field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type validator interface {
	Validate() error
}

// ValidateRoomName checks a room name typed by a player.
func ValidateRoomName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "roomName", Message: "room name is required"}
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLen {
		return &ValidationError{Field: "roomName", Message: fmt.Sprintf("room name must be at most %d characters", MaxRoomNameLen)}
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != ' ' {
			return &ValidationError{Field: "roomName", Message: "room name may only contain letters, digits, spaces, '-' and '_'"}
		}
	}
	return nil
}

// ValidatePlayerName checks a display name.
func ValidatePlayerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "playerName", Message: "display name is required"}
	}
	if utf8.RuneCountInString(name) > MaxPlayerNameLen {
		return &ValidationError{Field: "playerName", Message: fmt.Sprintf("display name must be at most %d characters", MaxPlayerNameLen)}
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return &ValidationError{Field: "playerName", Message: "display name contains unprintable characters"}
		}
	}
	return nil
}

// ValidatePassage checks a custom passage. Whitespace of any kind is allowed
// because rooms collapse it to single spaces; other runes a player cannot
// type are rejected.
func ValidatePassage(text string) error {
	if utf8.RuneCountInString(text) > MaxTextLen {
		return &ValidationError{Field: "text", Message: "passage is too long"}
	}
	if !utf8.ValidString(text) {
		return &ValidationError{Field: "text", Message: "passage is not valid UTF-8"}
	}
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsPrint(r) {
			return &ValidationError{Field: "text", Message: "passage contains untypeable characters"}
		}
	}
	return nil
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if len(value) > MaxPlayerIDLen {
		return &ValidationError{Field: field, Message: "is too long"}
	}
	return nil
}

func (p *CreateRoomPayload) Validate() error {
	if err := ValidateRoomName(p.RoomName); err != nil {
		return err
	}
	if err := ValidatePlayerName(p.PlayerName); err != nil {
		return err
	}
	if err := ValidatePassage(p.Text); err != nil {
		return err
	}
	return requireID("playerId", p.PlayerID)
}

func (p *JoinRoomPayload) Validate() error {
	if err := ValidateRoomName(p.RoomName); err != nil {
		return err
	}
	if err := ValidatePlayerName(p.PlayerName); err != nil {
		return err
	}
	return requireID("playerId", p.PlayerID)
}

func (p *PlayerReadyPayload) Validate() error {
	if err := requireID("roomId", p.RoomID); err != nil {
		return err
	}
	return requireID("playerId", p.PlayerID)
}

func (p *StatsPayload) Validate() error {
	if err := requireID("roomId", p.RoomID); err != nil {
		return err
	}
	if err := requireID("playerId", p.PlayerID); err != nil {
		return err
	}
	switch {
	case p.Stats.WPM < 0 || p.Stats.WPM > MaxWPM:
		return &ValidationError{Field: "stats.wpm", Message: "out of range"}
	case p.Stats.Accuracy < 0 || p.Stats.Accuracy > 100:
		return &ValidationError{Field: "stats.accuracy", Message: "must be between 0 and 100"}
	case p.Stats.Errors < 0:
		return &ValidationError{Field: "stats.errors", Message: "must not be negative"}
	}
	return nil
}

func (p *ResetRoomPayload) Validate() error {
	if err := requireID("roomId", p.RoomID); err != nil {
		return err
	}
	return requireID("playerId", p.PlayerID)
}

func (p *GetRoomDataPayload) Validate() error {
	return requireID("roomId", p.RoomID)
}

func (p *PlayerStatsPayload) Validate() error {
	return requireID("playerId", p.PlayerID)
}

func (p *PlayerDisconnectedPayload) Validate() error {
	return requireID("playerId", p.PlayerID)
}

func (p *RoomCreatedPayload) Validate() error {
	return requireID("roomId", p.RoomID)
}

func (p *RoomJoinedPayload) Validate() error {
	return requireID("roomId", p.RoomID)
}

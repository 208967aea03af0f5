package leaderboard

import (
	"encoding/json"
	"errors"

	"github.com/mcdev12/typerace/go/internal/models"
)

// ErrInvalidStats is returned for submissions outside the accepted ranges.
var ErrInvalidStats = errors.New("invalid stats")

// SubmitRequest is one finished run sent for ranking.
type SubmitRequest struct {
	PlayerID string          `json:"playerId"`
	UserID   string          `json:"userId,omitempty"`
	Stats    models.Stats    `json:"stats"`
	Details  json.RawMessage `json:"details,omitempty"`
}

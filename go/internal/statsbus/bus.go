// Package statsbus fans live stats snapshots out to every gateway instance.
// Snapshots from one player are delivered in publish order; there is no
// ordering across players.
package statsbus

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/mcdev12/typerace/go/internal/models"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("stats bus closed")

// Bus carries stats snapshots between gateway instances.
type Bus interface {
	// Publish sends one snapshot.
	Publish(ctx context.Context, snap models.StatsSnapshot) error
	// Subscribe registers a subscriber before returning. The channel is
	// closed when ctx is done or the bus is closed.
	Subscribe(ctx context.Context) (<-chan models.StatsSnapshot, error)
	Close() error
}

// subjectToken encodes an id so it is a single valid NATS subject token.
// Room names may contain spaces, which subjects do not allow.
func subjectToken(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// Subject returns the subject a player's snapshots are published on.
func Subject(prefix, roomID, playerID string) string {
	return strings.Join([]string{prefix, subjectToken(roomID), subjectToken(playerID)}, ".")
}

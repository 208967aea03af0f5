// Package room owns the authoritative state of every race room.
package room

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/models"
)

// PassagePicker supplies a passage when a room is created without one.
type PassagePicker interface {
	Pick(ctx context.Context) (string, error)
}

// Config holds registry settings.
type Config struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the default registry settings.
func DefaultConfig() Config {
	return Config{
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

type entry struct {
	room    *models.Room
	touched time.Time
}

// Registry serializes all membership and readiness writes. Every method
// returns a snapshot copy that callers may keep.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*entry
	passages PassagePicker
	clock    clockwork.Clock
	config   Config
}

// NewRegistry creates an empty registry.
func NewRegistry(config Config, passages PassagePicker, clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		rooms:    make(map[string]*entry),
		passages: passages,
		clock:    clock,
		config:   config,
	}
}

// NormalizePassage collapses every whitespace run, line breaks and tabs
// included, into a single space so the passage is typeable end to end.
func NormalizePassage(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CreateParams are the inputs of Create.
type CreateParams struct {
	RoomName   string
	PlayerName string
	PlayerID   string
	Text       string
}

// Create opens a room whose id is the room name. The creator becomes host.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*models.Room, error) {
	roomID := strings.TrimSpace(p.RoomName)
	text := NormalizePassage(p.Text)
	if text == "" {
		if r.passages == nil {
			return nil, fmt.Errorf("no passage for room %s", roomID)
		}
		picked, err := r.passages.Pick(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to pick passage: %w", err)
		}
		text = NormalizePassage(picked)
		if text == "" {
			return nil, fmt.Errorf("empty passage for room %s", roomID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[roomID]; exists {
		return nil, ErrRoomExists
	}

	now := r.clock.Now()
	room := &models.Room{
		ID:        roomID,
		Text:      text,
		Players:   []models.Player{{ID: p.PlayerID, Name: strings.TrimSpace(p.PlayerName), IsHost: true}},
		Ready:     []string{},
		Status:    models.RoomStatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.rooms[roomID] = &entry{room: room, touched: now}

	log.Info().
		Str("room_id", roomID).
		Str("player_id", p.PlayerID).
		Int("text_len", len(text)).
		Msg("room created")

	return room.Clone(), nil
}

// Join adds a player to a room. A player id that is already a member rejoins
// and keeps its seat. rejoined reports that case.
func (r *Registry) Join(roomID, playerID, playerName string) (room *models.Room, rejoined bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(roomID)
	if err != nil {
		return nil, false, err
	}

	if existing := e.room.Player(playerID); existing != nil {
		existing.Name = strings.TrimSpace(playerName)
		r.touch(e)
		return e.room.Clone(), true, nil
	}
	if len(e.room.Players) >= models.MaxPlayers {
		return nil, false, ErrRoomFull
	}

	e.room.Players = append(e.room.Players, models.Player{
		ID:     playerID,
		Name:   strings.TrimSpace(playerName),
		IsHost: len(e.room.Players) == 0,
	})
	r.touch(e)

	log.Info().
		Str("room_id", roomID).
		Str("player_id", playerID).
		Int("players", len(e.room.Players)).
		Msg("player joined room")

	return e.room.Clone(), false, nil
}

// Ready records a ready signal. The room starts running exactly when quorum is met.
func (r *Registry) Ready(roomID, playerID string) (*models.Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.member(roomID, playerID)
	if err != nil {
		return nil, false, err
	}
	room := e.room
	if room.Status == models.RoomStatusFinished {
		return nil, false, ErrRaceFinished
	}
	if !room.IsReady(playerID) {
		room.Ready = append(room.Ready, playerID)
	}
	started := false
	if room.Status == models.RoomStatusWaiting && room.HasQuorum() {
		room.Status = models.RoomStatusRunning
		room.Finished = nil
		started = true
		log.Info().Str("room_id", roomID).Msg("race running")
	}
	r.touch(e)
	return room.Clone(), started, nil
}

// Reset clears readiness and returns the room to waiting.
func (r *Registry) Reset(roomID, playerID string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.member(roomID, playerID)
	if err != nil {
		return nil, err
	}
	e.room.Ready = []string{}
	e.room.Finished = nil
	e.room.Status = models.RoomStatusWaiting
	r.touch(e)

	log.Info().Str("room_id", roomID).Str("player_id", playerID).Msg("room reset")
	return e.room.Clone(), nil
}

// Complete marks a player as done. The room is finished once every present
// player has completed.
func (r *Registry) Complete(roomID, playerID string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.member(roomID, playerID)
	if err != nil {
		return nil, err
	}
	room := e.room
	if room.Status != models.RoomStatusRunning {
		return nil, ErrNotRunning
	}
	if !slices.Contains(room.Finished, playerID) {
		room.Finished = append(room.Finished, playerID)
	}
	allDone := true
	for _, p := range room.Players {
		if !slices.Contains(room.Finished, p.ID) {
			allDone = false
			break
		}
	}
	if allDone {
		room.Status = models.RoomStatusFinished
		log.Info().Str("room_id", roomID).Msg("race finished")
	}
	r.touch(e)
	return room.Clone(), nil
}

// Leave removes a player, for example on disconnect. It returns nil when the
// room was deleted because it became empty.
func (r *Registry) Leave(roomID, playerID string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.member(roomID, playerID)
	if err != nil {
		return nil, err
	}
	room := e.room
	wasHost := room.Player(playerID).IsHost

	room.Players = slices.DeleteFunc(room.Players, func(p models.Player) bool { return p.ID == playerID })
	room.Ready = slices.DeleteFunc(room.Ready, func(id string) bool { return id == playerID })
	room.Finished = slices.DeleteFunc(room.Finished, func(id string) bool { return id == playerID })

	if len(room.Players) == 0 {
		delete(r.rooms, roomID)
		log.Info().Str("room_id", roomID).Msg("room closed, last player left")
		return nil, nil
	}
	if wasHost {
		room.Players[0].IsHost = true
	}
	if room.Status != models.RoomStatusWaiting && len(room.Players) < models.Quorum {
		room.Status = models.RoomStatusWaiting
		room.Ready = []string{}
		room.Finished = nil
		log.Info().Str("room_id", roomID).Msg("race interrupted, room back to waiting")
	}
	r.touch(e)
	return room.Clone(), nil
}

// Get returns a snapshot of the room.
func (r *Registry) Get(roomID string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(roomID)
	if err != nil {
		return nil, err
	}
	return e.room.Clone(), nil
}

// Touch marks the room as active so the sweeper keeps it.
func (r *Registry) Touch(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.rooms[roomID]; ok {
		e.touched = r.clock.Now()
	}
}

// Len returns the number of open rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Sweep evicts rooms idle for longer than the configured TTL.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock.Now().Add(-r.config.IdleTTL)
	var evicted []string
	for id, e := range r.rooms {
		if e.touched.Before(cutoff) {
			delete(r.rooms, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		log.Info().Strs("room_ids", evicted).Msg("evicted idle rooms")
	}
	return evicted
}

// RunSweeper evicts idle rooms until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context) {
	if r.config.IdleTTL <= 0 || r.config.SweepInterval <= 0 {
		return
	}
	ticker := r.clock.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

func (r *Registry) lookup(roomID string) (*entry, error) {
	e, ok := r.rooms[strings.TrimSpace(roomID)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return e, nil
}

func (r *Registry) member(roomID, playerID string) (*entry, error) {
	e, err := r.lookup(roomID)
	if err != nil {
		return nil, err
	}
	if !e.room.HasPlayer(playerID) {
		return nil, ErrNotMember
	}
	return e, nil
}

func (r *Registry) touch(e *entry) {
	now := r.clock.Now()
	e.touched = now
	e.room.UpdatedAt = now
}

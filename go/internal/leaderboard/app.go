// Package leaderboard stores finished runs and serves them ranked by score.
// Scores are never stored; every read recomputes them from raw metrics.
package leaderboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/scoring"
)

// Repository defines what the app layer needs from storage.
type Repository interface {
	Insert(ctx context.Context, rec models.LeaderboardRecord) (*models.LeaderboardRecord, error)
	List(ctx context.Context) ([]models.LeaderboardRecord, error)
}

// App handles leaderboard business logic.
type App struct {
	repo  Repository
	clock clockwork.Clock

	mu         sync.Mutex
	cached     []models.RankedRecord
	cacheValid bool
	generation uint64
}

// NewApp creates a new leaderboard App.
func NewApp(repo Repository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{repo: repo, clock: clock}
}

// Submit validates and stores a finished run with a server-assigned id and timestamp.
func (a *App) Submit(ctx context.Context, req SubmitRequest) (*models.LeaderboardRecord, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	rec, err := a.repo.Insert(ctx, models.LeaderboardRecord{
		ID:        uuid.New(),
		PlayerID:  strings.TrimSpace(req.PlayerID),
		UserID:    strings.TrimSpace(req.UserID),
		WPM:       req.Stats.WPM,
		Accuracy:  req.Stats.Accuracy,
		Errors:    req.Stats.Errors,
		Details:   req.Details,
		UpdatedAt: a.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store typing stats: %w", err)
	}
	a.Invalidate()

	log.Info().
		Str("record_id", rec.ID.String()).
		Str("player_id", rec.PlayerID).
		Int("wpm", rec.WPM).
		Int("accuracy", rec.Accuracy).
		Msg("stored typing stats")
	return rec, nil
}

// List returns every stored run, scored and ranked.
func (a *App) List(ctx context.Context) ([]models.RankedRecord, error) {
	a.mu.Lock()
	if a.cacheValid {
		out := append([]models.RankedRecord(nil), a.cached...)
		a.mu.Unlock()
		return out, nil
	}
	gen := a.generation
	a.mu.Unlock()

	records, err := a.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list typing stats: %w", err)
	}
	ranked := scoring.Rank(records)

	a.mu.Lock()
	if gen == a.generation {
		a.cached = ranked
		a.cacheValid = true
	}
	a.mu.Unlock()

	return append([]models.RankedRecord(nil), ranked...), nil
}

// Invalidate drops the cached ranking.
func (a *App) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generation++
	a.cacheValid = false
	a.cached = nil
}

func validateSubmit(req SubmitRequest) error {
	switch {
	case strings.TrimSpace(req.PlayerID) == "":
		return fmt.Errorf("%w: playerId is required", ErrInvalidStats)
	case req.Stats.WPM < 0:
		return fmt.Errorf("%w: wpm must not be negative", ErrInvalidStats)
	case req.Stats.Accuracy < 0 || req.Stats.Accuracy > 100:
		return fmt.Errorf("%w: accuracy must be between 0 and 100", ErrInvalidStats)
	case req.Stats.Errors < 0:
		return fmt.Errorf("%w: errors must not be negative", ErrInvalidStats)
	}
	return nil
}

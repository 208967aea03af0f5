package leaderboard

import (
	"context"
	"slices"
	"sync"

	"github.com/mcdev12/typerace/go/internal/models"
)

// MemoryRepository keeps records in process.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []models.LeaderboardRecord
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(_ context.Context, rec models.LeaderboardRecord) (*models.LeaderboardRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Details = slices.Clone(rec.Details)
	r.records = append(r.records, rec)
	return &rec, nil
}

func (r *MemoryRepository) List(context.Context) ([]models.LeaderboardRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.records), nil
}

package passages

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS passages (
    id         SERIAL PRIMARY KEY,
    body       TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store reads passages from Postgres and falls back to a static list when the
// table is empty or unreachable.
type Store struct {
	pool     *pgxpool.Pool
	fallback *Static
}

// NewStore creates a Store on an open pool.
func NewStore(pool *pgxpool.Pool, fallback *Static) *Store {
	return &Store{pool: pool, fallback: fallback}
}

// EnsureSchema creates the passages table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create passages table: %w", err)
	}
	return nil
}

// Pick returns a random stored passage.
func (s *Store) Pick(ctx context.Context) (string, error) {
	var body string
	err := s.pool.QueryRow(ctx, `SELECT body FROM passages ORDER BY random() LIMIT 1`).Scan(&body)
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, pgx.ErrNoRows):
		log.Debug().Msg("passages table empty, using built-in passages")
	default:
		log.Warn().Err(err).Msg("failed to read passage, using built-in passages")
	}
	if s.fallback == nil {
		return "", ErrNoPassages
	}
	return s.fallback.Pick(ctx)
}

// Insert adds passages, skipping ones already stored. It returns how many rows
// were inserted.
func (s *Store) Insert(ctx context.Context, texts []string) (int, error) {
	inserted := 0
	for _, t := range texts {
		tag, err := s.pool.Exec(ctx, `INSERT INTO passages (body) VALUES ($1) ON CONFLICT (body) DO NOTHING`, t)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert passage: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Package history keeps finished runs in a local SQLite database so solo and
// offline results survive without the server.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcdev12/typerace/go/internal/scoring"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Mode is how a run was played.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeSolo     Mode = "solo"
	ModeRace     Mode = "race"
)

// Run is one finished run.
type Run struct {
	ID        int64
	Mode      Mode
	RoomID    string
	WPM       int
	Accuracy  int
	Errors    int
	Chars     int
	StartedAt time.Time
	Duration  time.Duration
	// Score is computed on read.
	Score float64
}

// Store wraps SQLite access for runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			mode TEXT NOT NULL,
			room_id TEXT NOT NULL DEFAULT '',
			wpm INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			chars INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate history: %w", err)
		}
	}
	return nil
}

// Record stores a run and returns its id.
func (s *Store) Record(ctx context.Context, run Run) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (mode, room_id, wpm, accuracy, errors, chars, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(run.Mode),
		run.RoomID,
		run.WPM,
		run.Accuracy,
		run.Errors,
		run.Chars,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, room_id, wpm, accuracy, errors, chars, started_at, duration_ms
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			mode       string
			startedAt  string
			durationMs int64
		)
		if err := rows.Scan(&run.ID, &mode, &run.RoomID, &run.WPM, &run.Accuracy, &run.Errors, &run.Chars, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Mode = Mode(mode)
		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at %q: %w", startedAt, err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.Score = scoring.Score(run.WPM, run.Accuracy, run.Errors)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Best returns the highest scoring run of mode, or nil when there is none.
func (s *Store) Best(ctx context.Context, mode Mode) (*Run, error) {
	runs, err := s.all(ctx, mode)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	best := runs[0]
	for _, r := range runs[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	return &best, nil
}

func (s *Store) all(ctx context.Context, mode Mode) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, wpm, accuracy, errors, started_at FROM runs WHERE mode = ? ORDER BY started_at`, string(mode))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			startedAt string
		)
		if err := rows.Scan(&run.ID, &run.WPM, &run.Accuracy, &run.Errors, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Mode = mode
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		run.Score = scoring.Score(run.WPM, run.Accuracy, run.Errors)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

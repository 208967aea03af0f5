package leaderboard

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/sqlutil"
)

// NotifyChannel is the Postgres channel a trigger notifies on every insert.
const NotifyChannel = "typing_stats_changed"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS typing_stats (
		id         UUID PRIMARY KEY,
		player_id  TEXT NOT NULL,
		user_id    TEXT,
		wpm        INTEGER NOT NULL CHECK (wpm >= 0),
		accuracy   INTEGER NOT NULL CHECK (accuracy BETWEEN 0 AND 100),
		errors     INTEGER NOT NULL CHECK (errors >= 0),
		details    JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS typing_stats_player_id_idx ON typing_stats (player_id)`,
	`CREATE OR REPLACE FUNCTION notify_typing_stats_changed() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + NotifyChannel + `', NEW.id::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS typing_stats_notify ON typing_stats`,
	`CREATE TRIGGER typing_stats_notify AFTER INSERT ON typing_stats
		FOR EACH ROW EXECUTE FUNCTION notify_typing_stats_changed()`,
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries are the typing_stats statements bound to a connection or transaction.
type Queries struct {
	db DBTX
}

func newQueries(db DBTX) *Queries { return &Queries{db: db} }

type insertStatsParams struct {
	ID       uuid.UUID
	PlayerID string
	UserID   sql.NullString
	WPM      int
	Accuracy int
	Errors   int
	Details  pqtype.NullRawMessage
}

const insertStats = `
INSERT INTO typing_stats (id, player_id, user_id, wpm, accuracy, errors, details, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING updated_at`

func (q *Queries) insertStats(ctx context.Context, arg insertStatsParams, rec *models.LeaderboardRecord) error {
	return q.db.QueryRowContext(ctx, insertStats,
		arg.ID, arg.PlayerID, arg.UserID, arg.WPM, arg.Accuracy, arg.Errors, arg.Details, rec.UpdatedAt,
	).Scan(&rec.UpdatedAt)
}

const listStats = `
SELECT id, player_id, user_id, wpm, accuracy, errors, details, updated_at
FROM typing_stats
ORDER BY updated_at ASC`

func (q *Queries) listStats(ctx context.Context) ([]models.LeaderboardRecord, error) {
	rows, err := q.db.QueryContext(ctx, listStats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeaderboardRecord
	for rows.Next() {
		var (
			rec     models.LeaderboardRecord
			userID  sql.NullString
			details pqtype.NullRawMessage
		)
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &userID, &rec.WPM, &rec.Accuracy, &rec.Errors, &details, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.UserID = sqlutil.StringOrEmpty(userID)
		if details.Valid {
			rec.Details = details.RawMessage
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PostgresRepository stores typing stats in Postgres.
type PostgresRepository struct {
	db      *sql.DB
	queries *Queries
}

// NewPostgresRepository creates a repository on an open database.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, queries: newQueries(db)}
}

// Migrate creates the table, index and notify trigger in one transaction.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	err := sqlutil.Run(ctx, r.db,
		func(tx *sql.Tx) *Queries { return newQueries(tx) },
		func(q *Queries) error {
			for i, stmt := range migrations {
				if _, err := q.db.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d: %w", i, err)
				}
			}
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate typing_stats: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec models.LeaderboardRecord) (*models.LeaderboardRecord, error) {
	err := r.queries.insertStats(ctx, insertStatsParams{
		ID:       rec.ID,
		PlayerID: rec.PlayerID,
		UserID:   sqlutil.NullString(rec.UserID),
		WPM:      rec.WPM,
		Accuracy: rec.Accuracy,
		Errors:   rec.Errors,
		Details:  pqtype.NullRawMessage{RawMessage: rec.Details, Valid: len(rec.Details) > 0},
	}, &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to insert typing stats: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.LeaderboardRecord, error) {
	records, err := r.queries.listStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list typing stats: %w", err)
	}
	return records, nil
}

package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository is the durable score store. Ranking is a single ordered
// range query parameterized by the time window, never a scan-and-sort.
type Repository interface {
	UpsertScore(ctx context.Context, e *Entry) error
	TopN(ctx context.Context, leaderboardID string, tf Timeframe, limit int) ([]Entry, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) UpsertScore(ctx context.Context, e *Entry) error {
	if e == nil {
		return fmt.Errorf("nil score entry")
	}
	const query = `
		INSERT INTO score_entries (leaderboard_id, user_id, display_name, score, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (leaderboard_id, user_id)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			score = EXCLUDED.score,
			recorded_at = EXCLUDED.recorded_at`

	_, err := r.db.ExecContext(ctx, query, e.LeaderboardID, e.UserID, e.DisplayName, e.Score, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("upsert score entry: %w", err)
	}
	return nil
}

func (r *repository) TopN(ctx context.Context, leaderboardID string, tf Timeframe, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	// Ties rank by earliest submission.
	const base = `
		SELECT leaderboard_id, user_id, display_name, score, recorded_at
		FROM score_entries
		WHERE leaderboard_id = $1`
	const order = `
		ORDER BY score DESC, recorded_at ASC
		LIMIT $2`

	var (
		rows *sql.Rows
		err  error
	)
	if start, ok := tf.WindowStart(time.Now().UTC()); ok {
		rows, err = r.db.QueryContext(ctx, base+` AND recorded_at >= $3`+order, leaderboardID, limit, start)
	} else {
		rows, err = r.db.QueryContext(ctx, base+order, leaderboardID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.LeaderboardID, &e.UserID, &e.DisplayName, &e.Score, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan score entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score entries: %w", err)
	}
	return entries, nil
}

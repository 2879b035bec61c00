package streak

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository interface {
	// Get returns nil without error when no record exists yet.
	Get(ctx context.Context, userID string) (*Record, error)
	Upsert(ctx context.Context, rec *Record) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, userID string) (*Record, error) {
	const query = `
		SELECT user_id, current_streak, longest_streak, last_play_date, total_days_played
		FROM streaks
		WHERE user_id = $1`

	var (
		rec      Record
		lastPlay sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.CurrentStreak,
		&rec.LongestStreak,
		&lastPlay,
		&rec.TotalDaysPlayed,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select streak: %w", err)
	}
	if lastPlay.Valid {
		d := day(lastPlay.Time)
		rec.LastPlayDate = &d
	}
	return &rec, nil
}

func (r *repository) Upsert(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil streak record")
	}
	const query = `
		INSERT INTO streaks (user_id, current_streak, longest_streak, last_play_date, total_days_played, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_play_date = EXCLUDED.last_play_date,
			total_days_played = EXCLUDED.total_days_played,
			updated_at = NOW()`

	var lastPlay interface{}
	if rec.LastPlayDate != nil {
		lastPlay = *rec.LastPlayDate
	}
	_, err := r.db.ExecContext(ctx, query, rec.UserID, rec.CurrentStreak, rec.LongestStreak, lastPlay, rec.TotalDaysPlayed)
	if err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}

package progress

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Progress is a user's durable progression record. Level and total score
// only move forward; games played is a plain counter.
type Progress struct {
	UserID            string
	Level             int
	TotalScore        float64
	GamesPlayed       int
	AchievementsCount int
	UpdatedAt         time.Time
}

type Repository interface {
	// Get returns nil without error when no record exists yet.
	Get(ctx context.Context, userID string) (*Progress, error)
	// Apply merges reported facts monotonically (level and total score
	// never decrease) and returns the resulting row.
	Apply(ctx context.Context, userID string, level int, totalScore float64) (*Progress, error)
	// RecordSubmission counts one score submission: games_played + 1 and
	// total_score + score, both as atomic additive updates.
	RecordSubmission(ctx context.Context, userID string, score float64) (*Progress, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const progressColumns = `user_id, level, total_score, games_played, achievements_count, updated_at`

func scanProgress(row *sql.Row) (*Progress, error) {
	var p Progress
	err := row.Scan(&p.UserID, &p.Level, &p.TotalScore, &p.GamesPlayed, &p.AchievementsCount, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) Get(ctx context.Context, userID string) (*Progress, error) {
	const query = `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1`
	p, err := scanProgress(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("select user progress: %w", err)
	}
	return p, nil
}

func (r *repository) Apply(ctx context.Context, userID string, level int, totalScore float64) (*Progress, error) {
	const query = `
		INSERT INTO user_progress (user_id, level, total_score, games_played, achievements_count, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			level = GREATEST(user_progress.level, EXCLUDED.level),
			total_score = GREATEST(user_progress.total_score, EXCLUDED.total_score),
			updated_at = NOW()
		RETURNING ` + progressColumns

	p, err := scanProgress(r.db.QueryRowContext(ctx, query, userID, level, totalScore))
	if err != nil {
		return nil, fmt.Errorf("apply user progress: %w", err)
	}
	return p, nil
}

func (r *repository) RecordSubmission(ctx context.Context, userID string, score float64) (*Progress, error) {
	const query = `
		INSERT INTO user_progress (user_id, level, total_score, games_played, achievements_count, updated_at)
		VALUES ($1, 1, $2, 1, 0, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			total_score = user_progress.total_score + EXCLUDED.total_score,
			games_played = user_progress.games_played + 1,
			updated_at = NOW()
		RETURNING ` + progressColumns

	p, err := scanProgress(r.db.QueryRowContext(ctx, query, userID, score))
	if err != nil {
		return nil, fmt.Errorf("record score submission: %w", err)
	}
	return p, nil
}

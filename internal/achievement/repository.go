package achievement

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Unlock is one row of the append-only unlock log. Presence of a row is
// the sole signal of "unlocked"; rows are never deleted.
type Unlock struct {
	UserID        string
	AchievementID string
	UnlockedAt    time.Time
}

type Repository interface {
	// InsertUnlock appends the row unless it already exists and reports
	// whether this call performed the insert.
	InsertUnlock(ctx context.Context, userID, achievementID string, at time.Time) (bool, error)
	GetUnlock(ctx context.Context, userID, achievementID string) (*Unlock, error)
	ListUnlocked(ctx context.Context, userID string) ([]Unlock, error)
	// IncrementCounter bumps the user's visible achievement counter by one.
	IncrementCounter(ctx context.Context, userID string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertUnlock(ctx context.Context, userID, achievementID string, at time.Time) (bool, error) {
	const query = `
		INSERT INTO achievement_unlocks (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, userID, achievementID, at)
	if err != nil {
		return false, fmt.Errorf("insert achievement unlock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert achievement unlock: %w", err)
	}
	return n > 0, nil
}

func (r *repository) GetUnlock(ctx context.Context, userID, achievementID string) (*Unlock, error) {
	const query = `
		SELECT user_id, achievement_id, unlocked_at
		FROM achievement_unlocks
		WHERE user_id = $1 AND achievement_id = $2`

	var u Unlock
	err := r.db.QueryRowContext(ctx, query, userID, achievementID).Scan(&u.UserID, &u.AchievementID, &u.UnlockedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select achievement unlock: %w", err)
	}
	return &u, nil
}

func (r *repository) ListUnlocked(ctx context.Context, userID string) ([]Unlock, error) {
	const query = `
		SELECT user_id, achievement_id, unlocked_at
		FROM achievement_unlocks
		WHERE user_id = $1
		ORDER BY unlocked_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select achievement unlocks: %w", err)
	}
	defer rows.Close()

	var out []Unlock
	for rows.Next() {
		var u Unlock
		if err := rows.Scan(&u.UserID, &u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan achievement unlock: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievement unlocks: %w", err)
	}
	return out, nil
}

func (r *repository) IncrementCounter(ctx context.Context, userID string) error {
	const query = `
		INSERT INTO user_progress (user_id, level, total_score, games_played, achievements_count, updated_at)
		VALUES ($1, 0, 0, 0, 1, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			achievements_count = user_progress.achievements_count + 1,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("increment achievement counter: %w", err)
	}
	return nil
}

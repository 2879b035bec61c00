package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/kapu/arena-live-go/internal/obslog"
	"github.com/kapu/arena-live-go/pkg/arenadto"
	"go.uber.org/zap"
)

// Streak lengths that carry an achievement. Every threshold at or below
// the new streak is re-unlocked; unlock is idempotent so that is safe.
var streakThresholds = []int{3, 7, 30, 100, 365}

// Unlocker is the slice of the achievement engine the streak engine needs.
type Unlocker interface {
	Unlock(ctx context.Context, userID, achievementID string) (time.Time, error)
}

// Engine derives streak state from play events with date-aware,
// idempotent transitions.
type Engine struct {
	repo     Repository
	unlocker Unlocker
	now      func() time.Time
}

func NewEngine(repo Repository, unlocker Unlocker) *Engine {
	return &Engine{repo: repo, unlocker: unlocker, now: func() time.Time { return time.Now().UTC() }}
}

// RecordPlay applies one play event at day granularity:
// same day is a no-op, a one-day gap extends the streak, anything else
// resets it to 1. Threshold achievements are evaluated best-effort.
func (e *Engine) RecordPlay(ctx context.Context, userID string) (*Record, error) {
	rec, err := e.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &Record{UserID: userID}
	}

	today := day(e.now())
	if rec.LastPlayDate != nil && daysApart(*rec.LastPlayDate, today) == 0 {
		// already counted today
		return rec, nil
	}

	if rec.LastPlayDate != nil && daysApart(*rec.LastPlayDate, today) == 1 {
		rec.CurrentStreak++
	} else {
		rec.CurrentStreak = 1
	}
	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	rec.LastPlayDate = &today
	rec.TotalDaysPlayed++

	if err := e.repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	obslog.L().Info("streak_update",
		zap.String("user_id", userID),
		zap.Int("current", rec.CurrentStreak),
		zap.Int("longest", rec.LongestStreak))

	e.unlockThresholds(ctx, userID, rec.CurrentStreak)
	return rec, nil
}

// unlockThresholds is a best-effort side evaluation; failures never fail
// the streak update itself.
func (e *Engine) unlockThresholds(ctx context.Context, userID string, current int) {
	if e.unlocker == nil {
		return
	}
	for _, n := range streakThresholds {
		if n > current {
			break
		}
		id := fmt.Sprintf("streak_%d", n)
		if _, err := e.unlocker.Unlock(ctx, userID, id); err != nil {
			obslog.L().Warn("streak_achievement_failed",
				zap.String("user_id", userID),
				zap.String("achievement_id", id),
				zap.Error(err))
		}
	}
}

// CurrentView is the read projection. A streak broken by more than a
// one-day gap is shown as 0 without mutating storage; the next
// RecordPlay physically corrects the stored value.
func (e *Engine) CurrentView(ctx context.Context, userID string) (*arenadto.StreakView, error) {
	rec, err := e.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &arenadto.StreakView{UserID: userID}
	if rec == nil {
		return view, nil
	}
	view.CurrentStreak = rec.CurrentStreak
	view.LongestStreak = rec.LongestStreak
	view.TotalDaysPlayed = rec.TotalDaysPlayed
	if rec.LastPlayDate != nil {
		view.LastPlayDate = rec.LastPlayDate.Format(dateLayout)
		if daysApart(*rec.LastPlayDate, day(e.now())) > 1 {
			view.CurrentStreak = 0
		}
	} else {
		view.CurrentStreak = 0
	}
	return view, nil
}

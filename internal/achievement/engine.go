package achievement

import (
	"context"
	"time"

	"github.com/kapu/arena-live-go/internal/obslog"
	"github.com/kapu/arena-live-go/pkg/arenadto"
	"go.uber.org/zap"
)

// Notifier receives unlock events for out-of-band delivery. Implementations
// must be best-effort; the engine never waits on them.
type Notifier interface {
	AchievementUnlocked(userID, achievementID string)
}

// Engine records idempotent unlocks and evaluates threshold rules.
type Engine struct {
	repo     Repository
	catalog  *Catalog
	notifier Notifier
	now      func() time.Time
}

func NewEngine(repo Repository, catalog *Catalog) *Engine {
	return &Engine{repo: repo, catalog: catalog, now: func() time.Time { return time.Now().UTC() }}
}

// SetNotifier attaches an optional unlock notifier.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// Unlock appends the (user, achievement) row if absent and returns the
// unlock timestamp. Repeated calls return the original timestamp and
// never double-count: safe to call redundantly from multiple evaluators.
func (e *Engine) Unlock(ctx context.Context, userID, achievementID string) (time.Time, error) {
	at := e.now()
	inserted, err := e.repo.InsertUnlock(ctx, userID, achievementID, at)
	if err != nil {
		return time.Time{}, err
	}
	if !inserted {
		existing, err := e.repo.GetUnlock(ctx, userID, achievementID)
		if err != nil {
			return time.Time{}, err
		}
		if existing != nil {
			return existing.UnlockedAt, nil
		}
		return at, nil
	}
	if err := e.repo.IncrementCounter(ctx, userID); err != nil {
		obslog.L().Warn("achievement_counter_failed", zap.String("user_id", userID), zap.Error(err))
	}
	obslog.L().Info("achievement_unlocked",
		zap.String("user_id", userID),
		zap.String("achievement_id", achievementID))
	if e.notifier != nil {
		e.notifier.AchievementUnlocked(userID, achievementID)
	}
	return at, nil
}

// EvaluateProgress runs the threshold rules and unlocks every matched
// achievement. Already-held achievements are re-unlocked harmlessly.
func (e *Engine) EvaluateProgress(ctx context.Context, userID string, facts ProgressFacts) error {
	for _, id := range EvaluateRules(facts) {
		if _, err := e.Unlock(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

// ListUnlocked returns the user's unlocks in unlock order, joined with
// catalog metadata when the id is known.
func (e *Engine) ListUnlocked(ctx context.Context, userID string) ([]arenadto.UnlockedAchievement, error) {
	rows, err := e.repo.ListUnlocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]arenadto.UnlockedAchievement, 0, len(rows))
	for _, u := range rows {
		item := arenadto.UnlockedAchievement{AchievementID: u.AchievementID, UnlockedAt: u.UnlockedAt}
		if e.catalog != nil {
			if entry, ok := e.catalog.Get(u.AchievementID); ok {
				item.Title = entry.Title
				item.Description = entry.Description
				item.Icon = entry.Icon
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Catalog exposes the static achievement definitions.
func (e *Engine) Catalog() *Catalog { return e.catalog }

package ingest

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/kapu/arena-live-go/internal/achievement"
	"github.com/kapu/arena-live-go/internal/leaderboard"
	"github.com/kapu/arena-live-go/internal/obslog"
	"github.com/kapu/arena-live-go/internal/progress"
	"github.com/kapu/arena-live-go/internal/streak"
	"go.uber.org/zap"
)

var (
	// ErrInvalidScore rejects non-finite scores before any write.
	ErrInvalidScore = errors.New("score must be a finite number")
	// ErrMissingField rejects submissions without a user or leaderboard id.
	ErrMissingField = errors.New("userId and leaderboardId are required")
)

// Fanout is the slice of the broadcaster the ingest path triggers.
type Fanout interface {
	Push(ctx context.Context, leaderboardID string) error
}

// Service is the single entry point for "a user submitted a score".
// The durable write, the gamification evaluations, and the fanout are
// independent idempotent steps; no transaction spans them.
type Service struct {
	boards   leaderboard.Repository
	progress progress.Repository
	streaks  *streak.Engine
	achieve  *achievement.Engine
	fanout   Fanout

	// side effects run inline instead of in a goroutine; tests only
	syncSideEffects bool
}

func NewService(boards leaderboard.Repository, prog progress.Repository, streaks *streak.Engine, achieve *achievement.Engine, fanout Fanout) *Service {
	return &Service{boards: boards, progress: prog, streaks: streaks, achieve: achieve, fanout: fanout}
}

// Submit validates and durably records the score, then triggers the
// streak/achievement evaluations and the subscriber fanout. Fanout or
// gamification failure never rolls back ingestion.
func (s *Service) Submit(ctx context.Context, userID, displayName, leaderboardID string, score float64) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(leaderboardID) == "" {
		return ErrMissingField
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return ErrInvalidScore
	}

	entry := &leaderboard.Entry{
		LeaderboardID: leaderboardID,
		UserID:        userID,
		DisplayName:   displayName,
		Score:         score,
		RecordedAt:    time.Now().UTC(),
	}
	if err := s.boards.UpsertScore(ctx, entry); err != nil {
		return err
	}

	if s.syncSideEffects {
		s.evaluateSideEffects(ctx, userID, score)
	} else {
		go func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.evaluateSideEffects(sctx, userID, score)
		}()
	}

	if err := s.fanout.Push(ctx, leaderboardID); err != nil {
		obslog.L().Warn("fanout_push_failed",
			zap.String("leaderboard_id", leaderboardID), zap.Error(err))
	}
	return nil
}

// evaluateSideEffects runs the best-effort gamification updates. Each
// failure is logged and swallowed; a transient engine fault never fails
// a valid submission.
func (s *Service) evaluateSideEffects(ctx context.Context, userID string, score float64) {
	if s.streaks != nil {
		if _, err := s.streaks.RecordPlay(ctx, userID); err != nil {
			obslog.L().Warn("streak_eval_failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	level := 1
	if s.progress != nil {
		p, err := s.progress.RecordSubmission(ctx, userID, score)
		if err != nil {
			obslog.L().Warn("progress_update_failed", zap.String("user_id", userID), zap.Error(err))
		} else if p != nil && p.Level > 0 {
			level = p.Level
		}
	}
	if s.achieve != nil {
		facts := achievement.ProgressFacts{Score: score, Level: level}
		if err := s.achieve.EvaluateProgress(ctx, userID, facts); err != nil {
			obslog.L().Warn("achievement_eval_failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

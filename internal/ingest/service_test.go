package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/kapu/arena-live-go/internal/achievement"
	"github.com/kapu/arena-live-go/internal/leaderboard"
	"github.com/kapu/arena-live-go/internal/progress"
	"github.com/kapu/arena-live-go/internal/streak"
)

type fakeFanout struct {
	mu     sync.Mutex
	pushes []string
	fail   bool
}

func (f *fakeFanout) Push(ctx context.Context, leaderboardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("registry unreachable")
	}
	f.pushes = append(f.pushes, leaderboardID)
	return nil
}

type fixture struct {
	svc     *Service
	boards  leaderboard.Repository
	achieve *achievement.Engine
	fanout  *fakeFanout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := achievement.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	boards := leaderboard.NewMemoryRepository()
	achieveEngine := achievement.NewEngine(achievement.NewMemoryRepository(), cat)
	streakEngine := streak.NewEngine(streak.NewMemoryRepository(), achieveEngine)
	fan := &fakeFanout{}
	svc := NewService(boards, progress.NewMemoryRepository(), streakEngine, achieveEngine, fan)
	svc.syncSideEffects = true
	return &fixture{svc: svc, boards: boards, achieve: achieveEngine, fanout: fan}
}

func TestSubmitRejectsNonFiniteScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, score := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := f.svc.Submit(ctx, "u1", "Alice", "g1", score); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("score %v: expected ErrInvalidScore, got %v", score, err)
		}
	}
	top, _ := f.boards.TopN(ctx, "g1", leaderboard.TimeframeAll, 10)
	if len(top) != 0 {
		t.Fatalf("rejected submission must perform no writes, got %+v", top)
	}
	if len(f.fanout.pushes) != 0 {
		t.Fatalf("rejected submission must not trigger fanout")
	}
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Submit(context.Background(), "", "x", "g1", 10); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if err := f.svc.Submit(context.Background(), "u1", "x", " ", 10); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestSubmitPersistsAndTriggersFanout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Submit(ctx, "u1", "Alice", "g1", 1500); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	top, err := f.boards.TopN(ctx, "g1", leaderboard.TimeframeAll, 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(top) != 1 || top[0].Score != 1500 || top[0].DisplayName != "Alice" {
		t.Fatalf("unexpected persisted entry: %+v", top)
	}
	if len(f.fanout.pushes) != 1 || f.fanout.pushes[0] != "g1" {
		t.Fatalf("expected exactly one fanout push for g1, got %v", f.fanout.pushes)
	}
}

func TestSubmitScore1500UnlocksFirstWinAndScore1000(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Submit(ctx, "u1", "Alice", "g1", 1500); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rows, err := f.achieve.ListUnlocked(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUnlocked: %v", err)
	}
	got := make(map[string]bool, len(rows))
	for _, r := range rows {
		got[r.AchievementID] = true
	}
	if !got["first_win"] || !got["score_1000"] {
		t.Fatalf("expected first_win and score_1000, got %v", got)
	}
	if got["score_10000"] {
		t.Fatalf("score_10000 must not unlock at 1500")
	}
	if got["streak_3"] {
		t.Fatalf("streak_3 must not unlock after one day of play")
	}
}

func TestFanoutFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture(t)
	f.fanout.fail = true
	ctx := context.Background()

	if err := f.svc.Submit(ctx, "u1", "Alice", "g1", 100); err != nil {
		t.Fatalf("fanout failure must never fail ingestion, got %v", err)
	}
	top, _ := f.boards.TopN(ctx, "g1", leaderboard.TimeframeAll, 10)
	if len(top) != 1 {
		t.Fatalf("score write must be durable despite fanout failure, got %+v", top)
	}
}

func TestConcurrentSubmitsAllPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			uid := fmt.Sprintf("u%03d", n)
			if err := f.svc.Submit(ctx, uid, uid, "g1", float64(n)); err != nil {
				t.Errorf("Submit(%s): %v", uid, err)
			}
		}(i)
	}
	wg.Wait()

	top, err := f.boards.TopN(ctx, "g1", leaderboard.TimeframeAll, 200)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(top) != 100 {
		t.Fatalf("expected all 100 entries in the snapshot, got %d", len(top))
	}
}

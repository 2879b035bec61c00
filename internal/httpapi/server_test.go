package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kapu/arena-live-go/internal/achievement"
	"github.com/kapu/arena-live-go/internal/leaderboard"
	"github.com/kapu/arena-live-go/internal/progress"
	"github.com/kapu/arena-live-go/internal/streak"
)

func newTestHandler(t *testing.T) (*Handler, leaderboard.Repository) {
	t.Helper()
	cat, err := achievement.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	boards := leaderboard.NewMemoryRepository()
	achieveEngine := achievement.NewEngine(achievement.NewMemoryRepository(), cat)
	streakEngine := streak.NewEngine(streak.NewMemoryRepository(), achieveEngine)
	return NewHandler(boards, progress.NewMemoryRepository(), streakEngine, achieveEngine), boards
}

func do(t *testing.T, h *Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestMissingIdentityIs401(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, p := range []string{"/api/progress", "/api/streaks", "/api/achievements"} {
		rec := do(t, h, http.MethodGet, p, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", p, rec.Code)
		}
		if decode(t, rec)["error"] == nil {
			t.Fatalf("%s: expected structured error body", p)
		}
	}
}

func TestProgressRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/api/progress", "u1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any progress, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/progress", "u1", `{"level": 12, "score": 1500}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST progress: %d %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got["level"].(float64) != 12 {
		t.Fatalf("unexpected level: %v", got)
	}

	rec = do(t, h, http.MethodGet, "/api/progress", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET progress after POST: %d", rec.Code)
	}

	// level 12 + score 1500 crosses first_win, score_1000, level_10
	rec = do(t, h, http.MethodGet, "/api/achievements", "u1", "")
	rows := decode(t, rec)["achievements"].([]any)
	if len(rows) != 3 {
		t.Fatalf("expected 3 unlocks, got %v", rows)
	}
}

func TestProgressLevelOnlyPostCountsStoredScore(t *testing.T) {
	h, _ := newTestHandler(t)

	// score arrives first, without a level: score_1000 only
	rec := do(t, h, http.MethodPost, "/api/progress", "u1", `{"score": 1500}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST score: %d %s", rec.Code, rec.Body.String())
	}

	// a later level-only post evaluates against the durable score,
	// so first_win (level>=1 and score>0) unlocks now
	rec = do(t, h, http.MethodPost, "/api/progress", "u1", `{"level": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST level: %d %s", rec.Code, rec.Body.String())
	}

	rows := decode(t, do(t, h, http.MethodGet, "/api/achievements", "u1", ""))["achievements"].([]any)
	ids := map[string]bool{}
	for _, r := range rows {
		ids[r.(map[string]any)["achievementId"].(string)] = true
	}
	if !ids["score_1000"] || !ids["first_win"] {
		t.Fatalf("expected score_1000 and first_win, got %v", ids)
	}
}

func TestProgressRejectsBadBody(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, http.MethodPost, "/api/progress", "u1", `{"level": -3}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative level, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/progress", "u1", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestStreakEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/api/streaks", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST streaks: %d", rec.Code)
	}
	got := decode(t, rec)
	if got["currentStreak"].(float64) != 1 {
		t.Fatalf("expected streak 1 after first play, got %v", got)
	}

	// same-day replay stays at 1
	rec = do(t, h, http.MethodPost, "/api/streaks", "u1", "")
	if decode(t, rec)["currentStreak"].(float64) != 1 {
		t.Fatalf("same-day replay must not increment")
	}

	rec = do(t, h, http.MethodGet, "/api/streaks", "u1", "")
	if rec.Code != http.StatusOK || decode(t, rec)["totalDaysPlayed"].(float64) != 1 {
		t.Fatalf("GET streaks: %d %s", rec.Code, rec.Body.String())
	}
}

func TestExplicitUnlockIdempotent(t *testing.T) {
	h, _ := newTestHandler(t)

	first := decode(t, do(t, h, http.MethodPost, "/api/achievements", "u1", `{"achievementId":"first_win"}`))
	second := decode(t, do(t, h, http.MethodPost, "/api/achievements", "u1", `{"achievementId":"first_win"}`))
	if first["unlockedAt"] != second["unlockedAt"] {
		t.Fatalf("expected stable unlockedAt, got %v vs %v", first["unlockedAt"], second["unlockedAt"])
	}

	rec := do(t, h, http.MethodPost, "/api/achievements", "u1", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without achievementId, got %d", rec.Code)
	}
}

func TestLeaderboardQuery(t *testing.T) {
	h, boards := newTestHandler(t)
	now := time.Now().UTC()
	seed := []*leaderboard.Entry{
		{LeaderboardID: "g1", UserID: "userA", DisplayName: "A", Score: 500, RecordedAt: now},
		{LeaderboardID: "g1", UserID: "userB", DisplayName: "B", Score: 500, RecordedAt: now.Add(time.Second)},
		{LeaderboardID: "g1", UserID: "userC", DisplayName: "C", Score: 300, RecordedAt: now},
	}
	for _, e := range seed {
		if err := boards.UpsertScore(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := do(t, h, http.MethodGet, "/api/leaderboard/g1?timeframe=all&limit=2", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET leaderboard: %d %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	entries := got["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("limit=2 should cap entries, got %d", len(entries))
	}
	top := entries[0].(map[string]any)
	if top["userId"] != "userA" || top["rank"].(float64) != 1 {
		t.Fatalf("earlier tie submission must rank first, got %v", top)
	}

	rec = do(t, h, http.MethodGet, "/api/leaderboard/g1?timeframe=yearly", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timeframe, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/leaderboard/g1?limit=zero", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

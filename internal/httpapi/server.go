package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/kapu/arena-live-go/internal/achievement"
	"github.com/kapu/arena-live-go/internal/leaderboard"
	"github.com/kapu/arena-live-go/internal/obslog"
	"github.com/kapu/arena-live-go/internal/progress"
	"github.com/kapu/arena-live-go/internal/streak"
	"github.com/kapu/arena-live-go/pkg/arenadto"
	"go.uber.org/zap"
)

const maxSnapshotLimit = 100

// Handler serves the REST collaborator surface. Request framing, CORS
// and token parsing belong to the routing layer in front; identity
// arrives as the X-User-Id header.
type Handler struct {
	boards  leaderboard.Repository
	prog    progress.Repository
	streaks *streak.Engine
	achieve *achievement.Engine
}

func NewHandler(boards leaderboard.Repository, prog progress.Repository, streaks *streak.Engine, achieve *achievement.Engine) *Handler {
	return &Handler{boards: boards, prog: prog, streaks: streaks, achieve: achieve}
}

// Router mounts all REST routes.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/progress", h.getProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", h.postProgress).Methods(http.MethodPost)
	r.HandleFunc("/api/streaks", h.getStreak).Methods(http.MethodGet)
	r.HandleFunc("/api/streaks", h.postStreak).Methods(http.MethodPost)
	r.HandleFunc("/api/achievements", h.getAchievements).Methods(http.MethodGet)
	r.HandleFunc("/api/achievements", h.postAchievement).Methods(http.MethodPost)
	r.HandleFunc("/api/leaderboard/{gameId}", h.getLeaderboard).Methods(http.MethodGet)
	return r
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	p, err := h.prog.Get(r.Context(), userID)
	if err != nil {
		internalError(w, "get_progress", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "no progress recorded")
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(p))
}

func (h *Handler) postProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	var body struct {
		Level int      `json:"level"`
		Score *float64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Level < 0 {
		writeError(w, http.StatusBadRequest, "level must not be negative")
		return
	}
	score := 0.0
	if body.Score != nil {
		score = *body.Score
	}
	p, err := h.prog.Apply(r.Context(), userID, body.Level, score)
	if err != nil {
		internalError(w, "post_progress", err)
		return
	}
	// progress thresholds may have been crossed; evaluation is idempotent.
	// Facts come from the merged row, so a level-only post still counts
	// the durable score.
	facts := achievement.ProgressFacts{Score: p.TotalScore, Level: p.Level}
	if err := h.achieve.EvaluateProgress(r.Context(), userID, facts); err != nil {
		obslog.L().Warn("progress_achievement_eval_failed", zap.String("user_id", userID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, toProgressDTO(p))
}

func (h *Handler) getStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	view, err := h.streaks.CurrentView(r.Context(), userID)
	if err != nil {
		internalError(w, "get_streak", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) postStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	if _, err := h.streaks.RecordPlay(r.Context(), userID); err != nil {
		internalError(w, "post_streak", err)
		return
	}
	view, err := h.streaks.CurrentView(r.Context(), userID)
	if err != nil {
		internalError(w, "post_streak_view", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) getAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	rows, err := h.achieve.ListUnlocked(r.Context(), userID)
	if err != nil {
		internalError(w, "get_achievements", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": rows})
}

func (h *Handler) postAchievement(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	var body struct {
		AchievementID string `json:"achievementId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.AchievementID) == "" {
		writeError(w, http.StatusBadRequest, "achievementId is required")
		return
	}
	at, err := h.achieve.Unlock(r.Context(), userID, body.AchievementID)
	if err != nil {
		internalError(w, "post_achievement", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievementId": body.AchievementID, "unlockedAt": at})
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]
	if strings.TrimSpace(gameID) == "" {
		writeError(w, http.StatusBadRequest, "gameId is required")
		return
	}
	tf, err := leaderboard.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := maxSnapshotLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}
	entries, err := h.boards.TopN(r.Context(), gameID, tf, limit)
	if err != nil {
		internalError(w, "get_leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboard.BuildSnapshot(gameID, tf, entries))
}

func toProgressDTO(p *progress.Progress) *arenadto.Progress {
	return &arenadto.Progress{
		UserID:      p.UserID,
		Level:       p.Level,
		TotalScore:  p.TotalScore,
		GamesPlayed: p.GamesPlayed,
		UpdatedAt:   p.UpdatedAt,
	}
}

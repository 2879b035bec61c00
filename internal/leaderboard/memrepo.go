package leaderboard

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memrepo is an in-memory Repository used in tests and when no DB is configured.
type memrepo struct {
	mu      sync.RWMutex
	entries map[string]map[string]*Entry // leaderboardID -> userID -> entry
}

func NewMemoryRepository() Repository {
	return &memrepo{entries: make(map[string]map[string]*Entry)}
}

func (m *memrepo) UpsertScore(ctx context.Context, e *Entry) error {
	if e == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.entries[e.LeaderboardID]
	if !ok {
		board = make(map[string]*Entry)
		m.entries[e.LeaderboardID] = board
	}
	cp := *e
	board[e.UserID] = &cp
	return nil
}

func (m *memrepo) TopN(ctx context.Context, leaderboardID string, tf Timeframe, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	start, windowed := tf.WindowStart(time.Now().UTC())

	m.mu.RLock()
	defer m.mu.RUnlock()
	board := m.entries[leaderboardID]
	items := make([]Entry, 0, len(board))
	for _, e := range board {
		if windowed && e.RecordedAt.Before(start) {
			continue
		}
		items = append(items, *e)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].RecordedAt.Before(items[j].RecordedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

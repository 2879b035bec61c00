package achievement

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memrepo is an in-memory Repository used in tests and when no DB is configured.
type memrepo struct {
	mu       sync.RWMutex
	unlocks  map[string]map[string]*Unlock // userID -> achievementID -> unlock
	counters map[string]int
}

func NewMemoryRepository() Repository {
	return &memrepo{
		unlocks:  make(map[string]map[string]*Unlock),
		counters: make(map[string]int),
	}
}

func (m *memrepo) InsertUnlock(ctx context.Context, userID, achievementID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.unlocks[userID]
	if !ok {
		byID = make(map[string]*Unlock)
		m.unlocks[userID] = byID
	}
	if _, exists := byID[achievementID]; exists {
		return false, nil
	}
	byID[achievementID] = &Unlock{UserID: userID, AchievementID: achievementID, UnlockedAt: at}
	return true, nil
}

func (m *memrepo) GetUnlock(ctx context.Context, userID, achievementID string) (*Unlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.unlocks[userID][achievementID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memrepo) ListUnlocked(ctx context.Context, userID string) ([]Unlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Unlock, 0, len(m.unlocks[userID]))
	for _, u := range m.unlocks[userID] {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.Before(out[j].UnlockedAt) })
	return out, nil
}

func (m *memrepo) IncrementCounter(ctx context.Context, userID string) error {
	m.mu.Lock()
	m.counters[userID]++
	m.mu.Unlock()
	return nil
}

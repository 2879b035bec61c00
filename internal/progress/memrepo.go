package progress

import (
	"context"
	"sync"
	"time"
)

// memrepo is an in-memory Repository used in tests and when no DB is configured.
type memrepo struct {
	mu      sync.Mutex
	records map[string]*Progress
}

func NewMemoryRepository() Repository {
	return &memrepo{records: make(map[string]*Progress)}
}

func (m *memrepo) Get(ctx context.Context, userID string) (*Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memrepo) Apply(ctx context.Context, userID string, level int, totalScore float64) (*Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[userID]
	if !ok {
		p = &Progress{UserID: userID}
		m.records[userID] = p
	}
	if level > p.Level {
		p.Level = level
	}
	if totalScore > p.TotalScore {
		p.TotalScore = totalScore
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (m *memrepo) RecordSubmission(ctx context.Context, userID string, score float64) (*Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[userID]
	if !ok {
		p = &Progress{UserID: userID, Level: 1}
		m.records[userID] = p
	}
	p.TotalScore += score
	p.GamesPlayed++
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

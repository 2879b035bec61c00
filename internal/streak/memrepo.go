package streak

import (
	"context"
	"sync"
)

// memrepo is an in-memory Repository used in tests and when no DB is configured.
type memrepo struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryRepository() Repository {
	return &memrepo{records: make(map[string]*Record)}
}

func (m *memrepo) Get(ctx context.Context, userID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	if rec.LastPlayDate != nil {
		d := *rec.LastPlayDate
		cp.LastPlayDate = &d
	}
	return &cp, nil
}

func (m *memrepo) Upsert(ctx context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	if rec.LastPlayDate != nil {
		d := *rec.LastPlayDate
		cp.LastPlayDate = &d
	}
	m.records[rec.UserID] = &cp
	return nil
}

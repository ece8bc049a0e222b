package database

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds the in-memory journal.
const DefaultMemoryCapacity = 500

// MemoryJournal keeps the newest outcomes in memory. Oldest entries are
// dropped once capacity is reached.
type MemoryJournal struct {
	mu       sync.RWMutex
	records  []OutcomeRecord
	capacity int
}

// NewMemoryJournal creates an empty journal holding at most capacity records.
func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryJournal{capacity: capacity}
}

func (m *MemoryJournal) Record(_ context.Context, rec OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if over := len(m.records) - m.capacity; over > 0 {
		m.records = append([]OutcomeRecord(nil), m.records[over:]...)
	}
	return nil
}

func (m *MemoryJournal) Recent(_ context.Context, limit int) ([]OutcomeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]OutcomeRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryJournal) CountByState(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, r := range m.records {
		counts[r.State]++
	}
	return counts, nil
}

// Len returns the number of stored records.
func (m *MemoryJournal) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

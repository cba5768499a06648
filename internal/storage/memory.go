package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/bobmcallan/tally/internal/models"
)

// MemoryStore is a LedgerStore that lives only as long as the process.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]models.Position
}

// NewMemoryStore creates an empty in-memory ledger store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]models.Position)}
}

// LoadAll returns every position ordered by ticker
func (s *MemoryStore) LoadAll(_ context.Context) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPositions(s.rows), nil
}

// Upsert replaces the position for p.Ticker
func (s *MemoryStore) Upsert(_ context.Context, p models.Position) error {
	s.mu.Lock()
	s.rows[p.Ticker] = p
	s.mu.Unlock()
	return nil
}

// Delete removes ticker if present
func (s *MemoryStore) Delete(_ context.Context, ticker string) error {
	s.mu.Lock()
	delete(s.rows, ticker)
	s.mu.Unlock()
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func sortedPositions(rows map[string]models.Position) []models.Position {
	out := make([]models.Position, 0, len(rows))
	for _, p := range rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

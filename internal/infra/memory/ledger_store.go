package memory

import (
	"context"
	"sync"

	"vocab-quiz-service/internal/domain"
)

// LedgerStore keeps score entries per user in memory.
type LedgerStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.ScoreEntry
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{entries: make(map[string][]domain.ScoreEntry)}
}

func (s *LedgerStore) Append(_ context.Context, userID string, entry domain.ScoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = append(s.entries[userID], entry)
	return nil
}

func (s *LedgerStore) List(_ context.Context, userID string) ([]domain.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ScoreEntry(nil), s.entries[userID]...), nil
}

func (s *LedgerStore) DeleteAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

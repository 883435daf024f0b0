package memory

import (
	"context"
	"sync"

	"vocab-quiz-service/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore.
type ProgressStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		snapshots: make(map[string]domain.Snapshot),
	}
}

func (s *ProgressStore) Load(_ context.Context, topicID string) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[topicID]
	if !ok {
		return domain.Snapshot{}, false, nil
	}
	return snap.Clone(), true, nil
}

func (s *ProgressStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.TopicID] = snap.Clone()
	return nil
}

func (s *ProgressStore) Clear(_ context.Context, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, topicID)
	return nil
}

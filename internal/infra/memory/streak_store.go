package memory

import (
	"context"
	"sync"

	"vocab-quiz-service/internal/domain"
)

// StreakStore keeps streak state per user in memory.
type StreakStore struct {
	mu     sync.RWMutex
	states map[string]domain.StreakState
}

func NewStreakStore() *StreakStore {
	return &StreakStore{states: make(map[string]domain.StreakState)}
}

func (s *StreakStore) LoadStreak(_ context.Context, userID string) (domain.StreakState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStreak(s.states[userID]), nil
}

func (s *StreakStore) SaveStreak(_ context.Context, userID string, state domain.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = copyStreak(state)
	return nil
}

func copyStreak(state domain.StreakState) domain.StreakState {
	if state.LastSuccessDay != nil {
		day := *state.LastSuccessDay
		state.LastSuccessDay = &day
	}
	return state
}

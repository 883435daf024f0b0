package memory

import (
	"context"
	"sync"

	"vocab-quiz-service/internal/domain"
)

// ResultSink records completed-session summaries (useful for tests/demos).
type ResultSink struct {
	mu        sync.Mutex
	summaries []domain.SessionSummary
}

func NewResultSink() *ResultSink {
	return &ResultSink{}
}

func (s *ResultSink) Deliver(_ context.Context, summary domain.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *ResultSink) Summaries() []domain.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SessionSummary(nil), s.summaries...)
}

// Leaderboard records every published streak snapshot.
type Leaderboard struct {
	mu        sync.Mutex
	snapshots []domain.LeaderboardSnapshot
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{}
}

func (l *Leaderboard) PublishStreak(_ context.Context, snap domain.LeaderboardSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, snap)
	return nil
}

func (l *Leaderboard) Snapshots() []domain.LeaderboardSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.LeaderboardSnapshot(nil), l.snapshots...)
}

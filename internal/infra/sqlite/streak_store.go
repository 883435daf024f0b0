package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"vocab-quiz-service/internal/domain"
)

type streakRow struct {
	Current        int           `db:"current_streak"`
	Best           int           `db:"best_streak"`
	LastSuccessDay sql.NullInt64 `db:"last_success_day"`
}

// StreakStore keeps one streak row per user.
type StreakStore struct {
	db *sqlx.DB
}

func NewStreakStore(db *sqlx.DB) *StreakStore {
	return &StreakStore{db: db}
}

func (s *StreakStore) LoadStreak(ctx context.Context, userID string) (domain.StreakState, error) {
	var row streakRow
	err := s.db.GetContext(ctx, &row,
		`SELECT current_streak, best_streak, last_success_day FROM streaks WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StreakState{}, nil
	}
	if err != nil {
		return domain.StreakState{}, fmt.Errorf("load streak: %w", err)
	}
	state := domain.StreakState{Current: row.Current, Best: row.Best}
	if row.LastSuccessDay.Valid {
		day := time.Unix(0, row.LastSuccessDay.Int64)
		state.LastSuccessDay = &day
	}
	return state, nil
}

func (s *StreakStore) SaveStreak(ctx context.Context, userID string, state domain.StreakState) error {
	var last sql.NullInt64
	if state.LastSuccessDay != nil {
		last = sql.NullInt64{Int64: state.LastSuccessDay.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streaks (user_id, current_streak, best_streak, last_success_day) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			best_streak = excluded.best_streak,
			last_success_day = excluded.last_success_day`,
		userID, state.Current, state.Best, last)
	if err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"vocab-quiz-service/internal/domain"
)

type streakRow struct {
	bun.BaseModel `bun:"table:streaks"`

	UserID         string     `bun:"user_id,pk"`
	CurrentStreak  int        `bun:"current_streak"`
	BestStreak     int        `bun:"best_streak"`
	LastSuccessDay *time.Time `bun:"last_success_day"`
	UpdatedAt      time.Time  `bun:"updated_at"`
}

// StreakStore keeps one streak row per user.
type StreakStore struct {
	db *bun.DB
}

func NewStreakStore(db *bun.DB) *StreakStore {
	return &StreakStore{db: db}
}

func (s *StreakStore) LoadStreak(ctx context.Context, userID string) (domain.StreakState, error) {
	var row streakRow
	err := s.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StreakState{}, nil
	}
	if err != nil {
		return domain.StreakState{}, fmt.Errorf("load streak: %w", err)
	}
	return domain.StreakState{
		Current:        row.CurrentStreak,
		Best:           row.BestStreak,
		LastSuccessDay: row.LastSuccessDay,
	}, nil
}

func (s *StreakStore) SaveStreak(ctx context.Context, userID string, state domain.StreakState) error {
	row := streakRow{
		UserID:         userID,
		CurrentStreak:  state.Current,
		BestStreak:     state.Best,
		LastSuccessDay: state.LastSuccessDay,
		UpdatedAt:      time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("current_streak = EXCLUDED.current_streak").
		Set("best_streak = EXCLUDED.best_streak").
		Set("last_success_day = EXCLUDED.last_success_day").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"vocab-quiz-service/internal/domain"
)

type scoreEntryRow struct {
	bun.BaseModel `bun:"table:score_entries"`

	ID         string    `bun:"id,pk"`
	UserID     string    `bun:"user_id"`
	RecordedAt time.Time `bun:"recorded_at"`
	Score      int       `bun:"score"`
	OutOf      int       `bun:"out_of"`
}

// LedgerStore keeps score entries in the score_entries table.
type LedgerStore struct {
	db *bun.DB
}

func NewLedgerStore(db *bun.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Append(ctx context.Context, userID string, entry domain.ScoreEntry) error {
	row := scoreEntryRow{
		ID:         entry.ID,
		UserID:     userID,
		RecordedAt: entry.Timestamp,
		Score:      entry.Score,
		OutOf:      entry.OutOf,
	}
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("append score entry: %w", err)
	}
	return nil
}

func (s *LedgerStore) List(ctx context.Context, userID string) ([]domain.ScoreEntry, error) {
	var rows []scoreEntryRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("recorded_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list score entries: %w", err)
	}
	entries := make([]domain.ScoreEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.ScoreEntry{ID: r.ID, Timestamp: r.RecordedAt, Score: r.Score, OutOf: r.OutOf})
	}
	return entries, nil
}

func (s *LedgerStore) DeleteAll(ctx context.Context, userID string) error {
	_, err := s.db.NewDelete().Model((*scoreEntryRow)(nil)).Where("user_id = ?", userID).Exec(ctx)
	return err
}

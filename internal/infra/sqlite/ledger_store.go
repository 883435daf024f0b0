package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"vocab-quiz-service/internal/domain"
)

type scoreEntryRow struct {
	ID         string `db:"id"`
	RecordedAt int64  `db:"recorded_at"`
	Score      int    `db:"score"`
	OutOf      int    `db:"out_of"`
}

// LedgerStore keeps score entries with their timestamp in unix nanoseconds.
type LedgerStore struct {
	db *sqlx.DB
}

func NewLedgerStore(db *sqlx.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Append(ctx context.Context, userID string, entry domain.ScoreEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO score_entries (id, user_id, recorded_at, score, out_of) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, userID, entry.Timestamp.UnixNano(), entry.Score, entry.OutOf)
	if err != nil {
		return fmt.Errorf("append score entry: %w", err)
	}
	return nil
}

func (s *LedgerStore) List(ctx context.Context, userID string) ([]domain.ScoreEntry, error) {
	var rows []scoreEntryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, recorded_at, score, out_of FROM score_entries
		WHERE user_id = ? ORDER BY recorded_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list score entries: %w", err)
	}
	entries := make([]domain.ScoreEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.ScoreEntry{
			ID:        r.ID,
			Timestamp: time.Unix(0, r.RecordedAt),
			Score:     r.Score,
			OutOf:     r.OutOf,
		})
	}
	return entries, nil
}

func (s *LedgerStore) DeleteAll(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM score_entries WHERE user_id = ?`, userID)
	return err
}

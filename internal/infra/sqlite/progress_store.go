package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"vocab-quiz-service/internal/domain"
)

// ProgressStore keeps one JSON snapshot per (user, topic).
type ProgressStore struct {
	db     *sqlx.DB
	userID string
}

func NewProgressStore(db *sqlx.DB, userID string) *ProgressStore {
	return &ProgressStore{db: db, userID: userID}
}

func (s *ProgressStore) Load(ctx context.Context, topicID string) (domain.Snapshot, bool, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw,
		`SELECT snapshot FROM progress WHERE user_id = ? AND topic_id = ?`, s.userID, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("load progress %s: %w", topicID, err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("%w: %v", domain.ErrCorruptPersistedState, err)
	}
	return snap, true, nil
}

func (s *ProgressStore) Save(ctx context.Context, snap domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress (user_id, topic_id, snapshot, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, topic_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		s.userID, snap.TopicID, string(raw), time.Now().UnixNano())
	return err
}

func (s *ProgressStore) Clear(ctx context.Context, topicID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE user_id = ? AND topic_id = ?`, s.userID, topicID)
	return err
}

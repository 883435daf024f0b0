package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vocab-quiz-service/internal/domain"
)

// ProgressStore keeps quiz snapshots as JSON strings: SET progress:{userID}:{topicID}.
// A zero ttl keeps snapshots until they are cleared.
type ProgressStore struct {
	client *redis.Client
	userID string
	ttl    time.Duration
}

func NewProgressStore(client *redis.Client, userID string, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, userID: userID, ttl: ttl}
}

func (s *ProgressStore) Load(ctx context.Context, topicID string) (domain.Snapshot, bool, error) {
	raw, err := s.client.Get(ctx, s.key(topicID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("get progress %s: %w", topicID, err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("%w: %v", domain.ErrCorruptPersistedState, err)
	}
	return snap, true, nil
}

func (s *ProgressStore) Save(ctx context.Context, snap domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(snap.TopicID), raw, s.ttl).Err()
}

func (s *ProgressStore) Clear(ctx context.Context, topicID string) error {
	return s.client.Del(ctx, s.key(topicID)).Err()
}

func (s *ProgressStore) key(topicID string) string {
	return "progress:" + s.userID + ":" + topicID
}

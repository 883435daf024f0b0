package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"vocab-quiz-service/internal/domain"
)

// VocabularyLoader fetches topic vocabulary from a backing store (Postgres, workbook).
type VocabularyLoader interface {
	LoadVocabulary(ctx context.Context, key domain.TopicKey) ([]domain.VocabularyItem, error)
}

// VocabularyRepository caches topic vocabulary in Redis and falls back to a loader on cache miss.
// Records are stored as a JSON array: SET vocab:{topicID} [...] EX ttl
type VocabularyRepository struct {
	client *redis.Client
	loader VocabularyLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewVocabularyRepository(client *redis.Client, loader VocabularyLoader, ttl time.Duration) *VocabularyRepository {
	return &VocabularyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *VocabularyRepository) GetVocabulary(ctx context.Context, key domain.TopicKey) ([]domain.VocabularyItem, error) {
	cacheKey := r.key(key)
	if items, ok := r.cached(ctx, cacheKey); ok {
		return items, nil
	}

	result, err, _ := r.sf.Do(cacheKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if items, ok := r.cached(ctx, cacheKey); ok {
			return items, nil
		}

		items, err := r.loader.LoadVocabulary(ctx, key)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(items); err == nil {
			// best-effort: a failed cache fill only costs a reload
			_ = r.client.Set(ctx, cacheKey, raw, r.ttlWithJitter()).Err()
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.VocabularyItem(nil), result.([]domain.VocabularyItem)...), nil
}

// Invalidate drops the cached vocabulary of a topic, e.g. after an import.
func (r *VocabularyRepository) Invalidate(ctx context.Context, key domain.TopicKey) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *VocabularyRepository) cached(ctx context.Context, cacheKey string) ([]domain.VocabularyItem, bool) {
	raw, err := r.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var items []domain.VocabularyItem
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	return items, true
}

func (r *VocabularyRepository) key(key domain.TopicKey) string {
	return "vocab:" + key.ID()
}

func (r *VocabularyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

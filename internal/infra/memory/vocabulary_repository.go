package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"vocab-quiz-service/internal/domain"
)

// VocabularyLoader fetches a topic's vocabulary from a backing store (workbook, Postgres).
type VocabularyLoader interface {
	LoadVocabulary(ctx context.Context, key domain.TopicKey) ([]domain.VocabularyItem, error)
}

// VocabularyRepository caches topic vocabularies with TTL to avoid repeated loads.
type VocabularyRepository struct {
	loader VocabularyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedVocabulary
}

type cachedVocabulary struct {
	items     []domain.VocabularyItem
	expiresAt time.Time
}

func NewVocabularyRepository(loader VocabularyLoader, ttl time.Duration) *VocabularyRepository {
	return &VocabularyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedVocabulary),
	}
}

func (r *VocabularyRepository) GetVocabulary(ctx context.Context, key domain.TopicKey) ([]domain.VocabularyItem, error) {
	id := key.ID()
	if items, ok := r.cached(id); ok {
		return items, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		if items, ok := r.cached(id); ok {
			return items, nil
		}

		items, err := r.loader.LoadVocabulary(ctx, key)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[id] = cachedVocabulary{
			items:     items,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(result.([]domain.VocabularyItem)), nil
}

func (r *VocabularyRepository) cached(id string) ([]domain.VocabularyItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[id]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return clone(entry.items), true
}

func (r *VocabularyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticVocabularyLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticVocabularyLoader struct {
	topics map[string][]domain.VocabularyItem
}

func NewStaticVocabularyLoader(topics map[domain.TopicKey][]domain.VocabularyItem) *StaticVocabularyLoader {
	byID := make(map[string][]domain.VocabularyItem, len(topics))
	for key, items := range topics {
		byID[key.ID()] = items
	}
	return &StaticVocabularyLoader{topics: byID}
}

func (l *StaticVocabularyLoader) LoadVocabulary(_ context.Context, key domain.TopicKey) ([]domain.VocabularyItem, error) {
	if items, ok := l.topics[key.ID()]; ok {
		return clone(items), nil
	}
	return nil, domain.ErrTopicNotFound
}

func clone(items []domain.VocabularyItem) []domain.VocabularyItem {
	return append([]domain.VocabularyItem(nil), items...)
}

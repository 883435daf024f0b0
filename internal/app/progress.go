package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vocab-quiz-service/internal/domain"
)

// ProgressStore abstracts where quiz snapshots are kept (in-memory, Redis, SQLite).
type ProgressStore interface {
	Load(ctx context.Context, topicID string) (domain.Snapshot, bool, error)
	Save(ctx context.Context, snap domain.Snapshot) error
	Clear(ctx context.Context, topicID string) error
}

// ProgressTracker fronts a ProgressStore. The snapshots it has seen in this process
// are authoritative; writes reach the store asynchronously and in order.
type ProgressTracker struct {
	store     ProgressStore
	log       logrus.FieldLogger
	persister *persister

	mu    sync.RWMutex
	known map[string]*domain.Snapshot // nil value: cleared in this process
}

// NewProgressTracker wires a tracker around store.
func NewProgressTracker(store ProgressStore, log logrus.FieldLogger, writeTimeout time.Duration) *ProgressTracker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ProgressTracker{
		store:     store,
		log:       log,
		persister: newPersister(log.WithField("component", "progress"), writeTimeout),
		known:     make(map[string]*domain.Snapshot),
	}
}

// Load returns the snapshot for topicID. A snapshot that fails validation is
// discarded and reported as absent.
func (t *ProgressTracker) Load(ctx context.Context, topicID string) (domain.Snapshot, bool, error) {
	t.mu.RLock()
	snap, seen := t.known[topicID]
	t.mu.RUnlock()
	if seen {
		if snap == nil {
			return domain.Snapshot{}, false, nil
		}
		return snap.Clone(), true, nil
	}

	loaded, ok, err := t.store.Load(ctx, topicID)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptPersistedState) {
			t.discard(topicID, err)
			return domain.Snapshot{}, false, nil
		}
		return domain.Snapshot{}, false, err
	}
	if !ok {
		return domain.Snapshot{}, false, nil
	}
	if err := loaded.Validate(); err != nil {
		t.discard(topicID, err)
		return domain.Snapshot{}, false, nil
	}
	if loaded.TopicID != topicID {
		t.discard(topicID, domain.ErrCorruptPersistedState)
		return domain.Snapshot{}, false, nil
	}

	t.mu.Lock()
	t.known[topicID] = &loaded
	t.mu.Unlock()
	return loaded.Clone(), true, nil
}

// Save records snap and schedules the store write.
func (t *ProgressTracker) Save(snap domain.Snapshot) {
	snap = snap.Clone()
	t.mu.Lock()
	t.known[snap.TopicID] = &snap
	t.mu.Unlock()

	t.persister.submit("save", snap.TopicID, func(ctx context.Context) error {
		return t.store.Save(ctx, snap)
	})
}

// Clear forgets the snapshot of topicID and schedules its removal from the store.
func (t *ProgressTracker) Clear(topicID string) {
	t.mu.Lock()
	t.known[topicID] = nil
	t.mu.Unlock()

	t.persister.submit("clear", topicID, func(ctx context.Context) error {
		return t.store.Clear(ctx, topicID)
	})
}

// Flush waits for every scheduled write to finish.
func (t *ProgressTracker) Flush() {
	t.persister.flush()
}

// Close drains pending writes and stops the background writer.
func (t *ProgressTracker) Close() {
	t.persister.close()
}

func (t *ProgressTracker) discard(topicID string, reason error) {
	t.log.WithField("topic_id", topicID).WithError(reason).Warn("discarding corrupt quiz snapshot")
	t.Clear(topicID)
}

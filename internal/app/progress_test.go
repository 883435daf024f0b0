package app

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"vocab-quiz-service/internal/domain"
	"vocab-quiz-service/internal/infra/memory"
)

func TestProgressTrackerWritesThrough(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProgressStore()
	tracker := NewProgressTracker(store, nil, 0)
	defer tracker.Close()

	snap := mustSession(t, mcqItems(4)).Snapshot()
	tracker.Save(snap)
	tracker.Flush()

	stored, ok, err := store.Load(ctx, snap.TopicID)
	if err != nil || !ok {
		t.Fatalf("expected stored snapshot, got ok=%v err=%v", ok, err)
	}
	if stored.TopicID != snap.TopicID || len(stored.Items) != 4 {
		t.Fatalf("unexpected stored snapshot %+v", stored)
	}

	tracker.Clear(snap.TopicID)
	if _, ok, _ := tracker.Load(ctx, snap.TopicID); ok {
		t.Fatalf("cleared snapshot still visible")
	}
	tracker.Flush()
	if _, ok, _ := store.Load(ctx, snap.TopicID); ok {
		t.Fatalf("cleared snapshot still stored")
	}
}

func TestProgressTrackerDiscardsCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProgressStore()
	corrupt := domain.Snapshot{TopicID: "folder/verbs", Cursor: 9, Items: mcqItems(2)}
	if err := store.Save(ctx, corrupt); err != nil {
		t.Fatalf("seed: %v", err)
	}
	log, hook := logtest.NewNullLogger()
	tracker := NewProgressTracker(store, log, 0)
	defer tracker.Close()

	_, ok, err := tracker.Load(ctx, corrupt.TopicID)
	if err != nil || ok {
		t.Fatalf("expected corrupt snapshot to be treated as absent, got ok=%v err=%v", ok, err)
	}
	tracker.Flush()
	if _, ok, _ := store.Load(ctx, corrupt.TopicID); ok {
		t.Fatalf("corrupt snapshot was not cleared from the store")
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning to be logged")
	}
}

func TestProgressTrackerDiscardsMismatchedTopic(t *testing.T) {
	ctx := context.Background()
	snap := mustSession(t, mcqItems(3)).Snapshot()
	store := &keyedProgressStore{ProgressStore: memory.NewProgressStore(), snap: snap}
	tracker := NewProgressTracker(store, nil, 0)
	defer tracker.Close()

	if _, ok, err := tracker.Load(ctx, "folder/other"); ok || err != nil {
		t.Fatalf("expected mismatched snapshot to be discarded, got ok=%v err=%v", ok, err)
	}
}

func TestProgressTrackerSurvivesStoreFailures(t *testing.T) {
	ctx := context.Background()
	log, hook := logtest.NewNullLogger()
	tracker := NewProgressTracker(failingProgressStore{}, log, 0)
	defer tracker.Close()

	snap := mustSession(t, mcqItems(4)).Snapshot()
	tracker.Save(snap)
	tracker.Flush()

	got, ok, err := tracker.Load(ctx, snap.TopicID)
	if err != nil || !ok || got.TopicID != snap.TopicID {
		t.Fatalf("expected in-memory snapshot, got ok=%v err=%v", ok, err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected the failed write to be logged")
	}
	logged, _ := entry.Data[logrus.ErrorKey].(error)
	if !errors.Is(logged, domain.ErrStoreWriteFailure) {
		t.Fatalf("expected ErrStoreWriteFailure, got %v", entry.Data[logrus.ErrorKey])
	}
}

func TestProgressTrackerPropagatesReadErrors(t *testing.T) {
	tracker := NewProgressTracker(failingProgressStore{}, nil, 0)
	defer tracker.Close()
	if _, _, err := tracker.Load(context.Background(), "folder/x"); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}

var errStoreDown = errors.New("store down")

type failingProgressStore struct{}

func (failingProgressStore) Load(context.Context, string) (domain.Snapshot, bool, error) {
	return domain.Snapshot{}, false, errStoreDown
}

func (failingProgressStore) Save(context.Context, domain.Snapshot) error { return errStoreDown }

func (failingProgressStore) Clear(context.Context, string) error { return errStoreDown }

// keyedProgressStore answers every lookup with the same snapshot.
type keyedProgressStore struct {
	*memory.ProgressStore
	snap domain.Snapshot
}

func (s *keyedProgressStore) Load(context.Context, string) (domain.Snapshot, bool, error) {
	return s.snap.Clone(), true, nil
}

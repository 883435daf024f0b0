package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"vocab-quiz-service/internal/domain"
)

// LedgerStore persists a user's append-only score log.
type LedgerStore interface {
	Append(ctx context.Context, userID string, entry domain.ScoreEntry) error
	List(ctx context.Context, userID string) ([]domain.ScoreEntry, error)
	DeleteAll(ctx context.Context, userID string) error
}

// LedgerOptions tunes calendar handling of a ScoreLedger.
type LedgerOptions struct {
	Location     *time.Location
	WeekStart    time.Weekday
	Now          func() time.Time
	WriteTimeout time.Duration
}

// ScoreLedger is the per-user append-only log of quiz scores.
type ScoreLedger struct {
	store     LedgerStore
	userID    string
	loc       *time.Location
	weekStart time.Weekday
	now       func() time.Time
	log       logrus.FieldLogger
	persister *persister

	mu      sync.RWMutex
	loaded  bool
	entries []domain.ScoreEntry
}

// NewScoreLedger builds a ledger for userID.
func NewScoreLedger(store LedgerStore, userID string, log logrus.FieldLogger, opts LedgerOptions) *ScoreLedger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log = log.WithFields(logrus.Fields{"component": "ledger", "user_id": userID})
	return &ScoreLedger{
		store:     store,
		userID:    userID,
		loc:       opts.Location,
		weekStart: opts.WeekStart,
		now:       opts.Now,
		log:       log,
		persister: newPersister(log, opts.WriteTimeout),
	}
}

// Load hydrates the in-memory log from the store. It is a no-op once loaded.
func (l *ScoreLedger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil
	}
	entries, err := l.store.List(ctx, l.userID)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	// entries recorded before hydration stay after the stored ones; those the
	// persister already wrote are in both lists
	stored := lo.SliceToMap(entries, func(e domain.ScoreEntry) (string, struct{}) { return e.ID, struct{}{} })
	l.entries = append(entries, lo.Reject(l.entries, func(e domain.ScoreEntry, _ int) bool {
		_, ok := stored[e.ID]
		return ok
	})...)
	l.loaded = true
	return nil
}

// Record appends an entry stamped with the current time.
func (l *ScoreLedger) Record(score, outOf int) domain.ScoreEntry {
	entry := domain.ScoreEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Score:     score,
		OutOf:     outOf,
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.persister.submit("append", entry.ID, func(ctx context.Context) error {
		return l.store.Append(ctx, l.userID, entry)
	})
	return entry
}

// Entries returns a copy of the log, oldest first.
func (l *ScoreLedger) Entries() []domain.ScoreEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.ScoreEntry(nil), l.entries...)
}

// TodayTotal sums the scores recorded since the start of the current local day.
func (l *ScoreLedger) TodayTotal() int {
	start := StartOfDay(l.now(), l.loc)
	end := start.AddDate(0, 0, 1)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.SumBy(l.inRange(start, end), func(e domain.ScoreEntry) int { return e.Score })
}

// Aggregate returns r.Count buckets, oldest first, the last one anchored at the
// start of the current local day, week or month.
func (l *ScoreLedger) Aggregate(r domain.Range) ([]domain.Bucket, error) {
	if r.Count <= 0 {
		return nil, fmt.Errorf("aggregate: bucket count must be positive, got %d", r.Count)
	}
	step, anchor, err := l.bucketing(r.Kind)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	buckets := make([]domain.Bucket, 0, r.Count)
	for i := r.Count - 1; i >= 0; i-- {
		start := step(anchor, -i)
		end := step(start, 1)
		in := l.inRange(start, end)
		b := domain.Bucket{
			Start: start,
			End:   end,
			Score: lo.SumBy(in, func(e domain.ScoreEntry) int { return e.Score }),
			OutOf: lo.SumBy(in, func(e domain.ScoreEntry) int { return e.OutOf }),
		}
		if b.OutOf > 0 {
			b.Percent = float64(b.Score) / float64(b.OutOf) * 100
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

// ClearAll empties the ledger, in memory and in the store.
func (l *ScoreLedger) ClearAll() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()

	l.persister.submit("delete_all", l.userID, func(ctx context.Context) error {
		return l.store.DeleteAll(ctx, l.userID)
	})
}

// Flush waits for every scheduled write to finish.
func (l *ScoreLedger) Flush() {
	l.persister.flush()
}

// Close drains pending writes and stops the background writer.
func (l *ScoreLedger) Close() {
	l.persister.close()
}

func (l *ScoreLedger) inRange(start, end time.Time) []domain.ScoreEntry {
	return lo.Filter(l.entries, func(e domain.ScoreEntry, _ int) bool {
		return !e.Timestamp.Before(start) && e.Timestamp.Before(end)
	})
}

type stepFunc func(t time.Time, n int) time.Time

func (l *ScoreLedger) bucketing(kind domain.RangeKind) (stepFunc, time.Time, error) {
	now := l.now()
	switch kind {
	case domain.RangeDaily:
		return func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }, StartOfDay(now, l.loc), nil
	case domain.RangeWeekly:
		return func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }, StartOfWeek(now, l.loc, l.weekStart), nil
	case domain.RangeMonthly:
		return func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) }, StartOfMonth(now, l.loc), nil
	default:
		return nil, time.Time{}, fmt.Errorf("aggregate: unknown range kind %q", kind)
	}
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns local midnight of the most recent weekStart on or before t.
func StartOfWeek(t time.Time, loc *time.Location, weekStart time.Weekday) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns local midnight of the first day of t's month.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

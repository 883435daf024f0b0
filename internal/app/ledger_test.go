package app

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"vocab-quiz-service/internal/domain"
	"vocab-quiz-service/internal/infra/memory"
)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func day(month time.Month, d, hour int) time.Time {
	return time.Date(2024, month, d, hour, 0, 0, 0, time.UTC)
}

func seededLedger(t *testing.T, store LedgerStore, weekStart time.Weekday) (*ScoreLedger, *clock) {
	t.Helper()
	clk := newClock(day(time.February, 28, 12))
	ledger := NewScoreLedger(store, "u1", nil, LedgerOptions{
		Location:  time.UTC,
		WeekStart: weekStart,
		Now:       clk.Now,
	})
	t.Cleanup(ledger.Close)

	ledger.Record(2, 4)
	clk.Set(day(time.March, 4, 10))
	ledger.Record(3, 5)
	clk.Set(day(time.March, 6, 8))
	ledger.Record(4, 5)
	clk.Set(day(time.March, 6, 14))
	ledger.Record(5, 5)
	clk.Set(day(time.March, 6, 15))
	return ledger, clk
}

func TestLedgerDailyBuckets(t *testing.T) {
	ledger, _ := seededLedger(t, memory.NewLedgerStore(), time.Monday)

	buckets, err := ledger.Aggregate(domain.Range{Kind: domain.RangeDaily, Count: 3})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	want := []struct {
		start   time.Time
		score   int
		outOf   int
		percent float64
	}{
		{day(time.March, 4, 0), 3, 5, 60},
		{day(time.March, 5, 0), 0, 0, 0},
		{day(time.March, 6, 0), 9, 10, 90},
	}
	if len(buckets) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(buckets))
	}
	for i, w := range want {
		b := buckets[i]
		if !b.Start.Equal(w.start) || b.Score != w.score || b.OutOf != w.outOf || math.Abs(b.Percent-w.percent) > 1e-9 {
			t.Fatalf("bucket %d: got %+v, want %+v", i, b, w)
		}
		if !b.End.Equal(w.start.AddDate(0, 0, 1)) {
			t.Fatalf("bucket %d: unexpected end %v", i, b.End)
		}
	}
	if total := ledger.TodayTotal(); total != 9 {
		t.Fatalf("expected today total 9, got %d", total)
	}
}

func TestLedgerWeeklyBucketsHonourWeekStart(t *testing.T) {
	tests := []struct {
		name      string
		weekStart time.Weekday
		starts    []time.Time
		scores    []int
	}{
		{"monday", time.Monday, []time.Time{day(time.February, 26, 0), day(time.March, 4, 0)}, []int{2, 12}},
		{"sunday", time.Sunday, []time.Time{day(time.February, 25, 0), day(time.March, 3, 0)}, []int{2, 12}},
		{"thursday", time.Thursday, []time.Time{day(time.February, 22, 0), day(time.February, 29, 0)}, []int{2, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, _ := seededLedger(t, memory.NewLedgerStore(), tt.weekStart)
			buckets, err := ledger.Aggregate(domain.Range{Kind: domain.RangeWeekly, Count: 2})
			if err != nil {
				t.Fatalf("aggregate: %v", err)
			}
			for i, b := range buckets {
				if !b.Start.Equal(tt.starts[i]) || b.Score != tt.scores[i] {
					t.Fatalf("bucket %d: got start %v score %d", i, b.Start, b.Score)
				}
			}
		})
	}
}

func TestLedgerMonthlyBuckets(t *testing.T) {
	ledger, _ := seededLedger(t, memory.NewLedgerStore(), time.Monday)
	buckets, err := ledger.Aggregate(domain.Range{Kind: domain.RangeMonthly, Count: 3})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	if !buckets[0].Start.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) || buckets[0].OutOf != 0 {
		t.Fatalf("unexpected january bucket %+v", buckets[0])
	}
	if buckets[1].Score != 2 || buckets[1].OutOf != 4 || math.Abs(buckets[1].Percent-50) > 1e-9 {
		t.Fatalf("unexpected february bucket %+v", buckets[1])
	}
	if buckets[2].Score != 12 || buckets[2].OutOf != 15 || math.Abs(buckets[2].Percent-80) > 1e-9 {
		t.Fatalf("unexpected march bucket %+v", buckets[2])
	}
}

func TestLedgerRejectsBadRanges(t *testing.T) {
	ledger := NewScoreLedger(memory.NewLedgerStore(), "u1", nil, LedgerOptions{})
	defer ledger.Close()
	if _, err := ledger.Aggregate(domain.Range{Kind: domain.RangeDaily}); err == nil {
		t.Fatalf("expected error for zero count")
	}
	if _, err := ledger.Aggregate(domain.Range{Kind: "yearly", Count: 1}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestLedgerPersistsAndClears(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	ledger, clk := seededLedger(t, store, time.Monday)
	ledger.Flush()

	reloaded := NewScoreLedger(store, "u1", nil, LedgerOptions{Location: time.UTC, Now: clk.Now})
	defer reloaded.Close()
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(reloaded.Entries()); got != 4 {
		t.Fatalf("expected 4 entries after reload, got %d", got)
	}
	if reloaded.TodayTotal() != 9 {
		t.Fatalf("expected today total 9 after reload, got %d", reloaded.TodayTotal())
	}

	ledger.ClearAll()
	if ledger.TodayTotal() != 0 || len(ledger.Entries()) != 0 {
		t.Fatalf("ledger not cleared")
	}
	ledger.Flush()
	stored, err := store.List(ctx, "u1")
	if err != nil || len(stored) != 0 {
		t.Fatalf("expected empty store, got %d entries (err %v)", len(stored), err)
	}
}

func TestLedgerLoadAfterRecordKeepsEntriesOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	older := domain.ScoreEntry{ID: "older", Timestamp: day(time.February, 1, 9), Score: 1, OutOf: 2}
	if err := store.Append(ctx, "u1", older); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger, _ := seededLedger(t, store, time.Monday)
	ledger.Flush()

	if err := ledger.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	entries := ledger.Entries()
	if len(entries) != 5 || entries[0].ID != "older" {
		t.Fatalf("expected the stored entry followed by four recorded ones, got %+v", entries)
	}
	if ledger.TodayTotal() != 9 {
		t.Fatalf("expected today total 9, got %d", ledger.TodayTotal())
	}
}

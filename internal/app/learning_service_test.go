package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
	"vocab-quiz-service/internal/infra/memory"
)

var greetings = domain.TopicKey{Level: "HSK1", Chapter: "1", Topic: "greetings"}

type fixture struct {
	progress *memory.ProgressStore
	ledger   *memory.LedgerStore
	streak   *memory.StreakStore
	sink     *memory.ResultSink
	board    *memory.Leaderboard
	vocab    *memory.StaticVocabularyLoader
	now      func() time.Time
}

func newFixture(words int) *fixture {
	vocab := make([]domain.VocabularyItem, words)
	for i := range vocab {
		vocab[i] = domain.VocabularyItem{
			Index:             i,
			Word:              fmt.Sprintf("word-%d", i),
			QuestionTemplateA: fmt.Sprintf("Which word means %d?", i),
		}
	}
	return &fixture{
		progress: memory.NewProgressStore(),
		ledger:   memory.NewLedgerStore(),
		streak:   memory.NewStreakStore(),
		sink:     memory.NewResultSink(),
		board:    memory.NewLeaderboard(),
		vocab:    memory.NewStaticVocabularyLoader(map[domain.TopicKey][]domain.VocabularyItem{greetings: vocab}),
		now:      func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) },
	}
}

func (f *fixture) service(t *testing.T) *app.LearningService {
	t.Helper()
	ctx := context.Background()
	profile := domain.Profile{UserID: "u1", Username: "lin", DisplayName: "Lin"}

	ledger := app.NewScoreLedger(f.ledger, profile.UserID, nil, app.LedgerOptions{Location: time.UTC, Now: f.now})
	if err := ledger.Load(ctx); err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	streak := app.NewStreakEngine(f.streak, profile, nil, app.StreakOptions{
		Location:  time.UTC,
		Now:       f.now,
		Publisher: f.board,
	})
	if err := streak.Load(ctx); err != nil {
		t.Fatalf("load streak: %v", err)
	}
	svc := app.NewLearningService(app.Dependencies{
		Vocabulary: memory.NewVocabularyRepository(f.vocab, time.Minute),
		Generator:  app.NewQuestionGenerator(rand.New(rand.NewSource(3))),
		Progress:   app.NewProgressTracker(f.progress, nil, 0),
		Ledger:     ledger,
		Streak:     streak,
		Sink:       f.sink,
		Now:        f.now,
	})
	t.Cleanup(svc.Close)
	return svc
}

func TestCompleteTopicFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(12)
	svc := f.service(t)

	view, err := svc.StartTopic(ctx, greetings, true)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Total != 12 || view.Cursor != 0 || view.Index != 0 {
		t.Fatalf("unexpected initial view %+v", view)
	}
	if view.Item.CorrectOption != "" {
		t.Fatalf("correct option leaked for an unanswered item")
	}

	var completion *app.Completion
	for i := 0; i < view.Total; i++ {
		item := currentItem(t, f, svc, view.TopicID, i)
		option := item.CorrectOption
		if i == view.Total-1 {
			option = wrongOption(item)
		}
		res, err := svc.Answer(view.TopicID, i, option)
		if err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if res.Correct != (option == item.CorrectOption) || res.Cursor != i+1 {
			t.Fatalf("answer %d: unexpected result %+v", i, res)
		}
		var next app.SessionView
		next, completion, err = svc.Forward(view.TopicID)
		if err != nil {
			t.Fatalf("forward %d: %v", i, err)
		}
		if (completion != nil) != (i == view.Total-1) || next.Completed != (completion != nil) {
			t.Fatalf("forward %d: completion=%v view=%+v", i, completion, next)
		}
	}

	if completion.Summary.CorrectCount != 11 || completion.Summary.WrongCount != 1 || completion.Summary.TotalCount != 12 {
		t.Fatalf("unexpected summary %+v", completion.Summary)
	}
	if completion.Entry.Score != 11 || completion.Entry.OutOf != 12 || completion.Entry.ID == "" {
		t.Fatalf("unexpected ledger entry %+v", completion.Entry)
	}
	if !completion.StreakExtended || completion.Streak.Current != 1 || completion.NextTarget != 15 {
		t.Fatalf("unexpected streak outcome %+v", completion)
	}

	if _, _, err := svc.Forward(view.TopicID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected finished session to be gone, got %v", err)
	}

	svc.Flush()
	if got := f.sink.Summaries(); len(got) != 1 || got[0] != completion.Summary {
		t.Fatalf("unexpected sink deliveries %+v", got)
	}
	if _, ok, _ := f.progress.Load(ctx, view.TopicID); ok {
		t.Fatalf("progress not cleared after completion")
	}
	if snaps := f.board.Snapshots(); len(snaps) != 1 || snaps[0].Streak != 1 || snaps[0].Username != "lin" {
		t.Fatalf("unexpected leaderboard pushes %+v", snaps)
	}
	status := svc.Streak()
	if status.TodayTotal != 11 || status.Target != 15 {
		t.Fatalf("unexpected streak status %+v", status)
	}

	buckets, err := svc.Stats(domain.Range{Kind: domain.RangeDaily, Count: 1})
	if err != nil || len(buckets) != 1 || buckets[0].Score != 11 || buckets[0].OutOf != 12 {
		t.Fatalf("unexpected stats %+v (err %v)", buckets, err)
	}
}

func TestLimitToFifteen(t *testing.T) {
	f := newFixture(20)
	svc := f.service(t)
	view, err := svc.StartTopic(context.Background(), greetings, true)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Total != app.MaxQuestions {
		t.Fatalf("expected %d items, got %d", app.MaxQuestions, view.Total)
	}
}

func TestResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(6)
	first := f.service(t)

	view, err := first.StartTopic(ctx, greetings, false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		item := currentItem(t, f, first, view.TopicID, i)
		option := item.CorrectOption
		if i == 1 {
			option = wrongOption(item)
		}
		if _, err := first.Answer(view.TopicID, i, option); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if i < 2 {
			if _, _, err := first.Forward(view.TopicID); err != nil {
				t.Fatalf("forward %d: %v", i, err)
			}
		}
	}
	tally, err := first.Tally(view.TopicID)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	first.Close()

	second := f.service(t)
	resumed, err := second.StartTopic(ctx, greetings, false)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Cursor != 3 || resumed.Index != 3 {
		t.Fatalf("unexpected resumed view %+v", resumed)
	}
	got, err := second.Tally(view.TopicID)
	if err != nil || got != tally || got != (domain.Tally{Correct: 2, Wrong: 1}) {
		t.Fatalf("tally mismatch: %+v vs %+v (err %v)", got, tally, err)
	}

	if _, err := second.Answer(view.TopicID, 5, "word-0"); !errors.Is(err, domain.ErrOutOfOrderAnswer) {
		t.Fatalf("expected ErrOutOfOrderAnswer, got %v", err)
	}
	back, err := second.Back(view.TopicID)
	if err != nil || back.Index != 2 || back.Item.SelectedOption == "" || back.Item.CorrectOption == "" {
		t.Fatalf("unexpected back view %+v (err %v)", back, err)
	}
}

func TestResetTopicStartsOver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(5)
	svc := f.service(t)

	view, err := svc.StartTopic(ctx, greetings, false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	item := currentItem(t, f, svc, view.TopicID, 0)
	if _, err := svc.Answer(view.TopicID, 0, item.CorrectOption); err != nil {
		t.Fatalf("answer: %v", err)
	}

	svc.ResetTopic(greetings)
	if _, err := svc.View(view.TopicID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session to be closed, got %v", err)
	}
	fresh, err := svc.StartTopic(ctx, greetings, false)
	if err != nil || fresh.Cursor != 0 {
		t.Fatalf("expected a fresh session, got %+v (err %v)", fresh, err)
	}
}

func TestUnknownTopic(t *testing.T) {
	svc := newFixture(4).service(t)
	if _, err := svc.StartTopic(context.Background(), domain.FolderKey("missing"), false); !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("expected ErrTopicNotFound, got %v", err)
	}
	if _, err := svc.Answer("folder/missing", 0, "x"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEmptyTopicIsPlaceholder(t *testing.T) {
	ctx := context.Background()
	empty := domain.FolderKey("empty")
	f := newFixture(4)
	f.vocab = memory.NewStaticVocabularyLoader(map[domain.TopicKey][]domain.VocabularyItem{empty: {}})
	svc := f.service(t)

	view, err := svc.StartTopic(ctx, empty, true)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !view.Placeholder || view.Total != 1 || len(view.Item.Options) != 4 {
		t.Fatalf("unexpected placeholder view %+v", view)
	}
	if _, err := svc.Answer(view.TopicID, 0, ""); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
	svc.Flush()
	if _, ok, _ := f.progress.Load(ctx, view.TopicID); ok {
		t.Fatalf("placeholder session must not be persisted")
	}

	next, completion, err := svc.Forward(view.TopicID)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if completion == nil || !next.Completed || completion.Summary.TotalCount != 0 {
		t.Fatalf("expected an empty completion, got %+v", completion)
	}
	svc.Flush()
	if status := svc.Streak(); status.TodayTotal != 0 {
		t.Fatalf("placeholder must not be scored: %+v", status)
	}
	if got := f.sink.Summaries(); len(got) != 0 {
		t.Fatalf("placeholder must not reach the sink: %+v", got)
	}
	if _, err := svc.Tally(view.TopicID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected the session to be closed, got %v", err)
	}
}

func TestStoredPlaceholderIsRegenerated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(4)
	stale := domain.Snapshot{
		TopicID:   greetings.ID(),
		Items:     []domain.MCQItem{{Options: []string{"", "", "", ""}}},
		CreatedAt: f.now(),
	}
	if err := f.progress.Save(ctx, stale); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := f.service(t)

	view, err := svc.StartTopic(ctx, greetings, false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Placeholder || view.Total != 4 {
		t.Fatalf("expected a generated session, got %+v", view)
	}
	if item := currentItem(t, f, svc, view.TopicID, 0); item.CorrectOption == "" {
		t.Fatalf("stored snapshot still holds the placeholder")
	}
}

func TestConcurrentStartTopicSharesSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(8)
	svc := f.service(t)

	const callers = 8
	views := make([]app.SessionView, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = svc.StartTopic(ctx, greetings, false)
		}(i)
	}
	wg.Wait()

	stored := currentItem(t, f, svc, greetings.ID(), 0)
	for i := range views {
		if errs[i] != nil {
			t.Fatalf("start %d: %v", i, errs[i])
		}
		if views[i].Item.PromptText != stored.PromptText || fmt.Sprint(views[i].Item.Options) != fmt.Sprint(stored.Options) {
			t.Fatalf("caller %d sees %+v, stored snapshot holds %+v", i, views[i].Item, stored)
		}
	}
}

func TestResetAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(4)
	svc := f.service(t)

	view, err := svc.StartTopic(ctx, greetings, false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < view.Total; i++ {
		item := currentItem(t, f, svc, view.TopicID, i)
		if _, err := svc.Answer(view.TopicID, i, item.CorrectOption); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if _, _, err := svc.Forward(view.TopicID); err != nil {
			t.Fatalf("forward %d: %v", i, err)
		}
	}
	// 4 correct is below the target of 10
	if status := svc.Streak(); status.State.Current != 0 || status.TodayTotal != 4 {
		t.Fatalf("unexpected status %+v", status)
	}

	svc.ResetAccount()
	svc.Flush()
	if status := svc.Streak(); status.TodayTotal != 0 || status.State.Current != 0 {
		t.Fatalf("account not reset: %+v", status)
	}
	if entries, _ := f.ledger.List(ctx, "u1"); len(entries) != 0 {
		t.Fatalf("ledger store not cleared: %d entries", len(entries))
	}
}

// currentItem reads the full item, correct option included, from the persisted snapshot.
func currentItem(t *testing.T, f *fixture, svc *app.LearningService, topicID string, index int) domain.MCQItem {
	t.Helper()
	svc.Flush()
	snap, ok, err := f.progress.Load(context.Background(), topicID)
	if err != nil || !ok {
		t.Fatalf("no snapshot for %s (err %v)", topicID, err)
	}
	return snap.Items[index]
}

func wrongOption(item domain.MCQItem) string {
	for _, o := range item.Options {
		if o != item.CorrectOption {
			return o
		}
	}
	return ""
}

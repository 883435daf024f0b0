package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vocab-quiz-service/internal/domain"
)

const (
	// DefaultBaseTarget is the daily score target of a learner with no streak.
	DefaultBaseTarget = 10
	// DefaultTargetIncrement raises the target for every day of the current streak.
	DefaultTargetIncrement = 5
)

// StreakStore persists a user's streak state.
type StreakStore interface {
	LoadStreak(ctx context.Context, userID string) (domain.StreakState, error)
	SaveStreak(ctx context.Context, userID string, state domain.StreakState) error
}

// LeaderboardPublisher receives the learner's streak once it is stored locally.
type LeaderboardPublisher interface {
	PublishStreak(ctx context.Context, snap domain.LeaderboardSnapshot) error
}

// MilestoneNotifier is told once per successful streak day.
type MilestoneNotifier interface {
	StreakMilestone(state domain.StreakState)
}

// StreakOptions configures a StreakEngine.
type StreakOptions struct {
	BaseTarget   int
	Increment    int
	Location     *time.Location
	Now          func() time.Time
	WriteTimeout time.Duration
	Publisher    LeaderboardPublisher
	Notifier     MilestoneNotifier
}

// StreakEngine derives the day-streak and the escalating daily target.
// It is the only writer of the user's StreakState.
type StreakEngine struct {
	store     StreakStore
	profile   domain.Profile
	base      int
	increment int
	loc       *time.Location
	now       func() time.Time
	publisher LeaderboardPublisher
	notifier  MilestoneNotifier
	log       logrus.FieldLogger
	persister *persister

	mu    sync.RWMutex
	state domain.StreakState
}

// NewStreakEngine builds an engine for the given profile.
func NewStreakEngine(store StreakStore, profile domain.Profile, log logrus.FieldLogger, opts StreakOptions) *StreakEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.BaseTarget <= 0 {
		opts.BaseTarget = DefaultBaseTarget
	}
	if opts.Increment <= 0 {
		opts.Increment = DefaultTargetIncrement
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log = log.WithFields(logrus.Fields{"component": "streak", "user_id": profile.UserID})
	return &StreakEngine{
		store:     store,
		profile:   profile,
		base:      opts.BaseTarget,
		increment: opts.Increment,
		loc:       opts.Location,
		now:       opts.Now,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		log:       log,
		persister: newPersister(log, opts.WriteTimeout),
	}
}

// Load reads the persisted state. Call it once before the engine is used.
func (e *StreakEngine) Load(ctx context.Context) error {
	state, err := e.store.LoadStreak(ctx, e.profile.UserID)
	if err != nil {
		return fmt.Errorf("load streak: %w", err)
	}
	if state.LastSuccessDay != nil {
		day := StartOfDay(*state.LastSuccessDay, e.loc)
		state.LastSuccessDay = &day
	}
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
	return nil
}

// State returns a copy of the current state.
func (e *StreakEngine) State() domain.StreakState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyState(e.state)
}

// Target is the score needed today: base + current*increment. A streak that was
// already broken by a missed day counts as zero even if rollover has not run yet.
func (e *StreakEngine) Target() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.targetLocked(StartOfDay(e.now(), e.loc))
}

func (e *StreakEngine) targetLocked(today time.Time) int {
	current := e.state.Current
	if !e.aliveLocked(today) {
		current = 0
	}
	return e.base + current*e.increment
}

// aliveLocked reports whether the last success was today or yesterday.
func (e *StreakEngine) aliveLocked(today time.Time) bool {
	last := e.state.LastSuccessDay
	if last == nil {
		return false
	}
	day := StartOfDay(*last, e.loc)
	return day.Equal(today) || day.Equal(today.AddDate(0, 0, -1))
}

// Evaluate counts today as a success once todayTotal reaches the target. It can be
// called after every scoring event: a day is only counted once. The returned flag
// reports whether this call extended the streak.
func (e *StreakEngine) Evaluate(todayTotal int) (domain.StreakState, bool) {
	e.mu.Lock()
	today := StartOfDay(e.now(), e.loc)
	last := e.state.LastSuccessDay
	if last != nil && StartOfDay(*last, e.loc).Equal(today) {
		state := copyState(e.state)
		e.mu.Unlock()
		return state, false
	}
	if todayTotal < e.targetLocked(today) {
		state := copyState(e.state)
		e.mu.Unlock()
		return state, false
	}

	if last != nil && StartOfDay(*last, e.loc).Equal(today.AddDate(0, 0, -1)) {
		e.state.Current++
	} else {
		e.state.Current = 1
	}
	e.state.Best = max(e.state.Best, e.state.Current)
	e.state.LastSuccessDay = &today
	state := copyState(e.state)
	e.mu.Unlock()

	e.persist("evaluate", state)
	if e.notifier != nil {
		e.notifier.StreakMilestone(state)
	}
	return state, true
}

// Rollover runs at local midnight: unless yesterday (or, on a late catch-up run,
// today) was a success, the streak is broken. Best is never reduced.
func (e *StreakEngine) Rollover() domain.StreakState {
	e.mu.Lock()
	today := StartOfDay(e.now(), e.loc)
	if !e.aliveLocked(today) {
		e.state.Current = 0
	}
	state := copyState(e.state)
	e.mu.Unlock()

	e.persist("rollover", state)
	return state
}

// ResetToZero clears the current streak and the last success day, keeping Best.
func (e *StreakEngine) ResetToZero() domain.StreakState {
	e.mu.Lock()
	e.state.Current = 0
	e.state.LastSuccessDay = nil
	state := copyState(e.state)
	e.mu.Unlock()

	e.persist("reset", state)
	return state
}

// Flush waits for every scheduled write and leaderboard push to finish.
func (e *StreakEngine) Flush() {
	e.persister.flush()
}

// Close drains pending writes and stops the background writer.
func (e *StreakEngine) Close() {
	e.persister.close()
}

// persist stores state and, only once the store accepted it, pushes the leaderboard snapshot.
func (e *StreakEngine) persist(op string, state domain.StreakState) {
	snap := domain.LeaderboardSnapshot{
		Username:    e.profile.Username,
		DisplayName: e.profile.DisplayName,
		Streak:      state.Current,
		Best:        state.Best,
		UpdatedAt:   e.now(),
	}
	e.persister.submit(op, e.profile.UserID, func(ctx context.Context) error {
		if err := e.store.SaveStreak(ctx, e.profile.UserID, state); err != nil {
			return err
		}
		if e.publisher == nil {
			return nil
		}
		if err := e.publisher.PublishStreak(ctx, snap); err != nil {
			return fmt.Errorf("publish leaderboard: %w", err)
		}
		return nil
	})
}

// NextMidnight returns the first local midnight strictly after t.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1)
}

func copyState(s domain.StreakState) domain.StreakState {
	if s.LastSuccessDay != nil {
		day := *s.LastSuccessDay
		s.LastSuccessDay = &day
	}
	return s
}

package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"vocab-quiz-service/internal/domain"
)

// QuizSession is the per-topic state machine over an ordered list of MCQ items.
// cursor is the index of the first unanswered item; displayed is the item the
// learner is looking at and never moves past cursor.
type QuizSession struct {
	mu        sync.RWMutex
	topicID   string
	items     []domain.MCQItem
	cursor    int
	displayed int
	createdAt time.Time
}

// Forward is the outcome of NavigateForward. Completed is set once the learner
// steps past the last item with every item answered, or leaves a placeholder session.
type Forward struct {
	Index     int          `json:"index"`
	Completed bool         `json:"completed"`
	Tally     domain.Tally `json:"tally"`
}

// NewQuizSession starts a fresh session with the cursor at 0.
func NewQuizSession(topicID string, items []domain.MCQItem, now func() time.Time) (*QuizSession, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptySession
	}
	if now == nil {
		now = time.Now
	}
	owned := make([]domain.MCQItem, len(items))
	for i, item := range items {
		owned[i] = item.Clone()
		owned[i].SelectedOption = ""
	}
	return &QuizSession{
		topicID:   topicID,
		items:     owned,
		createdAt: now(),
	}, nil
}

// ResumeQuizSession rehydrates a session verbatim from a persisted snapshot.
func ResumeQuizSession(snap domain.Snapshot) (*QuizSession, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	snap = snap.Clone()
	return &QuizSession{
		topicID:   snap.TopicID,
		items:     snap.Items,
		cursor:    snap.Cursor,
		displayed: min(snap.Cursor, len(snap.Items)-1),
		createdAt: snap.CreatedAt,
	}, nil
}

// TopicID returns the topic identity the session belongs to.
func (s *QuizSession) TopicID() string {
	return s.topicID
}

// Answer records option for the item at index. Only the frontier item may be
// freshly answered; earlier items keep their first answer and are returned as-is.
func (s *QuizSession) Answer(index int, option string) (domain.MCQItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index > s.cursor || index >= len(s.items) {
		return domain.MCQItem{}, fmt.Errorf("%w: index %d, cursor %d", domain.ErrOutOfOrderAnswer, index, s.cursor)
	}
	item := &s.items[index]
	if index < s.cursor {
		return item.Clone(), nil
	}
	if option == "" || !item.HasOption(option) {
		return domain.MCQItem{}, fmt.Errorf("%w: %q", domain.ErrOptionNotFound, option)
	}
	item.SelectedOption = option
	s.cursor++
	return item.Clone(), nil
}

// NavigateBack moves the displayed index one step back, clamped at 0.
func (s *QuizSession) NavigateBack() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.displayed > 0 {
		s.displayed--
	}
	return s.displayed
}

// NavigateForward moves the displayed index one step forward while it stays within
// the answered frontier. Stepping past the last item of a fully answered session
// reports completion together with the final tally.
func (s *QuizSession) NavigateForward() (Forward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.placeholderLocked() {
		return Forward{Index: s.displayed, Completed: true}, nil
	}
	next := s.displayed + 1
	if next > s.cursor {
		return Forward{Index: s.displayed}, domain.ErrFrontierNotAnswered
	}
	if next >= len(s.items) {
		return Forward{Index: s.displayed, Completed: true, Tally: s.tallyLocked()}, nil
	}
	s.displayed = next
	return Forward{Index: s.displayed}, nil
}

// Tally counts correct and wrong answers among the answered items.
func (s *QuizSession) Tally() domain.Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tallyLocked()
}

func (s *QuizSession) tallyLocked() domain.Tally {
	answered := s.items[:s.cursor]
	correct := lo.CountBy(answered, func(item domain.MCQItem) bool { return item.Correct() })
	return domain.Tally{Correct: correct, Wrong: len(answered) - correct}
}

// Progress is (displayed+1)/len(items) clamped to [0, 1].
func (s *QuizSession) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return 0
	}
	p := float64(s.displayed+1) / float64(len(s.items))
	return max(0, min(1, p))
}

// Cursor returns the index of the first unanswered item.
func (s *QuizSession) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Displayed returns the index of the item currently shown.
func (s *QuizSession) Displayed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayed
}

// Len returns the number of items.
func (s *QuizSession) Len() int {
	return len(s.items)
}

// Item returns a copy of the item at index.
func (s *QuizSession) Item(index int) (domain.MCQItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.items) {
		return domain.MCQItem{}, false
	}
	return s.items[index].Clone(), true
}

// Placeholder reports whether the session only holds the empty-pool placeholder.
// Such a session has nothing to answer; stepping forward ends it.
func (s *QuizSession) Placeholder() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placeholderLocked()
}

func (s *QuizSession) placeholderLocked() bool {
	return len(s.items) == 1 && s.items[0].Placeholder()
}

// Completed reports whether every item has been answered.
func (s *QuizSession) Completed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor == len(s.items)
}

// Snapshot returns the persisted form of the session.
func (s *QuizSession) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{
		TopicID:   s.topicID,
		Cursor:    s.cursor,
		Items:     s.items,
		CreatedAt: s.createdAt,
	}.Clone()
}

// Summary returns the result-sink payload for the session.
func (s *QuizSession) Summary() domain.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tallyLocked()
	return domain.SessionSummary{
		TopicID:      s.topicID,
		CorrectCount: t.Correct,
		WrongCount:   t.Wrong,
		TotalCount:   len(s.items),
	}
}

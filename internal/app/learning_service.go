package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vocab-quiz-service/internal/domain"
)

// VocabularyRepository loads the vocabulary records of a topic (from cache/backing store).
type VocabularyRepository interface {
	GetVocabulary(ctx context.Context, key domain.TopicKey) ([]domain.VocabularyItem, error)
}

// ResultSink receives the summary of every completed session (notes, leaderboard feeds).
type ResultSink interface {
	Deliver(ctx context.Context, summary domain.SessionSummary) error
}

// SessionView is what a client needs to render the current state of a session.
// The correct option of an unanswered item is withheld.
type SessionView struct {
	TopicID   string         `json:"topicId"`
	Index     int            `json:"index"`
	Cursor    int            `json:"cursor"`
	Total     int            `json:"total"`
	Progress  float64        `json:"progress"`
	Item      domain.MCQItem `json:"item"`
	Completed bool           `json:"completed"`
	// Placeholder marks the single empty item shown for a topic without vocabulary.
	Placeholder bool `json:"placeholder,omitempty"`
}

// AnswerResult summarizes the outcome of a single answer.
type AnswerResult struct {
	TopicID  string `json:"topicId"`
	Index    int    `json:"index"`
	Selected string `json:"selected"`
	Correct  bool   `json:"correct"`
	Cursor   int    `json:"cursor"`
}

// Completion is produced once when a session is finished.
type Completion struct {
	Summary        domain.SessionSummary `json:"summary"`
	Entry          domain.ScoreEntry     `json:"entry"`
	Streak         domain.StreakState    `json:"streak"`
	StreakExtended bool                  `json:"streakExtended"`
	NextTarget     int                   `json:"nextTarget"`
}

// StreakStatus is the learner's streak together with today's numbers.
type StreakStatus struct {
	State      domain.StreakState `json:"state"`
	Target     int                `json:"target"`
	TodayTotal int                `json:"todayTotal"`
}

// Dependencies groups the collaborators of a LearningService.
type Dependencies struct {
	Vocabulary VocabularyRepository
	Generator  *QuestionGenerator
	Progress   *ProgressTracker
	Ledger     *ScoreLedger
	Streak     *StreakEngine
	Sink       ResultSink
	Log        logrus.FieldLogger
	Now        func() time.Time
}

// LearningService contains the quiz, scoring and streak use cases of one learner.
type LearningService struct {
	vocab     VocabularyRepository
	generator *QuestionGenerator
	progress  *ProgressTracker
	ledger    *ScoreLedger
	streak    *StreakEngine
	sink      ResultSink
	log       logrus.FieldLogger
	now       func() time.Time
	delivery  *persister

	mu       sync.Mutex
	sessions map[string]*QuizSession
}

func NewLearningService(deps Dependencies) *LearningService {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Generator == nil {
		deps.Generator = NewQuestionGenerator(nil)
	}
	return &LearningService{
		vocab:     deps.Vocabulary,
		generator: deps.Generator,
		progress:  deps.Progress,
		ledger:    deps.Ledger,
		streak:    deps.Streak,
		sink:      deps.Sink,
		log:       deps.Log,
		now:       deps.Now,
		delivery:  newPersister(deps.Log.WithField("component", "result_sink"), 0),
		sessions:  make(map[string]*QuizSession),
	}
}

// StartTopic opens the session of a topic. A persisted snapshot always wins over
// generating a new question set. An empty vocabulary pool yields a placeholder
// session that is never persisted.
func (s *LearningService) StartTopic(ctx context.Context, key domain.TopicKey, limitToFifteen bool) (SessionView, error) {
	topicID := key.ID()
	if session, ok := s.lookup(topicID); ok {
		return viewOf(session), nil
	}

	snap, ok, err := s.progress.Load(ctx, topicID)
	if err != nil {
		return SessionView{}, fmt.Errorf("load progress: %w", err)
	}

	var session *QuizSession
	if ok {
		session, err = ResumeQuizSession(snap)
		if err != nil {
			return SessionView{}, err
		}
		if session.Placeholder() {
			s.log.WithField("topic_id", topicID).Debug("dropping stored placeholder session")
			s.progress.Clear(topicID)
			session = nil
		} else {
			s.log.WithFields(logrus.Fields{"topic_id": topicID, "cursor": session.Cursor()}).Debug("resumed quiz session")
		}
	}
	fresh := session == nil
	if fresh {
		vocab, err := s.vocab.GetVocabulary(ctx, key)
		if err != nil {
			return SessionView{}, err
		}
		session, err = NewQuizSession(topicID, s.generator.Generate(vocab, limitToFifteen), s.now)
		if err != nil {
			return SessionView{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[topicID]; ok {
		return viewOf(existing), nil
	}
	s.sessions[topicID] = session
	// saved under s.mu so no answer on this session can be queued ahead of it
	if fresh && !session.Placeholder() {
		s.progress.Save(session.Snapshot())
		s.log.WithFields(logrus.Fields{"topic_id": topicID, "items": session.Len()}).Debug("started quiz session")
	}
	return viewOf(session), nil
}

// Answer records an answer and schedules the progress write.
func (s *LearningService) Answer(topicID string, index int, option string) (AnswerResult, error) {
	session, ok := s.lookup(topicID)
	if !ok {
		return AnswerResult{}, domain.ErrSessionNotFound
	}
	item, err := session.Answer(index, option)
	if err != nil {
		return AnswerResult{}, err
	}
	s.progress.Save(session.Snapshot())
	return AnswerResult{
		TopicID:  topicID,
		Index:    index,
		Selected: item.SelectedOption,
		Correct:  item.Correct(),
		Cursor:   session.Cursor(),
	}, nil
}

// Back moves the displayed item one step back.
func (s *LearningService) Back(topicID string) (SessionView, error) {
	session, ok := s.lookup(topicID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	session.NavigateBack()
	return viewOf(session), nil
}

// Forward moves the displayed item one step forward. Leaving the last item of a
// fully answered session finishes it and returns the completion.
func (s *LearningService) Forward(topicID string) (SessionView, *Completion, error) {
	session, ok := s.lookup(topicID)
	if !ok {
		return SessionView{}, nil, domain.ErrSessionNotFound
	}
	fwd, err := session.NavigateForward()
	if err != nil {
		return viewOf(session), nil, err
	}
	view := viewOf(session)
	if !fwd.Completed {
		return view, nil, nil
	}
	completion, err := s.complete(session)
	if err != nil {
		return view, nil, err
	}
	view.Completed = true
	return view, completion, nil
}

// Tally returns the running correct/wrong counts of an open session.
func (s *LearningService) Tally(topicID string) (domain.Tally, error) {
	session, ok := s.lookup(topicID)
	if !ok {
		return domain.Tally{}, domain.ErrSessionNotFound
	}
	return session.Tally(), nil
}

// View returns the current state of an open session.
func (s *LearningService) View(topicID string) (SessionView, error) {
	session, ok := s.lookup(topicID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	return viewOf(session), nil
}

// Abandon closes the in-memory session; the last persisted snapshot stays the resumption point.
func (s *LearningService) Abandon(topicID string) {
	s.mu.Lock()
	delete(s.sessions, topicID)
	s.mu.Unlock()
}

// ResetTopic discards both the open session and the persisted progress of a topic.
func (s *LearningService) ResetTopic(key domain.TopicKey) {
	topicID := key.ID()
	s.Abandon(topicID)
	s.progress.Clear(topicID)
}

// Stats aggregates the score ledger.
func (s *LearningService) Stats(r domain.Range) ([]domain.Bucket, error) {
	return s.ledger.Aggregate(r)
}

// Streak returns the current streak with today's target and score.
func (s *LearningService) Streak() StreakStatus {
	return StreakStatus{
		State:      s.streak.State(),
		Target:     s.streak.Target(),
		TodayTotal: s.ledger.TodayTotal(),
	}
}

// ResetStreak is the user-triggered streak reset.
func (s *LearningService) ResetStreak() StreakStatus {
	s.streak.ResetToZero()
	return s.Streak()
}

// ResetAccount empties the score ledger and resets the streak.
func (s *LearningService) ResetAccount() {
	s.ledger.ClearAll()
	s.streak.ResetToZero()
}

// Flush waits for all pending writes and deliveries.
func (s *LearningService) Flush() {
	s.progress.Flush()
	s.ledger.Flush()
	s.streak.Flush()
	s.delivery.flush()
}

// Close drains pending writes and deliveries.
func (s *LearningService) Close() {
	s.delivery.close()
	s.progress.Close()
	s.ledger.Close()
	s.streak.Close()
}

func (s *LearningService) complete(session *QuizSession) (*Completion, error) {
	topicID := session.TopicID()
	s.mu.Lock()
	if current, ok := s.sessions[topicID]; !ok || current != session {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	delete(s.sessions, topicID)
	s.mu.Unlock()

	if session.Placeholder() {
		// nothing was asked, so nothing is scored
		return &Completion{
			Summary:    domain.SessionSummary{TopicID: topicID},
			Streak:     s.streak.State(),
			NextTarget: s.streak.Target(),
		}, nil
	}

	summary := session.Summary()
	entry := s.ledger.Record(summary.CorrectCount, summary.TotalCount)
	state, extended := s.streak.Evaluate(s.ledger.TodayTotal())
	s.progress.Clear(topicID)

	if s.sink != nil {
		s.delivery.submit("deliver", topicID, func(ctx context.Context) error {
			return s.sink.Deliver(ctx, summary)
		})
	}

	s.log.WithFields(logrus.Fields{
		"topic_id": topicID,
		"correct":  summary.CorrectCount,
		"total":    summary.TotalCount,
		"streak":   state.Current,
	}).Info("quiz session completed")

	return &Completion{
		Summary:        summary,
		Entry:          entry,
		Streak:         state,
		StreakExtended: extended,
		NextTarget:     s.streak.Target(),
	}, nil
}

func (s *LearningService) lookup(topicID string) (*QuizSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[topicID]
	return session, ok
}

func viewOf(session *QuizSession) SessionView {
	index := session.Displayed()
	item, _ := session.Item(index)
	if !item.Answered() {
		item.CorrectOption = ""
	}
	return SessionView{
		TopicID:     session.TopicID(),
		Index:       index,
		Cursor:      session.Cursor(),
		Total:       session.Len(),
		Progress:    session.Progress(),
		Item:        item,
		Placeholder: session.Placeholder(),
	}
}

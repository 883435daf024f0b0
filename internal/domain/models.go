package domain

import (
	"fmt"
	"net/url"
	"time"
)

// VocabularyItem is one word record of a topic as supplied by the vocabulary pool.
type VocabularyItem struct {
	Index             int    `json:"index"`
	Word              string `json:"word"`
	Pinyin            string `json:"pinyin"`
	EnglishDefinition string `json:"englishDefinition"`
	ChineseDefinition string `json:"chineseDefinition"`
	QuestionTemplateA string `json:"questionTemplateA"`
	QuestionTemplateB string `json:"questionTemplateB"`
}

// TopicKey identifies a topic either by (level, chapter, topic) or by a user folder name.
type TopicKey struct {
	Level   string `json:"level,omitempty"`
	Chapter string `json:"chapter,omitempty"`
	Topic   string `json:"topic,omitempty"`
	Folder  string `json:"folder,omitempty"`
}

// FolderKey returns the key of a user-defined folder.
func FolderKey(name string) TopicKey {
	return TopicKey{Folder: name}
}

// ID returns the stable topic identity used as the persistence key.
// Folder and curriculum keys live in separate namespaces and every part is escaped,
// so two different keys never produce the same identity.
func (k TopicKey) ID() string {
	if k.Folder != "" {
		return "folder/" + url.PathEscape(k.Folder)
	}
	return fmt.Sprintf("topic/%s/%s/%s",
		url.PathEscape(k.Level), url.PathEscape(k.Chapter), url.PathEscape(k.Topic))
}

// MCQItem is a single multiple-choice question. Options are in display order.
type MCQItem struct {
	PromptText     string   `json:"promptText"`
	Options        []string `json:"options"`
	CorrectOption  string   `json:"correctOption"`
	SelectedOption string   `json:"selectedOption"`
}

// Placeholder reports whether the item stands in for an empty vocabulary pool.
// It has no correct option and cannot be answered.
func (i MCQItem) Placeholder() bool {
	return i.CorrectOption == ""
}

// Answered reports whether a selection has been recorded.
func (i MCQItem) Answered() bool {
	return i.SelectedOption != ""
}

// Correct reports whether the recorded selection matches the correct option.
func (i MCQItem) Correct() bool {
	return i.Answered() && i.SelectedOption == i.CorrectOption
}

// HasOption reports whether option is one of the item's options.
func (i MCQItem) HasOption(option string) bool {
	for _, o := range i.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the item.
func (i MCQItem) Clone() MCQItem {
	out := i
	out.Options = append([]string(nil), i.Options...)
	return out
}

// Snapshot is the persisted form of a quiz session.
type Snapshot struct {
	TopicID   string    `json:"topicId"`
	Cursor    int       `json:"cursor"`
	Items     []MCQItem `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the structural invariants of a snapshot.
func (s Snapshot) Validate() error {
	if s.TopicID == "" {
		return fmt.Errorf("%w: empty topic id", ErrCorruptPersistedState)
	}
	if len(s.Items) == 0 {
		return fmt.Errorf("%w: no items (cursor %d)", ErrCorruptPersistedState, s.Cursor)
	}
	if s.Cursor < 0 || s.Cursor > len(s.Items) {
		return fmt.Errorf("%w: cursor %d outside [0, %d]", ErrCorruptPersistedState, s.Cursor, len(s.Items))
	}
	for i, item := range s.Items {
		if i < s.Cursor && !item.Answered() {
			return fmt.Errorf("%w: item %d before cursor is unanswered", ErrCorruptPersistedState, i)
		}
		if i >= s.Cursor && item.Answered() {
			return fmt.Errorf("%w: item %d after cursor is answered", ErrCorruptPersistedState, i)
		}
	}
	return nil
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Items = make([]MCQItem, len(s.Items))
	for i, item := range s.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// Tally counts the answered items of a session.
type Tally struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// SessionSummary is handed to result sinks once a session completes.
type SessionSummary struct {
	TopicID      string `json:"topicId"`
	CorrectCount int    `json:"correctCount"`
	WrongCount   int    `json:"wrongCount"`
	TotalCount   int    `json:"totalCount"`
}

// ScoreEntry is one immutable record of the score ledger.
type ScoreEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Score     int       `json:"score"`
	OutOf     int       `json:"outOf"`
}

// RangeKind selects the bucket width of an aggregate.
type RangeKind string

const (
	RangeDaily   RangeKind = "daily"
	RangeWeekly  RangeKind = "weekly"
	RangeMonthly RangeKind = "monthly"
)

// Range asks for Count buckets of the given kind, the last one containing now.
type Range struct {
	Kind  RangeKind `json:"kind"`
	Count int       `json:"count"`
}

// Bucket sums the ledger entries whose timestamp falls in [Start, End).
type Bucket struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Score   int       `json:"score"`
	OutOf   int       `json:"outOf"`
	Percent float64   `json:"percent"`
}

// StreakState is the persisted day-streak of a user.
type StreakState struct {
	Current        int        `json:"current"`
	Best           int        `json:"best"`
	LastSuccessDay *time.Time `json:"lastSuccessDay,omitempty"`
}

// LeaderboardSnapshot is pushed to the leaderboard after each streak evaluation.
type LeaderboardSnapshot struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Streak      int       `json:"streak"`
	Best        int       `json:"best"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Profile carries the user fields copied into leaderboard snapshots.
type Profile struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

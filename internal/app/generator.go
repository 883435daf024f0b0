package app

import (
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"

	"vocab-quiz-service/internal/domain"
)

const (
	// MaxQuestions caps a generated set when the caller asks for a short quiz.
	MaxQuestions = 15
	// distractorCount is the number of wrong options offered per question.
	distractorCount = 3
)

// RandomSource is the subset of *rand.Rand the generator needs.
type RandomSource interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// QuestionGenerator turns vocabulary records into shuffled MCQ items.
// It is safe for concurrent use.
type QuestionGenerator struct {
	mu  sync.Mutex
	rnd RandomSource
}

// NewQuestionGenerator builds a generator. A nil source falls back to a time-seeded one.
func NewQuestionGenerator(rnd RandomSource) *QuestionGenerator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &QuestionGenerator{rnd: rnd}
}

// Generate builds one MCQ item per vocabulary record, shuffles the set and optionally
// truncates it to MaxQuestions. An empty pool yields a single placeholder item.
func (g *QuestionGenerator) Generate(vocab []domain.VocabularyItem, limitToFifteen bool) []domain.MCQItem {
	if len(vocab) == 0 {
		return []domain.MCQItem{placeholderItem()}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	items := make([]domain.MCQItem, 0, len(vocab))
	for _, v := range vocab {
		correct := v.Word
		others := lo.Uniq(lo.FilterMap(vocab, func(o domain.VocabularyItem, _ int) (string, bool) {
			return o.Word, o.Word != correct
		}))
		options := append(g.sample(others, distractorCount), correct)
		g.rnd.Shuffle(len(options), func(i, j int) {
			options[i], options[j] = options[j], options[i]
		})
		items = append(items, domain.MCQItem{
			PromptText:    g.prompt(v),
			Options:       options,
			CorrectOption: correct,
		})
	}

	g.rnd.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	if limitToFifteen && len(items) > MaxQuestions {
		items = items[:MaxQuestions]
	}
	return items
}

// sample picks up to n entries without replacement using a partial Fisher-Yates pass.
func (g *QuestionGenerator) sample(pool []string, n int) []string {
	picked := append([]string(nil), pool...)
	if n > len(picked) {
		n = len(picked)
	}
	for i := 0; i < n; i++ {
		j := i + g.rnd.Intn(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked[:n:n]
}

func (g *QuestionGenerator) prompt(v domain.VocabularyItem) string {
	a, b := v.QuestionTemplateA, v.QuestionTemplateB
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	if g.rnd.Intn(2) == 0 {
		return a
	}
	return b
}

func placeholderItem() domain.MCQItem {
	return domain.MCQItem{Options: []string{"", "", "", ""}}
}

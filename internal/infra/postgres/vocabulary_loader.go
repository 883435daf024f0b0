package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vocab-quiz-service/internal/domain"
)

// VocabularyLoader loads topic vocabulary rows from Postgres.
type VocabularyLoader struct {
	pool *pgxpool.Pool
}

func NewVocabularyLoader(pool *pgxpool.Pool) *VocabularyLoader {
	return &VocabularyLoader{pool: pool}
}

func (l *VocabularyLoader) LoadVocabulary(ctx context.Context, key domain.TopicKey) ([]domain.VocabularyItem, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT idx, word, pinyin, english_definition, chinese_definition, template_a, template_b
		FROM vocabulary
		WHERE topic_id = $1
		ORDER BY idx`, key.ID())
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	defer rows.Close()

	var items []domain.VocabularyItem
	for rows.Next() {
		var v domain.VocabularyItem
		if err := rows.Scan(&v.Index, &v.Word, &v.Pinyin, &v.EnglishDefinition,
			&v.ChineseDefinition, &v.QuestionTemplateA, &v.QuestionTemplateB); err != nil {
			return nil, fmt.Errorf("scan vocabulary: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	if len(items) == 0 {
		// a registered topic without words is a valid, empty pool
		var known bool
		if err := l.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM topics WHERE topic_id = $1)`, key.ID()).Scan(&known); err != nil {
			return nil, fmt.Errorf("lookup topic: %w", err)
		}
		if !known {
			return nil, fmt.Errorf("%w: %s", domain.ErrTopicNotFound, key.ID())
		}
		return []domain.VocabularyItem{}, nil
	}
	return items, nil
}

// UpsertVocabulary registers the topic and writes its rows in a single batch.
func (l *VocabularyLoader) UpsertVocabulary(ctx context.Context, key domain.TopicKey, items []domain.VocabularyItem) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO topics (topic_id, level, chapter, topic, folder)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (topic_id) DO NOTHING`,
		key.ID(), key.Level, key.Chapter, key.Topic, key.Folder)
	for _, v := range items {
		batch.Queue(`
			INSERT INTO vocabulary (topic_id, idx, level, chapter, topic, folder, word, pinyin,
				english_definition, chinese_definition, template_a, template_b)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (topic_id, idx) DO UPDATE SET
				word = EXCLUDED.word,
				pinyin = EXCLUDED.pinyin,
				english_definition = EXCLUDED.english_definition,
				chinese_definition = EXCLUDED.chinese_definition,
				template_a = EXCLUDED.template_a,
				template_b = EXCLUDED.template_b`,
			key.ID(), v.Index, key.Level, key.Chapter, key.Topic, key.Folder, v.Word, v.Pinyin,
			v.EnglishDefinition, v.ChineseDefinition, v.QuestionTemplateA, v.QuestionTemplateB)
	}
	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert vocabulary %s: %w", key.ID(), err)
		}
	}
	return nil
}

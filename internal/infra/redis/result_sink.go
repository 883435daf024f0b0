package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"vocab-quiz-service/internal/domain"
)

// ResultSink pushes completed-session summaries onto a capped per-user list:
// LPUSH results:{userID} {json}; LTRIM results:{userID} 0 limit-1
type ResultSink struct {
	client *redis.Client
	userID string
	limit  int64
}

func NewResultSink(client *redis.Client, userID string, limit int) *ResultSink {
	if limit <= 0 {
		limit = 100
	}
	return &ResultSink{client: client, userID: userID, limit: int64(limit)}
}

func (s *ResultSink) Deliver(ctx context.Context, summary domain.SessionSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key(), raw)
	pipe.LTrim(ctx, s.key(), 0, s.limit-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns the delivered summaries, newest first.
func (s *ResultSink) Recent(ctx context.Context) ([]domain.SessionSummary, error) {
	raws, err := s.client.LRange(ctx, s.key(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionSummary, 0, len(raws))
	for _, raw := range raws {
		var summary domain.SessionSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			continue
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *ResultSink) key() string {
	return "results:" + s.userID
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vocab-quiz-service/internal/domain"
)

const (
	leaderboardKey    = "leaderboard:streak"
	leaderboardPrefix = "leaderboard:user:"
)

// Leaderboard publishes streaks to a shared sorted set.
//
//	ZADD leaderboard:streak {streak} {username}
//	HSET leaderboard:user:{username} display_name .. best .. updated_at ..
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

func (l *Leaderboard) PublishStreak(ctx context.Context, snap domain.LeaderboardSnapshot) error {
	if snap.Username == "" {
		return fmt.Errorf("publish streak: empty username")
	}
	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(snap.Streak), Member: snap.Username})
	pipe.HSet(ctx, leaderboardPrefix+snap.Username,
		"display_name", snap.DisplayName,
		"best", snap.Best,
		"updated_at", snap.UpdatedAt.UTC().Format(time.RFC3339),
	)
	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the n highest streaks, best first.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]domain.LeaderboardSnapshot, error) {
	if n <= 0 {
		return nil, nil
	}
	ranked, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.LeaderboardSnapshot, 0, len(ranked))
	for _, z := range ranked {
		username, _ := z.Member.(string)
		entry := domain.LeaderboardSnapshot{Username: username, Streak: int(z.Score)}
		fields, err := l.client.HGetAll(ctx, leaderboardPrefix+username).Result()
		if err == nil {
			entry.DisplayName = fields["display_name"]
			if best, err := strconv.Atoi(fields["best"]); err == nil {
				entry.Best = best
			}
			if ts, err := time.Parse(time.RFC3339, fields["updated_at"]); err == nil {
				entry.UpdatedAt = ts
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

const (
	matchKeyPrefix = "hextron:match:"
	liveSetKey     = "hextron:matches:live"
)

// LiveIndex keeps a summary of every running match in Redis so other
// instances and dashboards can list them.
type LiveIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLiveIndex(client *redis.Client, ttl time.Duration) *LiveIndex {
	return &LiveIndex{client: client, ttl: ttl}
}

func (l *LiveIndex) Publish(ctx context.Context, summary domain.MatchSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKeyPrefix+summary.ID, data, l.ttl)
		pipe.SAdd(ctx, liveSetKey, summary.ID)
		return nil
	})
	return err
}

func (l *LiveIndex) Remove(ctx context.Context, matchID string) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, matchKeyPrefix+matchID)
		pipe.SRem(ctx, liveSetKey, matchID)
		return nil
	})
	return err
}

// List returns every summary still alive; ids whose entry expired are
// dropped from the set on the way.
func (l *LiveIndex) List(ctx context.Context) ([]domain.MatchSummary, error) {
	ids, err := l.client.SMembers(ctx, liveSetKey).Result()
	if err != nil {
		return nil, err
	}

	summaries := []domain.MatchSummary{}
	if len(ids) == 0 {
		return summaries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = matchKeyPrefix + id
	}
	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var s domain.MatchSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		summaries = append(summaries, s)
	}
	if len(stale) > 0 {
		l.client.SRem(ctx, liveSetKey, stale...)
	}
	return summaries, nil
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const trailKey = "fsv:audit:trail"

// RedisStore keeps the trail in a capped Redis list, newest entries first,
// so the trail survives restarts and is shared across replicas.
type RedisStore struct {
	client *redis.Client
	cap    int64
}

func NewRedisStore(client *redis.Client, capacity int64) *RedisStore {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RedisStore{client: client, cap: capacity}
}

func (s *RedisStore) Append(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, trailKey, raw)
	pipe.LTrim(ctx, trailKey, 0, s.cap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = int(s.cap)
	}
	raws, err := s.client.LRange(ctx, trailKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit trail: %w", err)
	}
	events := make([]Event, 0, len(raws))
	for _, raw := range raws {
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

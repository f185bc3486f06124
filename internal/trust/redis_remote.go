package trust

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRemote syncs trust settings to a Redis hash per user. Deployments
// that already run Redis for session state can use it instead of Postgres.
type RedisRemote struct {
	client *redis.Client
}

// NewRedisRemote creates a RedisRemote on an existing client.
func NewRedisRemote(client *redis.Client) *RedisRemote {
	return &RedisRemote{client: client}
}

func redisKey(userID string) string {
	return "trust:" + userID
}

func (r *RedisRemote) Fetch(ctx context.Context, userID string) (Settings, bool, error) {
	fields, err := r.client.HGetAll(ctx, redisKey(userID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("trust remote: fetch: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	s := make(Settings, len(fields))
	for c, l := range fields {
		s[Category(c)] = Level(l)
	}
	return s, true, nil
}

func (r *RedisRemote) Save(ctx context.Context, userID string, s Settings) error {
	full := s.normalized()
	fields := make(map[string]string, len(full))
	for c, l := range full {
		fields[string(c)] = string(l)
	}
	if err := r.client.HSet(ctx, redisKey(userID), fields).Err(); err != nil {
		return fmt.Errorf("trust remote: save: %w", err)
	}
	return nil
}

package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultThrottlePrefix = "blog:comment_throttle:"

// RedisThrottleStore keeps the last comment time per session in redis.
// Keys expire after the cooldown so idle sessions leave nothing behind.
type RedisThrottleStore struct {
	client redis.Cmdable
	prefix string
}

var _ ThrottleStore = (*RedisThrottleStore)(nil)

func NewRedisThrottleStore(client redis.Cmdable) *RedisThrottleStore {
	return &RedisThrottleStore{
		client: client,
		prefix: defaultThrottlePrefix,
	}
}

// WithPrefix changes the key namespace
func (s *RedisThrottleStore) WithPrefix(prefix string) *RedisThrottleStore {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

func (s *RedisThrottleStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisThrottleStore) LastAction(ctx context.Context, sessionID string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}

	return time.Unix(0, nanos), true, nil
}

func (s *RedisThrottleStore) RecordAction(ctx context.Context, sessionID string, at time.Time, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(sessionID), strconv.FormatInt(at.UnixNano(), 10), ttl).Err()
}

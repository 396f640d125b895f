package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lumen:session:"

// RedisStore keeps sessions in Redis with a TTL per key.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore does not own rdb; Close is a no-op.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, userID string) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+id, userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Lookup(ctx context.Context, id string) (string, error) {
	userID, err := s.rdb.Get(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return userID, err
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, redisKeyPrefix+id).Err()
}

func (s *RedisStore) Close() error {
	return nil
}

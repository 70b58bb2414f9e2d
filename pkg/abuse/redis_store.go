package abuse

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one sorted set per user, scored by event time in
// milliseconds. Each Record trims, adds, counts and refreshes the TTL in a
// single MULTI/EXEC so concurrent instances see a consistent count.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if client == nil {
		panic("abuse: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "billing"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":velocity:" + userID
}

func (s *RedisStore) Record(ctx context.Context, userID string, at time.Time, window time.Duration) (int64, error) {
	key := s.key(userID)
	cutoff := strconv.FormatInt(at.Add(-window).UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		p.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: uuid.NewString()})
		card = p.ZCard(ctx, key)
		p.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record velocity in redis: %w", err)
	}
	return card.Val(), nil
}

func (s *RedisStore) Count(ctx context.Context, userID string, at time.Time, window time.Duration) (int64, error) {
	lo := "(" + strconv.FormatInt(at.Add(-window).UnixMilli(), 10)
	hi := strconv.FormatInt(at.UnixMilli(), 10)
	n, err := s.client.ZCount(ctx, s.key(userID), lo, hi).Result()
	if err != nil {
		return 0, fmt.Errorf("count velocity in redis: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Reset(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("reset velocity in redis: %w", err)
	}
	return nil
}

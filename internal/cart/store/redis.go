package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zuhaib446/nayab-gemstone/internal/cart/domain"
)

// RedisStore keeps each cart under cart:<session> with a jittered TTL that
// is refreshed on every save.
type RedisStore struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client:  client,
		baseTTL: ttl,
	}
}

func (r *RedisStore) Load(ctx context.Context, sessionID string) ([]domain.Line, error) {
	data, err := r.client.Get(ctx, cacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decode(data)
}

func (r *RedisStore) Save(ctx context.Context, sessionID string, lines []domain.Line) error {
	data, err := encode(lines)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, cacheKey(sessionID), data, r.baseTTL+r.jitter()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// jitter spreads expiries so carts written together do not expire together.
// It is at most a tenth of the TTL and never more than an hour.
func (r *RedisStore) jitter() time.Duration {
	limit := min(r.baseTTL/10, time.Hour)
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

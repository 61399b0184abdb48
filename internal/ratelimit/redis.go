package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RedisStore is a Store backed by ulule/limiter's Redis driver, for
// deployments running more than one gateway instance against a shared
// counter space.
type RedisStore struct {
	client *redis.Client
	store  limiter.Store

	mu        sync.Mutex
	instances map[string]*limiter.Limiter
}

// NewRedisStore creates a Redis-backed store from a redis URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store, err := redisstore.NewStore(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}

	return &RedisStore{
		client:    client,
		store:     store,
		instances: make(map[string]*limiter.Limiter),
	}, nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Take implements Store. The now argument is ignored: Redis counters
// use server time so all gateway instances agree on window boundaries.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration, _ time.Time) (Result, error) {
	lctx, err := s.instance(limit, window).Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit check: %w", err)
	}

	return Result{
		Allowed:   !lctx.Reached,
		Limit:     int(lctx.Limit),
		Remaining: int(lctx.Remaining),
		ResetAt:   time.Unix(lctx.Reset, 0),
	}, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// instance returns the limiter for a (limit, window) pair, creating it
// on first use. Policies are few, so the map stays small.
func (s *RedisStore) instance(limit int, window time.Duration) *limiter.Limiter {
	key := fmt.Sprintf("%d/%s", limit, window)

	s.mu.Lock()
	defer s.mu.Unlock()

	if inst, ok := s.instances[key]; ok {
		return inst
	}
	inst := limiter.New(s.store, limiter.Rate{Period: window, Limit: int64(limit)})
	s.instances[key] = inst
	return inst
}

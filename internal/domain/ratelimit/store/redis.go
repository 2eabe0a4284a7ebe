package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedis constructs a redis-backed store so replicas share one budget per key.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	cfg = cfg.normalized()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &redisStore{
		client: client,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: prefix,
	}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) Allow(ctx context.Context, key string) (Decision, error) {
	k := s.key(key)
	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, k, s.window).Err(); err != nil {
			return Decision{}, err
		}
	}

	if count > int64(s.limit) {
		ttl, err := s.client.PTTL(ctx, k).Result()
		if err != nil {
			return Decision{}, err
		}
		if ttl < 0 {
			// a key left without expiry would block forever
			if err := s.client.PExpire(ctx, k, s.window).Err(); err != nil {
				return Decision{}, err
			}
			ttl = s.window
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: s.limit - int(count)}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}

package httpx

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend shares fixed-window counters between replicas. Redis errors
// fail open so an outage of the cache never takes the API down with it.
type RedisBackend struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisBackend wraps an already connected client.
func NewRedisBackend(client redis.UniversalClient, prefix string, logger *slog.Logger) *RedisBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBackend{
		client:  client,
		prefix:  prefix,
		timeout: 250 * time.Millisecond,
		logger:  logger,
	}
}

func (b *RedisBackend) Limiter(profile string, cfg RateLimitConfig) Limiter {
	return &redisLimiter{backend: b, profile: profile, cfg: cfg}
}

type redisLimiter struct {
	backend *RedisBackend
	profile string
	cfg     RateLimitConfig
}

func (l *redisLimiter) Allow(ctx context.Context, key string) Decision {
	if l.cfg.RequestsPerWindow <= 0 {
		return Decision{Allowed: true}
	}
	window := l.cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.backend.timeout)
	defer cancel()

	redisKey := l.backend.prefix + l.profile + ":" + key

	pipe := l.backend.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		l.backend.logger.Error("redis rate limiter error", "op", "incr", "err", err)
		return Decision{Allowed: true}
	}

	if incr.Val() <= int64(l.cfg.RequestsPerWindow) {
		return Decision{Allowed: true}
	}

	retry := ttl.Val()
	if retry <= 0 {
		retry = window
	}
	return Decision{Allowed: false, RetryAfter: retry}
}

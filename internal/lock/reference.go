// Package lock guards payment references against concurrent submission.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// ErrHeld is returned when another submission holds the reference.
var ErrHeld = eris.New("reference lock held")

// ReferenceLock serializes work on a single payment reference.
type ReferenceLock interface {
	// Acquire takes the lock for ref. The returned release func is always
	// safe to call.
	Acquire(ctx context.Context, ref string) (release func(), err error)
}

// redisClient is the part of redis.Cmdable the lock uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisReferenceLock is a SETNX lock with a TTL so a crashed holder cannot
// block a reference forever.
type RedisReferenceLock struct {
	client redisClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisReferenceLock(client redisClient, ttl time.Duration, logger *slog.Logger) *RedisReferenceLock {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisReferenceLock{client: client, ttl: ttl, logger: logger}
}

func lockKey(ref string) string {
	return fmt.Sprintf("ref:%s", ref)
}

func (l *RedisReferenceLock) Acquire(ctx context.Context, ref string) (func(), error) {
	key := lockKey(ref)
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return func() {}, eris.Wrapf(err, "redis: setnx %s", key)
	}
	if !ok {
		l.logger.Info("lock.held", "key", key)
		return func() {}, eris.Wrapf(ErrHeld, "reference %s", ref)
	}
	return func() {
		// detached so a cancelled request still releases its lock
		if err := l.client.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			l.logger.Warn("lock.release_failed", "key", key, "error", err)
		}
	}, nil
}

// Nop never contends. Used when Redis is not configured.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

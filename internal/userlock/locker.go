package userlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired indicates the lock could not be taken before the context expired.
var ErrNotAcquired = errors.New("user lock not acquired")

const (
	lockPrefix   = "userlock:v1:"
	retryBackoff = 25 * time.Millisecond
)

// Locker serializes wallet mutations per user. Every spend, refund and
// migration on a user id must run under its lock; the two wallet balances
// are read-then-write and lose updates otherwise.
type Locker interface {
	// Acquire blocks until the lock for userID is held or ctx is done.
	// The returned function releases the lock and is safe to call once.
	Acquire(ctx context.Context, userID string) (func(), error)
}

// RedisLocker implements Locker with a Redis SET NX lease. The lease carries
// a random token so a slow holder cannot release a successor's lock.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker builds a Redis-backed locker with the provided lease TTL.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// Acquire polls SET NX until the lock is held or the context expires.
func (l *RedisLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	key := lockPrefix + userID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(retryBackoff):
		}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(ctx, l.client, []string{key}, token).Result()
	}
	return release, nil
}

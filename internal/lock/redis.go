package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token, so
// a holder whose TTL expired cannot release somebody else's lock.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLocker implements Locker with SET NX PX on a shared Redis server.
//
// Fields:
//  Prefix – namespace prepended to every key.
//  TTL    – lifetime of a held lock; bounds how long a crashed holder can
//           block others.
//  Wait   – how long Lock keeps retrying before ErrNotAcquired.
//  Poll   – delay between attempts.
type RedisLocker struct {
	rdb    *redis.Client
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
	Poll   time.Duration
}

// NewRedisLocker returns a RedisLocker with the given TTL and maximum wait.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait < 0 {
		wait = 0
	}
	return &RedisLocker{rdb: rdb, Prefix: prefix, TTL: ttl, Wait: wait, Poll: 25 * time.Millisecond}
}

// Lock polls SET NX until it succeeds, ctx is done or Wait elapses.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.Prefix + ":" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, notAcquired(ctx)
			}
			return nil, err
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, notAcquired(ctx)
		case <-time.After(l.Poll):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's ctx may already be cancelled; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{full}, token).Err()
	}, nil
}

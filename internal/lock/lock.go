// Package lock provides per-key mutual exclusion for booking flows that
// read and rewrite one room's availability ledger.  RedisLocker spans
// processes sharing a Redis server; LocalLocker covers a single process.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// wait deadline.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive locks keyed by string.  The returned unlock
// function releases the lock and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// notAcquired keeps ctx.Err() in the chain so callers can tell a timed
// out request from a busy lock.
func notAcquired(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrNotAcquired, ctx.Err())
}

// RoomKey is the lock key guarding one room's ledger.
func RoomKey(roomID uint64) string {
	return "room:" + strconv.FormatUint(roomID, 10)
}

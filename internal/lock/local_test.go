package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), RoomKey(7))
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if len(l.slots) != 0 {
		t.Fatalf("expected slots to be released, got %d", len(l.slots))
	}
}

func TestLocalLockerDistinctKeys(t *testing.T) {
	l := NewLocalLocker()
	unlockA, err := l.Lock(context.Background(), RoomKey(1))
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, RoomKey(2))
	if err != nil {
		t.Fatalf("lock b should not block on a: %v", err)
	}
	unlockB()
}

func TestLocalLockerTimeout(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	if !errors.Is(err, ErrNotAcquired) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrNotAcquired carrying the deadline, got %v", err)
	}
	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	again()
}

func TestRoomKey(t *testing.T) {
	if got := RoomKey(42); got != "room:42" {
		t.Fatalf("unexpected key %q", got)
	}
}

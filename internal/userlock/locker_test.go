package userlock

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisLockerExcludes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "user-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(shortCtx, "user-1"); err != ErrNotAcquired {
		t.Fatalf("expected ErrNotAcquired while held, got %v", err)
	}

	// A different user is not blocked.
	otherRelease, err := locker.Acquire(ctx, "user-2")
	if err != nil {
		t.Fatalf("acquire other user: %v", err)
	}
	otherRelease()

	release()

	release2, err := locker.Acquire(ctx, "user-1")
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release2()
}

func TestMemoryLockerSerializes(t *testing.T) {
	locker := NewMemory()
	ctx := context.Background()

	var counter, max, active int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "user-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > max {
				max = active
			}
			counter++
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if counter != 16 {
		t.Fatalf("expected 16 increments, got %d", counter)
	}
	if max != 1 {
		t.Fatalf("expected mutual exclusion, saw %d concurrent holders", max)
	}
}

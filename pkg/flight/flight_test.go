package flight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetCoalescesConcurrentWork(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	c := NewCache(time.Minute, func(_ context.Context, k string) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "result:" + k, nil
	})

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "story-1")
			if err != nil {
				t.Errorf("get: %v", err)
			}
			results[i] = v
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("work ran %d times for one key, want 1", got)
	}
	for _, r := range results {
		if r != "result:story-1" {
			t.Fatalf("unexpected result %q", r)
		}
	}
}

func TestGetCachesUntilDelete(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(0, func(_ context.Context, k string) (int, error) {
		return int(calls.Add(1)), nil
	})

	ctx := context.Background()
	if v, _ := c.Get(ctx, "k"); v != 1 {
		t.Fatalf("first get = %d, want 1", v)
	}
	if v, _ := c.Get(ctx, "k"); v != 1 {
		t.Fatalf("cached get = %d, want 1", v)
	}

	c.Delete("k")
	if v, _ := c.Get(ctx, "k"); v != 2 {
		t.Fatalf("get after delete = %d, want 2", v)
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	c := NewCache[string, string](time.Minute, func(_ context.Context, k string) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	ctx := context.Background()
	if _, err := c.Get(ctx, "k"); err == nil {
		t.Fatal("first call should fail")
	}
	v, err := c.Get(ctx, "k")
	if err != nil || v != "ok" {
		t.Fatalf("second call = %q, %v; failures must not be cached", v, err)
	}
}

func TestForceRecomputes(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(time.Minute, func(_ context.Context, k string) (int, error) {
		return int(calls.Add(1)), nil
	})

	ctx := context.Background()
	if v, _ := c.Get(ctx, "k"); v != 1 {
		t.Fatalf("get = %d, want 1", v)
	}
	if v, _ := c.Force(ctx, "k"); v != 2 {
		t.Fatalf("force = %d, want 2", v)
	}
	if v, _ := c.Get(ctx, "k"); v != 2 {
		t.Fatalf("get after force = %d, want cached 2", v)
	}
}

func TestTTLExpiry(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(10*time.Millisecond, func(_ context.Context, k string) (int, error) {
		return int(calls.Add(1)), nil
	})

	ctx := context.Background()
	if v, _ := c.Get(ctx, "k"); v != 1 {
		t.Fatalf("get = %d, want 1", v)
	}
	time.Sleep(20 * time.Millisecond)
	if v, _ := c.Get(ctx, "k"); v != 2 {
		t.Fatalf("get after ttl = %d, want recomputed 2", v)
	}
}

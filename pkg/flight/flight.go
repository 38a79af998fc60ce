// Package flight coalesces concurrent requests for the same key into one
// unit of work and keeps finished results for a bounded time. Used so a
// double-submitted generation request runs the pipeline once.
package flight

import (
	"context"
	"sync"
	"time"
)

type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	finished map[K]entry[V]
	pending  map[K]*job[V]
	work     func(context.Context, K) (V, error)
	ttl      time.Duration
}

type entry[V any] struct {
	val      V
	deadline time.Time // zero means keep forever
}

type job[V any] struct {
	val  V
	err  error
	done chan struct{}
}

// NewCache builds a cache around the work function. Results are kept for
// ttl after completion; ttl <= 0 keeps them until Delete.
func NewCache[K comparable, V any](ttl time.Duration, work func(context.Context, K) (V, error)) *Cache[K, V] {
	return &Cache[K, V]{
		finished: make(map[K]entry[V]),
		pending:  make(map[K]*job[V]),
		work:     work,
		ttl:      ttl,
	}
}

// Get returns a cached result, joins an in-flight computation, or runs
// the work itself.
func (c *Cache[K, V]) Get(ctx context.Context, k K) (V, error) {
	c.mu.Lock()
	if e, ok := c.finished[k]; ok {
		if e.deadline.IsZero() || time.Now().Before(e.deadline) {
			c.mu.Unlock()
			return e.val, nil
		}
		delete(c.finished, k)
	}
	if p, ok := c.pending[k]; ok {
		c.mu.Unlock()
		select {
		case <-p.done:
			return p.val, p.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
	j := &job[V]{done: make(chan struct{})}
	c.pending[k] = j
	c.mu.Unlock()

	return c.run(ctx, k, j)
}

// Force recomputes the key even when a fresh result exists, waiting out
// any in-flight computation first.
func (c *Cache[K, V]) Force(ctx context.Context, k K) (V, error) {
	for {
		c.mu.Lock()
		if p, ok := c.pending[k]; ok {
			c.mu.Unlock()
			select {
			case <-p.done:
			case <-ctx.Done():
				var zero V
				return zero, ctx.Err()
			}
			continue
		}
		j := &job[V]{done: make(chan struct{})}
		c.pending[k] = j
		c.mu.Unlock()
		return c.run(ctx, k, j)
	}
}

// Delete drops a finished result.
func (c *Cache[K, V]) Delete(k K) {
	c.mu.Lock()
	delete(c.finished, k)
	c.mu.Unlock()
}

func (c *Cache[K, V]) run(ctx context.Context, k K, j *job[V]) (V, error) {
	j.val, j.err = c.work(ctx, k)

	c.mu.Lock()
	if j.err == nil {
		e := entry[V]{val: j.val}
		if c.ttl > 0 {
			e.deadline = time.Now().Add(c.ttl)
		}
		c.finished[k] = e
	}
	delete(c.pending, k)
	close(j.done)
	c.mu.Unlock()

	return j.val, j.err
}

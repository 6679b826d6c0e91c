// Package singleflight coalesces concurrent cache refreshes so that a burst
// of executions hitting an expired snapshot performs one DNS lookup.
package singleflight

import (
	"context"
	"sync"
)

// Group runs at most one fn per key at a time. Callers arriving while a call
// is in flight wait for its result instead of starting their own.
//
// Concurrency notes:
//   - The first caller for a key starts fn in its own goroutine. fn gets the
//     caller's context values but not its cancellation, so one caller giving
//     up never fails the others.
//   - Every caller, the starter included, waits on done or its own ctx.
//     Publishing (val, err) happens-before close(done).
//   - A caller whose ctx is cancelled returns ctx.Err(); fn keeps running and
//     its result still reaches the remaining callers.
type Group[K comparable, V any] struct {
	mu       sync.Mutex
	inflight map[K]*flight[V]
}

type flight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Do runs fn for key unless a call is already in flight, in which case it
// waits for that call. shared reports whether the result came from another
// caller's fn.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(context.Context) (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.inflight == nil {
		g.inflight = make(map[K]*flight[V])
	}
	f, shared := g.inflight[key]
	if !shared {
		f = &flight[V]{done: make(chan struct{})}
		g.inflight[key] = f
		go g.run(context.WithoutCancel(ctx), key, f, fn)
	}
	g.mu.Unlock()

	select {
	case <-f.done:
		return f.val, f.err, shared
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err(), shared
	}
}

func (g *Group[K, V]) run(ctx context.Context, key K, f *flight[V], fn func(context.Context) (V, error)) {
	defer func() {
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
		close(f.done)
	}()
	f.val, f.err = fn(ctx)
}

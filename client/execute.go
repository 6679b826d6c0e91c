package client

import (
	"context"
	"iter"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation is the caller's work against one candidate address.
//
// In Concurrent mode one execution calls op from several goroutines at once,
// one per candidate, so op must be safe for concurrent use.
type Operation[T any] func(ctx context.Context, addr *url.URL) (T, error)

// Result is the outcome of one attempt. Exactly one of Value/Err is
// meaningful: Err == nil means success.
type Result[T any] struct {
	Address *url.URL
	Value   T
	Err     error
}

// attempt is a finished Result plus its duration, as sent by a
// concurrent worker.
type attempt[T any] struct {
	res  Result[T]
	took time.Duration
}

// ExecuteStream acquires a valid snapshot (refreshing if needed), then
// returns a single-use sequence of attempt results.
//
// Serial mode runs op on one candidate at a time in policy order and yields
// each result as it completes; stopping the range, or ctx ending, stops
// further attempts.
// Concurrent mode starts op on every candidate at once and yields results in
// completion order; stopping the range cancels the context handed to the
// attempts still running and discards their results.
//
// The policy observes every attempt that finishes before the range stops,
// before the result is yielded. Refresh failures are returned immediately
// as *LookupError or *ParseError and no attempt is made.
func ExecuteStream[T, I any](ctx context.Context, c *Client[I], mode Execution, op Operation[T]) (iter.Seq[Result[T]], error) {
	snap, err := c.validCache(ctx)
	if err != nil {
		return nil, err
	}
	items := snap.Items()
	addrs := make([]*url.URL, 0, len(items))
	for idx := range c.opt.Policy.Order(items) {
		addrs = append(addrs, c.opt.Policy.URI(items[idx]))
	}

	log := c.opt.Logger.With(
		zap.String("execution_id", uuid.NewString()),
		zap.String("service", c.opt.ServiceName),
		zap.Stringer("mode", mode),
	)

	var used atomic.Bool
	return func(yield func(Result[T]) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		if mode == Concurrent {
			runConcurrent(ctx, c, log, addrs, op, yield)
			return
		}
		runSerial(ctx, c, log, addrs, op, yield)
	}, nil
}

// Execute runs op against the candidates and returns the first successful
// value. If every attempt fails it returns an *AttemptError wrapping the
// last failure. If ctx ended before any attempt ran it returns ctx.Err();
// with no candidates at all it returns ErrNoTargets.
func Execute[T, I any](ctx context.Context, c *Client[I], mode Execution, op Operation[T]) (T, error) {
	var zero T
	seq, err := ExecuteStream(ctx, c, mode, op)
	if err != nil {
		return zero, err
	}
	var last *AttemptError
	for res := range seq {
		if res.Err == nil {
			return res.Value, nil
		}
		last = &AttemptError{Address: res.Address, Err: res.Err}
	}
	if last != nil {
		return zero, last
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, ErrNoTargets
}

func runSerial[T, I any](ctx context.Context, c *Client[I], log *zap.Logger, addrs []*url.URL, op Operation[T], yield func(Result[T]) bool) {
	for i, addr := range addrs {
		if ctx.Err() != nil {
			log.Debug("context done, skipping remaining attempts", zap.Int("skipped", len(addrs)-i))
			return
		}
		start := time.Now()
		v, err := op(ctx, addr)
		c.observe(log, addr, err, time.Since(start))
		if !yield(Result[T]{Address: addr, Value: v, Err: err}) {
			return
		}
	}
}

func runConcurrent[T, I any](ctx context.Context, c *Client[I], log *zap.Logger, addrs []*url.URL, op Operation[T], yield func(Result[T]) bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered for every worker so abandoned ones never block on send.
	done := make(chan attempt[T], len(addrs))
	for _, addr := range addrs {
		go func() {
			start := time.Now()
			v, err := op(ctx, addr)
			done <- attempt[T]{
				res:  Result[T]{Address: addr, Value: v, Err: err},
				took: time.Since(start),
			}
		}()
	}

	for received := 0; received < len(addrs); received++ {
		a := <-done
		c.observe(log, a.res.Address, a.res.Err, a.took)
		if !yield(a.res) {
			if pending := len(addrs) - received - 1; pending > 0 {
				log.Debug("abandoning in-flight attempts", zap.Int("pending", pending))
			}
			return
		}
	}
}

// observe feeds one finished attempt to the policy, metrics, stats and log.
func (c *Client[I]) observe(log *zap.Logger, addr *url.URL, err error, took time.Duration) {
	c.stats.attempts.Add(1)
	if err == nil {
		c.stats.successes.Add(1)
		c.opt.Policy.NoteSuccess(addr)
		c.opt.Metrics.Attempt(OutcomeSuccess, took)
		log.Debug("execution attempt succeeded",
			zap.Stringer("uri", addr),
			zap.Duration("took", took),
		)
		return
	}
	c.stats.failures.Add(1)
	c.opt.Policy.NoteFailure(addr)
	c.opt.Metrics.Attempt(OutcomeFailure, took)
	log.Info("execution attempt failed",
		zap.Stringer("uri", addr),
		zap.Duration("took", took),
		zap.Error(err),
	)
}

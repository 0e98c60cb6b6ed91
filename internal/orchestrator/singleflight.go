package orchestrator

import (
	"context"
	"sync"

	"localbiz-extractor/internal/common/metrics"
)

// flightGroup deduplicates concurrent work per fingerprint. Unlike the usual
// single-flight helpers, waiters are reference counted: a caller whose context
// expires detaches without cancelling the shared execution, and the execution
// itself is cancelled only when the last waiter has detached. Every attached
// waiter observes the identical outcome.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

type flightCall struct {
	done    chan struct{}
	value   interface{}
	err     error
	waiters int
	cancel  context.CancelFunc
}

func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*flightCall)}
}

// Do runs fn for key unless an execution is already in flight, in which case
// the caller attaches to it. The bool reports whether the result came from an
// execution shared with other callers. fn receives a context detached from
// any single caller; it is cancelled when no waiters remain.
func (g *flightGroup) Do(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, bool, error) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		c.waiters++
		metrics.SingleFlightWaiters.Inc()
		g.mu.Unlock()
		return g.wait(ctx, key, c, true)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &flightCall{
		done:    make(chan struct{}),
		waiters: 1,
		cancel:  cancel,
	}
	g.calls[key] = c
	metrics.SingleFlightWaiters.Inc()
	g.mu.Unlock()

	go func() {
		value, err := fn(runCtx)
		cancel()

		g.mu.Lock()
		c.value, c.err = value, err
		// Remove the token so the next request for this key starts fresh.
		if g.calls[key] == c {
			delete(g.calls, key)
		}
		close(c.done)
		g.mu.Unlock()
	}()

	return g.wait(ctx, key, c, false)
}

// wait blocks until the shared execution settles or the caller's context
// expires. Expiry detaches this waiter only; the execution is cancelled when
// the waiter count reaches zero before completion.
func (g *flightGroup) wait(ctx context.Context, key string, c *flightCall, shared bool) (interface{}, bool, error) {
	select {
	case <-c.done:
		g.detach(key, c, false)
		return c.value, shared, c.err

	case <-ctx.Done():
		g.detach(key, c, true)
		return nil, shared, ctx.Err()
	}
}

func (g *flightGroup) detach(key string, c *flightCall, abandoned bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c.waiters--
	metrics.SingleFlightWaiters.Dec()

	if abandoned && c.waiters == 0 {
		select {
		case <-c.done:
			// Execution already settled; nothing to cancel.
		default:
			c.cancel()
			if g.calls[key] == c {
				delete(g.calls, key)
			}
		}
	}
}

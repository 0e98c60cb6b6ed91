// Package orchestrator coordinates extractions: it owns the render session
// pool, per-fingerprint single-flight deduplication, the retry policy and
// cache write-through.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"localbiz-extractor/internal/common/errors"
	"localbiz-extractor/internal/common/metrics"
)

// SessionPool bounds the number of simultaneous render sessions. Each slot
// carries a uuid lease id used to correlate pool activity in logs. Acquisition
// is first-come-first-served through the channel and fails fast after the
// configured timeout instead of queuing forever.
type SessionPool struct {
	slots          chan string
	acquireTimeout time.Duration
}

func NewSessionPool(size int, acquireTimeout time.Duration) *SessionPool {
	if size < 1 {
		size = 1
	}
	slots := make(chan string, size)
	for i := 0; i < size; i++ {
		slots <- uuid.NewString()
	}
	return &SessionPool{slots: slots, acquireTimeout: acquireTimeout}
}

// Acquire leases a render slot, waiting up to the acquire timeout.
func (p *SessionPool) Acquire(ctx context.Context) (string, error) {
	select {
	case lease := <-p.slots:
		metrics.SessionPoolInUse.Inc()
		return lease, nil
	default:
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case lease := <-p.slots:
		metrics.SessionPoolInUse.Inc()
		return lease, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", errors.New(errors.ErrCodePoolExhausted, "no render session available")
	}
}

// Release returns a leased slot to the pool.
func (p *SessionPool) Release(lease string) {
	metrics.SessionPoolInUse.Dec()
	p.slots <- lease
}

// Available reports how many slots are currently free.
func (p *SessionPool) Available() int {
	return len(p.slots)
}

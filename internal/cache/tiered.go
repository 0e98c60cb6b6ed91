package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"localbiz-extractor/internal/common/config"
	"localbiz-extractor/internal/common/logger"
	"localbiz-extractor/internal/common/metrics"
	"localbiz-extractor/internal/models"
)

// TieredCache layers the in-process LRU over the durable Redis tier. Reads
// hit memory first; writes go durable-first so a process restart keeps warm
// results. When Redis misbehaves the cache degrades to memory-only, keeps
// serving, and re-probes in the background until the durable tier returns.
// Tier trouble is never surfaced to callers.
type TieredCache struct {
	mem     *MemoryCache
	durable *RedisTier
	log     logger.Logger

	ttl           time.Duration
	probeInterval time.Duration

	degraded atomic.Bool
	hits     atomic.Int64
	misses   atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewTiered builds the cache. durable may be nil, in which case the cache
// runs memory-only from the start.
func NewTiered(cfg config.CacheConfig, durable *RedisTier, log logger.Logger) *TieredCache {
	c := &TieredCache{
		mem:           NewMemoryCache(cfg.Memory.MaxEntries),
		durable:       durable,
		log:           log,
		ttl:           cfg.TTL(),
		probeInterval: time.Duration(cfg.Redis.ProbeInterval) * time.Second,
		stopCh:        make(chan struct{}),
	}

	if c.durable != nil {
		go c.probeLoop()
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *TieredCache) TTL() time.Duration {
	return c.ttl
}

// Degraded reports whether the durable tier is currently out of rotation.
func (c *TieredCache) Degraded() bool {
	return c.degraded.Load()
}

// Get returns the live entry for fingerprint. In durable mode the durable
// tier is consulted first and its hits are promoted into memory; on any
// durable-tier error the read falls back to memory transparently. While
// degraded only the memory tier serves.
func (c *TieredCache) Get(ctx context.Context, fingerprint string) (Entry, bool) {
	now := time.Now().UTC()

	if c.durableActive() {
		entry, ok, err := c.durable.Get(ctx, fingerprint)
		switch {
		case err != nil:
			c.markDegraded(err)
		case ok && !entry.Expired(now):
			entry.HitCount++
			c.mem.Put(fingerprint, entry)
			c.hits.Add(1)
			metrics.CacheRequests.WithLabelValues("redis", "hit").Inc()
			return entry, true
		default:
			metrics.CacheRequests.WithLabelValues("redis", "miss").Inc()
		}
	}

	// Memory also covers entries written while the durable tier was down.
	if entry, ok := c.mem.Get(fingerprint, now); ok {
		c.hits.Add(1)
		metrics.CacheRequests.WithLabelValues("memory", "hit").Inc()
		return entry, true
	}

	metrics.CacheRequests.WithLabelValues("memory", "miss").Inc()
	c.misses.Add(1)
	return Entry{}, false
}

// Put stores the entry in both tiers, durable first. A write whose render
// started earlier than the stored entry's is discarded, so a caller that
// forced a refresh can never have its result replaced by a staler render.
func (c *TieredCache) Put(ctx context.Context, fingerprint string, entry Entry) {
	if c.staleWrite(ctx, fingerprint, entry) {
		c.log.Debug("discarding stale cache write", map[string]interface{}{
			"fingerprint": fingerprint,
			"started_at":  entry.StartedAt,
		})
		return
	}

	if c.durableActive() {
		if err := c.durable.Put(ctx, fingerprint, entry); err != nil {
			c.markDegraded(err)
		}
	}
	c.mem.Put(fingerprint, entry)
}

// Delete drops the fingerprint from both tiers.
func (c *TieredCache) Delete(ctx context.Context, fingerprint string) bool {
	removed := c.mem.Delete(fingerprint)

	if c.durableActive() {
		if err := c.durable.Delete(ctx, fingerprint); err != nil {
			c.markDegraded(err)
		}
	}
	return removed
}

// ClearExpired sweeps expired entries out of the memory tier. The durable
// tier expires entries on its own.
func (c *TieredCache) ClearExpired(ctx context.Context) int {
	return c.mem.ClearExpired(time.Now().UTC())
}

// ClearAll empties both tiers and returns the larger per-tier count.
func (c *TieredCache) ClearAll(ctx context.Context) int {
	removed := c.mem.ClearAll()

	if c.durableActive() {
		n, err := c.durable.ClearAll(ctx)
		if err != nil {
			c.markDegraded(err)
		} else if n > removed {
			removed = n
		}
	}
	return removed
}

// Len reports the entry count of the active write tier.
func (c *TieredCache) Len(ctx context.Context) int {
	if c.durableActive() {
		if n, err := c.durable.Len(ctx); err == nil {
			return n
		}
	}
	return c.mem.Len()
}

// Stats summarizes the cache for the admin surface. Tier names the active
// write tier, so it reads "memory" while degraded.
func (c *TieredCache) Stats(ctx context.Context) models.CacheStats {
	now := time.Now().UTC()
	total, active, expired, _ := c.mem.Snapshot(now)

	stats := models.CacheStats{
		Tier:           "memory",
		TotalEntries:   total,
		ActiveEntries:  active,
		ExpiredEntries: expired,
	}

	if c.durableActive() {
		if n, err := c.durable.Len(ctx); err != nil {
			c.markDegraded(err)
		} else {
			stats.Tier = "redis"
			stats.TotalEntries = n
			stats.ActiveEntries = n
		}
	}

	hits := c.hits.Load()
	misses := c.misses.Load()
	stats.TotalHits = int(hits)
	if hits+misses > 0 {
		stats.HitRate = float64(hits) / float64(hits+misses)
	}
	return stats
}

// Close stops the background probe loop.
func (c *TieredCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *TieredCache) durableActive() bool {
	return c.durable != nil && !c.degraded.Load()
}

// staleWrite reports whether a newer entry for fingerprint already exists.
func (c *TieredCache) staleWrite(ctx context.Context, fingerprint string, entry Entry) bool {
	now := time.Now().UTC()

	if existing, ok := c.mem.Peek(fingerprint, now); ok {
		return existing.StartedAt.After(entry.StartedAt)
	}

	if c.durableActive() {
		if existing, ok, err := c.durable.Get(ctx, fingerprint); err == nil && ok && !existing.Expired(now) {
			return existing.StartedAt.After(entry.StartedAt)
		}
	}
	return false
}

// markDegraded moves the cache to memory-only mode. The transition is logged
// once; repeated failures while degraded stay quiet.
func (c *TieredCache) markDegraded(err error) {
	if c.degraded.CompareAndSwap(false, true) {
		metrics.CacheDegraded.Set(1)
		c.log.WithError(err).Warn("durable cache tier unavailable, serving from memory only", nil)
	}
}

func (c *TieredCache) recover() {
	if c.degraded.CompareAndSwap(true, false) {
		metrics.CacheDegraded.Set(0)
		c.log.Info("durable cache tier recovered", nil)
	}
}

// probeLoop re-pings the durable tier while degraded so the cache can move
// back to write-through mode without a restart.
func (c *TieredCache) probeLoop() {
	interval := c.probeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if !c.degraded.Load() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := c.durable.Ping(ctx)
			cancel()
			if err == nil {
				c.recover()
			}
		}
	}
}

package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"localbiz-extractor/internal/cache"
	"localbiz-extractor/internal/common/config"
	"localbiz-extractor/internal/common/errors"
	"localbiz-extractor/internal/common/logger"
	"localbiz-extractor/internal/common/metrics"
	"localbiz-extractor/internal/common/observability"
	"localbiz-extractor/internal/common/validation"
	"localbiz-extractor/internal/extractor"
	"localbiz-extractor/internal/hours"
	"localbiz-extractor/internal/models"
	"localbiz-extractor/internal/schema"
)

// Result is one settled extraction, ready for the response envelope.
type Result struct {
	Record      models.BusinessRecord
	Script      string
	Cached      bool
	ExtractedAt time.Time
}

// Orchestrator coordinates the full extraction pipeline. All shared state
// (session pool, in-flight map, cache) is owned here and injected at
// construction; nothing is process-global.
type Orchestrator struct {
	crawler  config.CrawlerConfig
	cache    *cache.TieredCache
	renderer extractor.Renderer
	parser   *extractor.Parser
	pool     *SessionPool
	flight   *flightGroup
	log      logger.Logger
	obs      *observability.Observability

	draining  chan struct{}
	drainOnce sync.Once
	inFlight  sync.WaitGroup
}

func New(crawler config.CrawlerConfig, tiered *cache.TieredCache, renderer extractor.Renderer, log logger.Logger, obs *observability.Observability) *Orchestrator {
	return &Orchestrator{
		crawler:  crawler,
		cache:    tiered,
		renderer: renderer,
		parser:   extractor.NewParser(),
		pool:     NewSessionPool(crawler.PoolSize, time.Duration(crawler.AcquireTimeout)*time.Second),
		flight:   newFlightGroup(),
		log:      log,
		obs:      obs,
		draining: make(chan struct{}),
	}
}

// Cache exposes the tiered cache for the admin surface.
func (o *Orchestrator) Cache() *cache.TieredCache {
	return o.cache
}

// PoolAvailable reports free render slots.
func (o *Orchestrator) PoolAvailable() int {
	return o.pool.Available()
}

// Extract runs one extraction request end to end: validation happened at the
// boundary, so this covers fingerprinting, cache lookup, single-flight
// deduplication, rendering with retries, normalization and write-through.
func (o *Orchestrator) Extract(ctx context.Context, req models.ExtractionRequest) (Result, error) {
	select {
	case <-o.draining:
		return Result{}, errors.New(errors.ErrCodePoolExhausted, "service is shutting down")
	default:
	}

	if err := validation.ValidateTargetURL(req.URL); err != nil {
		metrics.ExtractionErrors.WithLabelValues(string(errors.Code(err))).Inc()
		return Result{}, err
	}
	if len(strings.TrimSpace(req.Description)) > models.MaxDescriptionLength {
		err := errors.New(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("description exceeds %d characters", models.MaxDescriptionLength))
		metrics.ExtractionErrors.WithLabelValues(string(errors.Code(err))).Inc()
		return Result{}, err
	}

	o.inFlight.Add(1)
	defer o.inFlight.Done()

	start := time.Now()
	fp := Fingerprint(req.URL, req.Description)

	if !req.ForceRefresh {
		if entry, ok := o.cache.Get(ctx, fp); ok {
			res := o.finish(req, entry, true)
			o.record(start, "hit", true)
			return res, nil
		}
	}

	value, shared, err := o.flight.Do(ctx, fp, func(runCtx context.Context) (interface{}, error) {
		return o.runExtraction(runCtx, fp, req)
	})
	if err != nil {
		metrics.ExtractionErrors.WithLabelValues(string(errors.Code(err))).Inc()
		o.record(start, "error", false)
		return Result{}, err
	}

	entry := value.(cache.Entry)
	if shared {
		o.log.Debug("joined in-flight extraction", map[string]interface{}{"fingerprint": fp})
	}

	res := o.finish(req, entry, false)
	o.record(start, "success", false)
	return res, nil
}

// Drain stops accepting new requests and waits for in-flight work, up to the
// context deadline.
func (o *Orchestrator) Drain(ctx context.Context) error {
	o.drainOnce.Do(func() { close(o.draining) })

	done := make(chan struct{})
	go func() {
		o.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runExtraction is the shared single-flight body: one render pipeline run
// with pool accounting, retries and cache write-through.
func (o *Orchestrator) runExtraction(ctx context.Context, fp string, req models.ExtractionRequest) (interface{}, error) {
	startedAt := time.Now().UTC()

	lease, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer o.pool.Release(lease)

	log := o.log.WithFields(map[string]interface{}{
		"fingerprint": fp,
		"lease":       lease,
		"url":         req.URL,
	})

	page, err := o.renderWithRetries(ctx, log, req.URL)
	if err != nil {
		log.WithError(err).Warn("extraction failed", nil)
		return nil, err
	}

	raw, err := o.parser.Parse(strings.NewReader(page.HTML), "text/html; charset=utf-8",
		page.FinalURL, req.URL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExtractionFailed, "parsing rendered page", err)
	}

	normalized := hours.Normalize(raw.Hours)
	if normalized.Dropped > 0 {
		log.Warn("dropped unparseable hours entries", map[string]interface{}{
			"dropped": normalized.Dropped,
		})
	}

	record, err := schema.Build(raw, normalized.Specs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := cache.Entry{
		Record:    record,
		URL:       req.URL,
		StartedAt: startedAt,
		CachedAt:  now,
		ExpiresAt: now.Add(o.cache.TTL()),
	}
	o.cache.Put(ctx, fp, entry)

	log.Info("extraction complete", map[string]interface{}{
		"name":        record.Name,
		"hours_specs": len(record.OpeningHours),
	})
	return entry, nil
}

// renderWithRetries drives the render state machine: transient failures are
// retried with doubling backoff up to the configured bound, permanent ones
// surface immediately.
func (o *Orchestrator) renderWithRetries(ctx context.Context, log logger.Logger, url string) (*extractor.RenderedPage, error) {
	backoff := time.Duration(o.crawler.RetryBackoff) * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= o.crawler.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Info("retrying render", map[string]interface{}{
				"attempt": attempt,
				"backoff": backoff.String(),
			})
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		page, err := o.renderer.Render(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !errors.Retryable(err) {
			return nil, errors.Wrap(errors.ErrCodeExtractionFailed,
				errors.AsStandard(err).Message, err)
		}
	}

	return nil, errors.Wrap(errors.ErrCodeExtractionFailed, "render retries exhausted", lastErr)
}

// finish applies the caller's description override to a copy of the record
// and renders the response script. The cached record itself is never mutated.
func (o *Orchestrator) finish(req models.ExtractionRequest, entry cache.Entry, cached bool) Result {
	record := entry.Record
	if desc := strings.TrimSpace(req.Description); desc != "" {
		record.Description = desc
	}

	script, err := schema.RenderScript(record)
	if err != nil {
		// Encoding a built record cannot realistically fail; keep the
		// envelope well-formed regardless.
		o.log.WithError(err).Error("rendering JSON-LD script", nil)
	}

	return Result{
		Record:      record,
		Script:      script,
		Cached:      cached,
		ExtractedAt: time.Now().UTC(),
	}
}

func (o *Orchestrator) record(start time.Time, outcome string, cached bool) {
	metrics.ExtractionsTotal.WithLabelValues(outcome).Inc()
	metrics.ExtractionDuration.WithLabelValues(fmt.Sprintf("%t", cached)).
		Observe(time.Since(start).Seconds())

	if o.obs != nil {
		o.obs.RecordExtraction(context.Background(), outcome)
		o.obs.RecordExtractionDuration(context.Background(), time.Since(start), outcome)
	}
}

// Fingerprint derives the cache and single-flight key for one extraction
// target. The URL is normalized so trivially different spellings of the same
// listing share a key.
func Fingerprint(rawURL, description string) string {
	url := strings.TrimSpace(rawURL)
	url = strings.TrimSuffix(url, "/")

	h := sha256.Sum256([]byte(strings.ToLower(url) + "\x00" + strings.TrimSpace(description)))
	return hex.EncodeToString(h[:])
}

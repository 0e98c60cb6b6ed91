package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localbiz-extractor/internal/cache"
	"localbiz-extractor/internal/common/config"
	"localbiz-extractor/internal/common/errors"
	"localbiz-extractor/internal/common/logger"
	"localbiz-extractor/internal/extractor"
	"localbiz-extractor/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

const testURL = "https://maps.app.goo.gl/test123"

const renderedListing = `<html><body>
  <div role="main">
    <h1>Joe's Diner</h1>
    <button data-item-id="address" aria-label="Address: 123 Main St, Springfield, IL 62701, USA"></button>
    <div class="t39EBf"><table class="eK4R0e">
      <tr><td><div>Monday</div></td><td>9 AM - 5 PM</td></tr>
    </table></div>
  </div>
</body></html>`

// stubRenderer counts render calls and can fail a fixed number of times or
// block until released.
type stubRenderer struct {
	mu       sync.Mutex
	calls    atomic.Int32
	failures []error
	delay    time.Duration
	html     string
}

func (s *stubRenderer) Render(ctx context.Context, url string) (*extractor.RenderedPage, error) {
	n := s.calls.Add(1)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	var err error
	if int(n) <= len(s.failures) {
		err = s.failures[n-1]
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	html := s.html
	if html == "" {
		html = renderedListing
	}
	return &extractor.RenderedPage{HTML: html, FinalURL: url}, nil
}

func createTestOrchestrator(t *testing.T, r extractor.Renderer, crawler config.CrawlerConfig) *Orchestrator {
	cacheCfg := config.CacheConfig{
		TTLHours: 1,
		Memory:   config.MemoryConfig{MaxEntries: 32},
	}
	tiered := cache.NewTiered(cacheCfg, nil, logger.NewTestLogger(t))
	t.Cleanup(tiered.Close)

	return New(crawler, tiered, r, logger.NewTestLogger(t), nil)
}

func defaultCrawlerConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		PoolSize:       2,
		AcquireTimeout: 5,
		NavTimeout:     5,
		MaxRetries:     2,
		RetryBackoff:   1,
	}
}

// ==========================
// Pipeline Tests
// ==========================

func TestExtract_EndToEnd(t *testing.T) {
	r := &stubRenderer{}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())

	res, err := o.Extract(context.Background(), models.ExtractionRequest{URL: testURL})
	require.NoError(t, err)

	assert.Equal(t, "Joe's Diner", res.Record.Name)
	assert.False(t, res.Cached)
	assert.Contains(t, res.Script, `<script type="application/ld+json">`)
	assert.Contains(t, res.Script, `"Joe's Diner"`)

	require.Len(t, res.Record.OpeningHours, 1)
	assert.Equal(t, "Monday", res.Record.OpeningHours[0].DayOfWeek)
	assert.Equal(t, "09:00", res.Record.OpeningHours[0].Opens)
	assert.Equal(t, "17:00", res.Record.OpeningHours[0].Closes)

	require.NotNil(t, res.Record.Address)
	assert.Equal(t, "Springfield", res.Record.Address.AddressLocality)
}

func TestExtract_CacheHit(t *testing.T) {
	r := &stubRenderer{}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())
	ctx := context.Background()

	first, err := o.Extract(ctx, models.ExtractionRequest{URL: testURL})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := o.Extract(ctx, models.ExtractionRequest{URL: testURL})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Record.Name, second.Record.Name)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestExtract_ForceRefreshRerenders(t *testing.T) {
	r := &stubRenderer{}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())
	ctx := context.Background()

	_, err := o.Extract(ctx, models.ExtractionRequest{URL: testURL})
	require.NoError(t, err)

	res, err := o.Extract(ctx, models.ExtractionRequest{URL: testURL, ForceRefresh: true})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestExtract_DescriptionOverrideDoesNotMutateCache(t *testing.T) {
	r := &stubRenderer{}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())
	ctx := context.Background()

	_, err := o.Extract(ctx, models.ExtractionRequest{URL: testURL})
	require.NoError(t, err)

	// Same fingerprint as the cached entry only if the description matches;
	// overrides are part of the key, so use the same one twice.
	withDesc, err := o.Extract(ctx, models.ExtractionRequest{URL: testURL, Description: "My favorite diner"})
	require.NoError(t, err)
	assert.Equal(t, "My favorite diner", withDesc.Record.Description)

	again, err := o.Extract(ctx, models.ExtractionRequest{URL: testURL, Description: "My favorite diner"})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, "My favorite diner", again.Record.Description)
}

// ==========================
// Validation Tests
// ==========================

func TestExtract_RejectsBeforeRender(t *testing.T) {
	longDesc := make([]byte, models.MaxDescriptionLength+1)
	for i := range longDesc {
		longDesc[i] = 'x'
	}

	tests := []struct {
		name string
		req  models.ExtractionRequest
	}{
		{"unsupported host", models.ExtractionRequest{URL: "https://example.com/maps"}},
		{"oversized description", models.ExtractionRequest{URL: testURL, Description: string(longDesc)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRenderer{}
			o := createTestOrchestrator(t, r, defaultCrawlerConfig())

			_, err := o.Extract(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidRequest, errors.Code(err))
			assert.Equal(t, int32(0), r.calls.Load())
		})
	}
}

// ==========================
// Retry Policy Tests
// ==========================

func TestExtract_TransientFailuresRetried(t *testing.T) {
	r := &stubRenderer{failures: []error{
		errors.New(errors.ErrCodeRenderTimeout, "render timed out"),
		errors.New(errors.ErrCodeRenderNavigation, "navigation failed"),
	}}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())

	res, err := o.Extract(context.Background(), models.ExtractionRequest{URL: testURL})
	require.NoError(t, err)
	assert.Equal(t, "Joe's Diner", res.Record.Name)
	assert.Equal(t, int32(3), r.calls.Load())
}

func TestExtract_RetriesExhausted(t *testing.T) {
	r := &stubRenderer{failures: []error{
		errors.New(errors.ErrCodeRenderTimeout, "render timed out"),
		errors.New(errors.ErrCodeRenderTimeout, "render timed out"),
		errors.New(errors.ErrCodeRenderTimeout, "render timed out"),
	}}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())

	_, err := o.Extract(context.Background(), models.ExtractionRequest{URL: testURL})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExtractionFailed, errors.Code(err))
	assert.Equal(t, int32(3), r.calls.Load())
}

func TestExtract_PermanentFailureNotRetried(t *testing.T) {
	r := &stubRenderer{failures: []error{
		errors.New(errors.ErrCodeListingNotFound, "listing does not exist"),
	}}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())

	_, err := o.Extract(context.Background(), models.ExtractionRequest{URL: testURL})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExtractionFailed, errors.Code(err))
	assert.Equal(t, int32(1), r.calls.Load())
}

// ==========================
// Concurrency Tests
// ==========================

func TestExtract_SingleFlight(t *testing.T) {
	r := &stubRenderer{delay: 100 * time.Millisecond}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Result, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Extract(context.Background(),
				models.ExtractionRequest{URL: testURL})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Joe's Diner", results[i].Record.Name)
	}
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestExtract_CallerTimeoutDoesNotCancelSharedWork(t *testing.T) {
	r := &stubRenderer{delay: 150 * time.Millisecond}
	o := createTestOrchestrator(t, r, defaultCrawlerConfig())

	var wg sync.WaitGroup
	var impatientErr, patientErr error
	var patientRes Result

	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, impatientErr = o.Extract(ctx, models.ExtractionRequest{URL: testURL})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		patientRes, patientErr = o.Extract(context.Background(),
			models.ExtractionRequest{URL: testURL})
	}()
	wg.Wait()

	assert.ErrorIs(t, impatientErr, context.DeadlineExceeded)
	require.NoError(t, patientErr)
	assert.Equal(t, "Joe's Diner", patientRes.Record.Name)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestExtract_PoolExhaustion(t *testing.T) {
	r := &stubRenderer{delay: 500 * time.Millisecond}
	crawler := defaultCrawlerConfig()
	crawler.PoolSize = 1
	crawler.AcquireTimeout = 0
	o := createTestOrchestrator(t, r, crawler)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = o.Extract(context.Background(), models.ExtractionRequest{URL: testURL})
	}()

	// Give the first extraction time to lease the only slot.
	time.Sleep(50 * time.Millisecond)

	_, err := o.Extract(context.Background(),
		models.ExtractionRequest{URL: "https://maps.app.goo.gl/other"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePoolExhausted, errors.Code(err))

	wg.Wait()
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t,
		Fingerprint("https://maps.app.goo.gl/abc", ""),
		Fingerprint("  https://maps.app.goo.gl/abc/  ", ""))

	assert.NotEqual(t,
		Fingerprint("https://maps.app.goo.gl/abc", ""),
		Fingerprint("https://maps.app.goo.gl/abc", "custom description"))
}

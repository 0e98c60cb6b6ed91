package extractor

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"localbiz-extractor/internal/common/config"
	"localbiz-extractor/internal/common/errors"
	"localbiz-extractor/internal/common/logger"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// expandHoursScript clicks the weekly-hours disclosure so the full table is
// present in the DOM. Best effort; listings without the button just skip it.
const expandHoursScript = `(() => {
	const btn = document.querySelector('[jsaction*="pane.openhours"]')
		|| document.querySelector('[aria-label*="Hours"]')
		|| document.querySelector('[aria-label*="营业时间"]');
	if (btn) { btn.click(); }
	return true;
})()`

// RenderedPage is the outcome of one successful render.
type RenderedPage struct {
	HTML     string
	FinalURL string
}

// Renderer loads a listing URL in a browser and returns the settled DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (*RenderedPage, error)
}

// ChromeRenderer drives a headless browser. One allocator is shared across
// renders; each render gets its own tab and navigation deadline.
type ChromeRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	navTimeout  time.Duration
	log         logger.Logger
}

func NewChromeRenderer(cfg config.CrawlerConfig, log logger.Logger) *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		navTimeout:  time.Duration(cfg.NavTimeout) * time.Second,
		log:         log,
	}
}

// Render navigates to url, waits for the listing heading, expands the hours
// table and captures the DOM. Errors are classified: a deadline becomes a
// retryable timeout, a dead listing a permanent not-found, anything else a
// retryable navigation failure.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (*RenderedPage, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx)
	defer cancelTab()

	runCtx, cancel := context.WithTimeout(tabCtx, r.navTimeout)
	defer cancel()

	// Caller cancellation must reach the browser tab.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		html     string
		finalURL string
	)

	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitVisible(`h1`, chromedp.ByQuery),
		chromedp.Evaluate(expandHoursScript, nil),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	}

	if err := chromedp.Run(runCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			// The heading never appeared; either the page is slow or it is
			// the not-found page, which has no listing heading at all.
			if html == "" {
				if probeErr := r.probeNotFound(url, &html); probeErr == nil && IsNotFound(strings.NewReader(html)) {
					return nil, errors.New(errors.ErrCodeListingNotFound, "listing does not exist")
				}
			}
			return nil, errors.Wrap(errors.ErrCodeRenderTimeout, "render timed out", err)
		}
		return nil, errors.Wrap(errors.ErrCodeRenderNavigation, "navigation failed", err)
	}

	if IsNotFound(strings.NewReader(html)) {
		return nil, errors.New(errors.ErrCodeListingNotFound, "listing does not exist")
	}

	return &RenderedPage{HTML: html, FinalURL: finalURL}, nil
}

// probeNotFound grabs whatever DOM the timed-out navigation produced.
func (r *ChromeRenderer) probeNotFound(url string, html *string) error {
	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx)
	defer cancelTab()

	probeCtx, cancel := context.WithTimeout(tabCtx, 10*time.Second)
	defer cancel()

	return chromedp.Run(probeCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML(`html`, html, chromedp.ByQuery),
	)
}

// Close tears down the shared browser allocator.
func (r *ChromeRenderer) Close() {
	r.allocCancel()
}

package extractor

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"localbiz-extractor/internal/common/errors"
	"localbiz-extractor/internal/common/httpclient"
)

// StaticRenderer fetches the page over plain HTTP without executing scripts.
// Listing pages served to non-JS clients still carry the core fields, so this
// engine trades completeness for not needing a browser.
type StaticRenderer struct {
	client *httpclient.Client
}

func NewStaticRenderer(timeout time.Duration) *StaticRenderer {
	return &StaticRenderer{
		client: httpclient.NewClient(timeout, userAgent),
	}
}

func (r *StaticRenderer) Render(ctx context.Context, url string) (*RenderedPage, error) {
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(errors.ErrCodeRenderTimeout, "fetch timed out", err)
		}
		return nil, errors.Wrap(errors.ErrCodeRenderNavigation, "fetch failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.ErrCodeListingNotFound, "listing does not exist")
	case resp.StatusCode >= 400:
		return nil, errors.New(errors.ErrCodeRenderNavigation, "fetch returned "+resp.Status)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, 4<<20)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderNavigation, "reading response body", err)
	}

	html := buf.String()
	if IsNotFound(strings.NewReader(html)) {
		return nil, errors.New(errors.ErrCodeListingNotFound, "listing does not exist")
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &RenderedPage{HTML: html, FinalURL: finalURL}, nil
}

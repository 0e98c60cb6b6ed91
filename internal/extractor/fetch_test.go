package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localbiz-extractor/internal/common/errors"
)

func TestStaticRenderer_Render(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	r := NewStaticRenderer(5 * time.Second)
	page, err := r.Render(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, page.HTML, "Joe's Diner")
	assert.Equal(t, srv.URL, page.FinalURL)
}

func TestStaticRenderer_NotFoundStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := NewStaticRenderer(5 * time.Second)
	_, err := r.Render(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeListingNotFound, errors.Code(err))
	assert.False(t, errors.Retryable(err))
}

func TestStaticRenderer_NotFoundPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(notFoundPage))
	}))
	defer srv.Close()

	r := NewStaticRenderer(5 * time.Second)
	_, err := r.Render(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeListingNotFound, errors.Code(err))
}

func TestStaticRenderer_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewStaticRenderer(5 * time.Second)
	_, err := r.Render(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRenderNavigation, errors.Code(err))
	assert.True(t, errors.Retryable(err))
}

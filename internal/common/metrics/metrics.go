// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_extractions_total",
			Help: "Total number of extraction requests by outcome",
		},
		[]string{"outcome"},
	)

	ExtractionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_extraction_errors_total",
			Help: "Total number of failed extractions by error code",
		},
		[]string{"error_code"},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extractor_extraction_duration_seconds",
			Help:    "Duration of extraction processing in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"cached"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_cache_requests_total",
			Help: "Cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	CacheDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_cache_degraded",
			Help: "1 while the durable cache tier is unreachable",
		},
	)

	SessionPoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_session_pool_in_use",
			Help: "Number of render sessions currently leased",
		},
	)

	SingleFlightWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_singleflight_waiters",
			Help: "Number of callers attached to in-flight extractions",
		},
	)
)

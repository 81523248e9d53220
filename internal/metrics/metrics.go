// Package metrics exposes Prometheus collectors for the enrichment pipeline
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enrichmentStageTotal       *prometheus.CounterVec
	enrichmentInflight         prometheus.Gauge
	scrapeImagesTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		enrichmentStageTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapmark_enrichment_stage_total",
				Help: "Total number of enrichment stages run, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		enrichmentInflight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapmark_enrichment_inflight",
				Help: "Number of bookmarks currently being enriched.",
			},
		)

		scrapeImagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapmark_scrape_images_total",
				Help: "Total number of scraped post images, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStage counts one finished enrichment stage.
func ObserveStage(stage, outcome string) {
	Init()
	enrichmentStageTotal.WithLabelValues(stage, outcome).Inc()
}

// IncInflight marks a bookmark enrichment as started.
func IncInflight() {
	Init()
	enrichmentInflight.Inc()
}

// DecInflight marks a bookmark enrichment as finished.
func DecInflight() {
	Init()
	enrichmentInflight.Dec()
}

// ObserveImage counts one image download attempt; ok reports whether it was saved.
func ObserveImage(ok bool) {
	Init()
	result := "saved"
	if !ok {
		result = "failed"
	}
	scrapeImagesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

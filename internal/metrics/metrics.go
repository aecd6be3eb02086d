// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal         *prometheus.CounterVec
	scraperItemsTotal         *prometheus.CounterVec
	scraperFetchTimeoutsTotal prometheus.Counter
	scraperPausesTotal        prometheus.Counter
	scraperPauseSeconds       prometheus.Histogram
	scraperSessionsTotal      *prometheus.CounterVec
	scraperActiveSessions     prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of result pages fetched, labeled by status.",
			},
			[]string{"status"},
		)

		scraperItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_items_total",
				Help: "Total number of page items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scraperFetchTimeoutsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_fetch_timeouts_total",
				Help: "Total navigation timeouts, including recovered ones.",
			},
		)

		scraperPausesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_pauses_total",
				Help: "Total pacing pauses taken at checkpoint boundaries.",
			},
		)

		scraperPauseSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_pause_seconds",
				Help:    "Histogram of pacing pause durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
		)

		scraperSessionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_sessions_total",
				Help: "Total crawl sessions finished, labeled by final state.",
			},
			[]string{"state"},
		)

		scraperActiveSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_sessions",
				Help: "Number of crawl sessions currently running.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one fetched results page.
func ObservePage(status string) {
	if scraperPagesTotal == nil {
		return
	}
	scraperPagesTotal.WithLabelValues(status).Inc()
}

// ObserveItem records one processed page item by outcome
// (inserted, duplicate, rejected).
func ObserveItem(outcome string) {
	if scraperItemsTotal == nil {
		return
	}
	scraperItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchTimeout records one navigation timeout.
func ObserveFetchTimeout() {
	if scraperFetchTimeoutsTotal == nil {
		return
	}
	scraperFetchTimeoutsTotal.Inc()
}

// ObservePause records one pacing pause and its duration.
func ObservePause(d time.Duration) {
	if scraperPausesTotal == nil {
		return
	}
	scraperPausesTotal.Inc()
	scraperPauseSeconds.Observe(d.Seconds())
}

// SessionStarted marks a crawl session as active.
func SessionStarted() {
	if scraperActiveSessions == nil {
		return
	}
	scraperActiveSessions.Inc()
}

// SessionFinished marks a crawl session as done with its final state.
func SessionFinished(state string) {
	if scraperActiveSessions == nil {
		return
	}
	scraperActiveSessions.Dec()
	scraperSessionsTotal.WithLabelValues(state).Inc()
}

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gamma pages requested by the paginated fetcher.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polytrade_discovery_pages_total",
			Help: "Market pages requested, by result (ok, empty, error).",
		},
		[]string{"result"},
	)

	RecordsKept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polytrade_discovery_records_kept_total",
			Help: "Markets kept by the sports classifier.",
		},
	)

	Candidates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "polytrade_discovery_candidates",
			Help: "Markets inside the urgency window on the last run.",
		},
		[]string{"profile"},
	)

	SuggestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polytrade_discovery_suggestions_total",
			Help: "Suggestions emitted by the scorer.",
		},
		[]string{"profile"},
	)

	QuoteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polytrade_quote_errors_total",
			Help: "Quote fetch failures, by kind (rate_limited, other).",
		},
		[]string{"kind"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polytrade_discovery_run_duration_seconds",
			Help:    "Wall time of a full discovery run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms → ~100s
		},
		[]string{"profile"},
	)

	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polytrade_trades_total",
			Help: "Trades opened or closed, by event type.",
		},
		[]string{"event"},
	)

	NotifyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polytrade_notify_errors_total",
			Help: "Notification delivery failures, by channel.",
		},
		[]string{"channel"},
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polytrade_ws_clients",
			Help: "Connected websocket clients.",
		},
	)

	// Frames skipped because a client's send buffer was full.
	WSFramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polytrade_ws_frames_dropped_total",
			Help: "Websocket frames dropped for slow clients, by bus channel.",
		},
		[]string{"channel"},
	)
)

// ObserveDuration records the time elapsed since start on a histogram.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

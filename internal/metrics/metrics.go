// Package metrics defines the Prometheus collectors for the intake pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles all pipeline collectors, registered on one registry so
// multiple instances can coexist in tests.
type Metrics struct {
	Received       *prometheus.CounterVec
	Forwarded      prometheus.Counter
	Rejected       *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	DailyPosts     prometheus.Gauge
	ProcessingTime prometheus.Histogram
	RateLimitWaits prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_messages_received_total",
			Help: "Total messages received from source channels.",
		}, []string{"source"}),
		Forwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "bot_messages_forwarded_total",
			Help: "Total messages forwarded to the target channel.",
		}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_messages_rejected_total",
			Help: "Total messages rejected, by reason.",
		}, []string{"reason"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_errors_total",
			Help: "Total errors encountered, by type.",
		}, []string{"error_type"}),
		DailyPosts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bot_daily_posts",
			Help: "Number of posts forwarded today.",
		}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_message_processing_seconds",
			Help:    "Time spent processing messages.",
			Buckets: prometheus.DefBuckets,
		}),
		RateLimitWaits: factory.NewCounter(prometheus.CounterOpts{
			Name: "bot_rate_limiter_waits_total",
			Help: "Total rate limiter waits.",
		}),
	}
}

// RejectReason normalizes a verdict reason for the rejected counter so the
// label cardinality stays bounded.
func RejectReason(reason string) string {
	for i := 0; i < len(reason); i++ {
		if reason[i] == ':' {
			return reason[:i]
		}
	}
	return reason
}

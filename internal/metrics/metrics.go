// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "checkout"

// Quote fetch results.
const (
	QuoteOK      = "ok"
	QuoteError   = "error"
	QuoteInvalid = "invalid"
	QuoteStale   = "stale"
)

// Collector содержит метрики checkout-потока. Методы безопасны для nil-получателя,
// поэтому компоненты работают и без метрик.
type Collector struct {
	quoteFetches       *prometheus.CounterVec
	quoteLatency       prometheus.Histogram
	settlements        *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewCollector создает коллектор и регистрирует его метрики в reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		quoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_fetches_total",
			Help:      "Quote fetches by result",
		}, []string{"result"}),
		quoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_fetch_duration_seconds",
			Help:      "Quote fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement attempts by terminal state",
		}, []string{"state"}),
		settlementDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Settlement attempt duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"state"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Relay API requests by route and status",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Relay API latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		c.quoteFetches,
		c.quoteLatency,
		c.settlements,
		c.settlementDuration,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// RecordQuote records one quote fetch outcome.
func (c *Collector) RecordQuote(result string, duration time.Duration) {
	if c == nil {
		return
	}
	c.quoteFetches.WithLabelValues(result).Inc()
	if duration > 0 {
		c.quoteLatency.Observe(duration.Seconds())
	}
}

// RecordSettlement records the terminal state of an attempt.
func (c *Collector) RecordSettlement(state string, duration time.Duration) {
	if c == nil {
		return
	}
	c.settlements.WithLabelValues(state).Inc()
	c.settlementDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// RecordHTTP records a served relay request.
func (c *Collector) RecordHTTP(route, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, status).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

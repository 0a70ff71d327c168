package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordQuote(QuoteOK, 20*time.Millisecond)
	c.RecordQuote(QuoteOK, 30*time.Millisecond)
	c.RecordQuote(QuoteStale, 0)
	c.RecordSettlement("confirmed", 3*time.Second)
	c.RecordHTTP("/api/get-quote", "200", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.quoteFetches.WithLabelValues(QuoteOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.quoteFetches.WithLabelValues(QuoteStale)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.settlements.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("/api/get-quote", "200")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordQuote(QuoteError, time.Second)
		c.RecordSettlement("failed", time.Second)
		c.RecordHTTP("/", "500", time.Second)
	})
}

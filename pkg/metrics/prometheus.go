package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"agentdex/pkg/httpclient"
)

// Collector records aggregator request and swap metrics in Prometheus
type Collector struct {
	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec
	requestErrors   *prometheus.CounterVec
	swaps           *prometheus.CounterVec
}

var _ httpclient.MetricsCollector = &Collector{}

// NewCollector creates the collectors and registers them on reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentdex_request_duration_seconds",
				Help:    "Duration of aggregator API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentdex_requests_total",
				Help: "Total number of aggregator API requests",
			},
			[]string{"method", "route", "status"},
		),
		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentdex_request_errors_total",
				Help: "Total number of failed aggregator API requests",
			},
			[]string{"method", "route"},
		),
		swaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentdex_swaps_total",
				Help: "Total number of swap executions by outcome",
			},
			[]string{"outcome"},
		),
	}

	for _, collector := range []prometheus.Collector{c.requestDuration, c.requestCount, c.requestErrors, c.swaps} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// RecordRequestDuration implements httpclient.MetricsCollector.
func (c *Collector) RecordRequestDuration(method, path string, statusCode int, duration time.Duration) {
	c.requestDuration.WithLabelValues(method, route(path), strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// RecordRequestCount implements httpclient.MetricsCollector.
func (c *Collector) RecordRequestCount(method, path string, statusCode int) {
	c.requestCount.WithLabelValues(method, route(path), strconv.Itoa(statusCode)).Inc()
}

// RecordRequestError implements httpclient.MetricsCollector.
func (c *Collector) RecordRequestError(method, path string) {
	c.requestErrors.WithLabelValues(method, route(path)).Inc()
}

// RecordSwap counts one swap execution
func (c *Collector) RecordSwap(success bool) {
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	c.swaps.WithLabelValues(outcome).Inc()
}

// route keeps only the first path segment so wallet addresses do not become labels
func route(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(trimmed, "/?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return "/" + trimmed
}

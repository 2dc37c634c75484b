// Package metrics exposes the monitor's statistics for Prometheus scraping.
package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nixlim/mailwatch/internal/monitor"
)

const namespace = "mailwatch"

// Source is what the collector reads on every scrape.
type Source interface {
	Stats() monitor.Stats
	HealthStatus() monitor.Health
}

// Collector turns a monitor snapshot into Prometheus metrics at scrape time.
type Collector struct {
	src     Source
	dropped func() int64

	sent         *prometheus.Desc
	failed       *prometheus.Desc
	quotaUsed    *prometheus.Desc
	quotaLimit   *prometheus.Desc
	successRate  *prometheus.Desc
	avgResponse  *prometheus.Desc
	errors       *prometheus.Desc
	health       *prometheus.Desc
	lastReset    *prometheus.Desc
	droppedWrite *prometheus.Desc
}

// Option configures a Collector.
type Option func(*Collector)

// WithDroppedWrites exports the history store's dropped-write count.
func WithDroppedWrites(fn func() int64) Option {
	return func(c *Collector) { c.dropped = fn }
}

func NewCollector(src Source, opts ...Option) *Collector {
	c := &Collector{
		src: src,
		sent: prometheus.NewDesc(namespace+"_emails_sent",
			"Emails sent successfully in the current statistics epoch.", nil, nil),
		failed: prometheus.NewDesc(namespace+"_emails_failed",
			"Failed send attempts in the current statistics epoch.", nil, nil),
		quotaUsed: prometheus.NewDesc(namespace+"_quota_used",
			"Daily quota consumed.", nil, nil),
		quotaLimit: prometheus.NewDesc(namespace+"_quota_limit",
			"Configured daily quota, 0 when unlimited.", nil, nil),
		successRate: prometheus.NewDesc(namespace+"_success_rate_percent",
			"Share of attempts that succeeded, in percent.", nil, nil),
		avgResponse: prometheus.NewDesc(namespace+"_average_response_ms",
			"Mean latency of the most recent send attempts in milliseconds.", nil, nil),
		errors: prometheus.NewDesc(namespace+"_errors",
			"Failures in the current statistics epoch by error code.", []string{"code"}, nil),
		health: prometheus.NewDesc(namespace+"_health_status",
			"Health verdict: 0 healthy, 1 warning, 2 critical.", nil, nil),
		lastReset: prometheus.NewDesc(namespace+"_last_reset_timestamp_seconds",
			"Unix time of the last statistics reset.", nil, nil),
		droppedWrite: prometheus.NewDesc(namespace+"_storage_dropped_writes",
			"History writes dropped because the write queue was full.", nil, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sent
	ch <- c.failed
	ch <- c.quotaUsed
	ch <- c.quotaLimit
	ch <- c.successRate
	ch <- c.avgResponse
	ch <- c.errors
	ch <- c.health
	ch <- c.lastReset
	if c.dropped != nil {
		ch <- c.droppedWrite
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	h := c.src.HealthStatus()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	gauge(c.sent, float64(s.TotalSent))
	gauge(c.failed, float64(s.TotalFailed))
	gauge(c.quotaUsed, float64(s.QuotaUsed))
	gauge(c.quotaLimit, float64(s.QuotaLimit))
	gauge(c.successRate, s.SuccessRate)
	gauge(c.avgResponse, float64(s.AverageResponseTimeMs))
	gauge(c.health, float64(HealthValue(h.Status)))
	gauge(c.lastReset, float64(s.LastResetTime.Unix()))

	codes := make([]string, 0, len(s.ErrorsByType))
	for code := range s.ErrorsByType {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		gauge(c.errors, float64(s.ErrorsByType[code]), code)
	}

	if c.dropped != nil {
		ch <- prometheus.MustNewConstMetric(c.droppedWrite, prometheus.CounterValue, float64(c.dropped()))
	}
}

// HealthValue maps a health status to its exported gauge value.
func HealthValue(s monitor.Status) int {
	switch s {
	case monitor.StatusCritical:
		return 2
	case monitor.StatusWarning:
		return 1
	default:
		return 0
	}
}

// Exporter owns a private registry holding the monitor collector and the Go
// runtime and process collectors.
type Exporter struct {
	registry *prometheus.Registry
}

func NewExporter(c *Collector) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Exporter{registry: reg}
}

// Registry returns the exporter's registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

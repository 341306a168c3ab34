// Package observability holds the Prometheus metrics of the reporting service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics owns a private registry so that several instances can coexist in tests.
// Every method is safe to call on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	fetches         *prometheus.CounterVec
	diagnostics     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	snapshotSaves   *prometheus.CounterVec
	reportDuration  *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	refreshMessages *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posreports_fetch_total",
				Help: "Resolved row fetches by sheet and the strategy that served them.",
			},
			[]string{"sheet", "source"},
		),
		diagnostics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posreports_fetch_diagnostics_total",
				Help: "Fetch problems recorded before falling back.",
			},
			[]string{"sheet", "kind"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posreports_cache_hits_total",
				Help: "Row cache hits.",
			},
			[]string{"sheet"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posreports_cache_misses_total",
				Help: "Row cache misses.",
			},
			[]string{"sheet"},
		),
		snapshotSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posreports_snapshot_saves_total",
				Help: "Snapshot writes by outcome (saved, stale, error).",
			},
			[]string{"sheet", "result"},
		),
		reportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "posreports_report_duration_seconds",
				Help:    "Time spent computing a report, fetch included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posreports_http_requests_total",
				Help: "HTTP requests by route and status class.",
			},
			[]string{"route", "status"},
		),
		refreshMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posreports_refresh_messages_total",
				Help: "Refresh requests handled by the worker.",
			},
			[]string{"result"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncFetch(sheet, source string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(sheet, source).Inc()
}

func (m *Metrics) IncDiagnostic(sheet, kind string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(sheet, kind).Inc()
}

func (m *Metrics) IncCacheHit(sheet string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(sheet).Inc()
}

func (m *Metrics) IncCacheMiss(sheet string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(sheet).Inc()
}

func (m *Metrics) IncSnapshotSave(sheet, result string) {
	if m == nil {
		return
	}
	m.snapshotSaves.WithLabelValues(sheet, result).Inc()
}

func (m *Metrics) ObserveReport(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncHTTPRequest counts a request; status is collapsed to its class ("2xx").
func (m *Metrics) IncHTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func (m *Metrics) IncRefreshMessage(result string) {
	if m == nil {
		return
	}
	m.refreshMessages.WithLabelValues(result).Inc()
}

// FetchCount returns the current fetch counter for sheet and source.
func (m *Metrics) FetchCount(sheet, source string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.fetches, sheet, source)
}

// DiagnosticCount returns the current diagnostic counter for sheet and kind.
func (m *Metrics) DiagnosticCount(sheet, kind string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.diagnostics, sheet, kind)
}

// HTTPRequestCount returns the request counter for route and status class.
func (m *Metrics) HTTPRequestCount(route, class string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.httpRequests, route, class)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func counterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		return 0
	}
	if metric.Counter != nil && metric.Counter.Value != nil {
		return *metric.Counter.Value
	}
	return 0
}

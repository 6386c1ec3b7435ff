// Package metrics exposes Prometheus metrics for the HTTP surface and the
// site workflows. Labels are limited to route patterns and small enums.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sagarc03/sitehost"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight  prometheus.Gauge
	reqTotal  *prometheus.CounterVec
	reqDur    *prometheus.HistogramVec
	respBytes *prometheus.HistogramVec

	rateLimitedTotal prometheus.Counter

	publishTotal       *prometheus.CounterVec
	publishFailedTotal *prometheus.CounterVec
	resolveTotal       *prometheus.CounterVec
	deleteTotal        *prometheus.CounterVec
	sweptBlobsTotal    prometheus.Counter
}

var _ sitehost.Recorder = (*ServerMetrics)(nil)

// New returns a fresh registry with the Go and process collectors plus
// the HTTP and workflow metrics.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216},
		}, []string{"method", "route"}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total sign-in attempts rejected by the rate limiter",
		}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitehost_publish_total",
			Help: "Successful publishes by content kind and whether a new site was created",
		}, []string{"kind", "created"}),
		publishFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitehost_publish_failed_total",
			Help: "Rejected or failed publishes by reason",
		}, []string{"reason"}),
		resolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitehost_resolve_total",
			Help: "Site resolutions by outcome",
		}, []string{"outcome"}),
		deleteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitehost_site_deleted_total",
			Help: "Deleted sites by whether the blob was removed",
		}, []string{"blob_removed"}),
		sweptBlobsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitehost_swept_blobs_total",
			Help: "Orphaned blobs removed by the sweep",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.rateLimitedTotal,
		m.publishTotal,
		m.publishFailedTotal,
		m.resolveTotal,
		m.deleteTotal,
		m.sweptBlobsTotal,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *ServerMetrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *ServerMetrics) IncRateLimited() {
	m.rateLimitedTotal.Inc()
}

func (m *ServerMetrics) PublishCompleted(kind sitehost.ContentKind, created bool) {
	m.publishTotal.WithLabelValues(string(kind), boolLabel(created)).Inc()
}

func (m *ServerMetrics) PublishFailed(reason string) {
	m.publishFailedTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) Resolved(outcome sitehost.Outcome) {
	m.resolveTotal.WithLabelValues(outcome.String()).Inc()
}

func (m *ServerMetrics) SiteDeleted(blobRemoved bool) {
	m.deleteTotal.WithLabelValues(boolLabel(blobRemoved)).Inc()
}

func (m *ServerMetrics) BlobsSwept(removed int) {
	m.sweptBlobsTotal.Add(float64(removed))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

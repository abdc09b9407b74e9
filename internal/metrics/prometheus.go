package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private Prometheus registry and the collectors the server
// updates.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	analyses        *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	uploadBytes     prometheus.Histogram
	rateLimited     prometheus.Counter
}

// NewMetrics registers all collectors on a fresh registry. Each instance is
// independent, so tests can create as many as they like.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screen_audit_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screen_audit_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"route"}),
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screen_audit_analyses_total",
			Help: "Screenshot analyses by outcome code",
		}, []string{"outcome"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screen_audit_model_call_duration_seconds",
			Help:    "Model call latency by analysis step",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"step"}),
		uploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "screen_audit_upload_bytes",
			Help:    "Size of accepted uploads",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 7),
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "screen_audit_rate_limited_total",
			Help: "Uploads rejected by the rate limiter",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveAnalysis records the outcome of one analysis. outcome is "success"
// or an error code; the step durations are only observed when non-zero.
func (m *Metrics) ObserveAnalysis(outcome string, size int64, describe, report time.Duration) {
	m.analyses.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.uploadBytes.Observe(float64(size))
	}
	if describe > 0 {
		m.stepDuration.WithLabelValues("describe").Observe(describe.Seconds())
	}
	if report > 0 {
		m.stepDuration.WithLabelValues("report").Observe(report.Seconds())
	}

	if !InLambda() {
		return
	}
	rec := New(Namespace).
		Dimension("Operation", "analyze").
		Count("Analyses").
		Property("outcome", outcome)
	if outcome != "success" {
		rec.Count("AnalysisErrors")
	} else {
		rec.Metric("UploadBytes", float64(size), UnitBytes)
	}
	if describe > 0 {
		rec.Duration("DescribeLatencyMs", describe)
	}
	if report > 0 {
		rec.Duration("ReportLatencyMs", report)
	}
	rec.Flush()
}

// RateLimited counts one rejected upload.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

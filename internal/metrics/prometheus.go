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

// PrometheusRecorder exposes metrics through a dedicated Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	authCacheLookups    *prometheus.CounterVec
	authFailures        *prometheus.CounterVec
	rateLimitRejects    *prometheus.CounterVec
	resourceOps         *prometheus.CounterVec
	imageUploads        *prometheus.CounterVec
}

// NewPrometheus registers the recipebox collectors plus the Go and
// process collectors on a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipebox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipebox_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		authCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipebox_auth_cache_lookups_total",
				Help: "Token auth cache lookups by result",
			},
			[]string{"result"},
		),
		authFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipebox_auth_failures_total",
				Help: "Rejected credentials by reason",
			},
			[]string{"reason"},
		),
		rateLimitRejects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipebox_rate_limit_rejects_total",
				Help: "Total number of requests rejected due to rate limiting",
			},
			[]string{"scope"},
		),
		resourceOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipebox_resource_operations_total",
				Help: "Resource writes by resource and operation",
			},
			[]string{"resource", "op"},
		),
		imageUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipebox_image_uploads_total",
				Help: "Recipe image uploads by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records request count and latency.
func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncAuthCacheHit counts an auth cache hit.
func (p *PrometheusRecorder) IncAuthCacheHit() { p.authCacheLookups.WithLabelValues("hit").Inc() }

// IncAuthCacheMiss counts an auth cache miss.
func (p *PrometheusRecorder) IncAuthCacheMiss() { p.authCacheLookups.WithLabelValues("miss").Inc() }

// IncAuthFailure counts a rejected credential.
func (p *PrometheusRecorder) IncAuthFailure(reason string) {
	p.authFailures.WithLabelValues(reason).Inc()
}

// IncRateLimitReject counts a throttled request.
func (p *PrometheusRecorder) IncRateLimitReject(scope string) {
	p.rateLimitRejects.WithLabelValues(scope).Inc()
}

// IncCreated counts a created resource.
func (p *PrometheusRecorder) IncCreated(resource string) {
	p.resourceOps.WithLabelValues(resource, "create").Inc()
}

// IncUpdated counts an updated resource.
func (p *PrometheusRecorder) IncUpdated(resource string) {
	p.resourceOps.WithLabelValues(resource, "update").Inc()
}

// IncDeleted counts a deleted resource.
func (p *PrometheusRecorder) IncDeleted(resource string) {
	p.resourceOps.WithLabelValues(resource, "delete").Inc()
}

// IncImageUpload counts an image upload outcome.
func (p *PrometheusRecorder) IncImageUpload(outcome string) {
	p.imageUploads.WithLabelValues(outcome).Inc()
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vxgate"

// PrometheusRecorder exports metrics through a dedicated registry.
//
// Metrics:
//   - vxgate_http_requests_total{method,status}
//   - vxgate_http_request_duration_seconds{method}
//   - vxgate_pipeline_rejections_total{kind}
//   - vxgate_rate_limited_total
//   - vxgate_clients_issued_total
//   - vxgate_clients_swept_total
type PrometheusRecorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	rateLimited     prometheus.Counter
	clientsIssued   prometheus.Counter
	clientsSwept    prometheus.Counter
}

// NewPrometheus creates and registers all metrics on a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "rejections_total",
				Help:      "Requests rejected by the pipeline, by error kind",
			},
			[]string{"kind"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected because the client exceeded its window",
		}),
		clientsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_issued_total",
			Help:      "Client keys issued",
		}),
		clientsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_swept_total",
			Help:      "Inactive clients removed by the sweeper",
		}),
	}

	registry.MustRegister(
		p.requestsTotal,
		p.requestDuration,
		p.rejections,
		p.rateLimited,
		p.clientsIssued,
		p.clientsSwept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// ObserveRequest records one served request.
func (p *PrometheusRecorder) ObserveRequest(method string, status int, duration time.Duration) {
	p.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	p.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// IncRejection increments the rejection counter for kind.
func (p *PrometheusRecorder) IncRejection(kind string) {
	p.rejections.WithLabelValues(kind).Inc()
}

// IncRateLimited increments the rate limited counter.
func (p *PrometheusRecorder) IncRateLimited() {
	p.rateLimited.Inc()
}

// IncClientIssued increments the issued client counter.
func (p *PrometheusRecorder) IncClientIssued() {
	p.clientsIssued.Inc()
}

// AddClientsSwept adds n to the swept client counter.
func (p *PrometheusRecorder) AddClientsSwept(n int64) {
	if n > 0 {
		p.clientsSwept.Add(float64(n))
	}
}

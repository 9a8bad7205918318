package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry                 *prometheus.Registry
	requestTotal             *prometheus.CounterVec
	requestDuration          *prometheus.HistogramVec
	stageDuration            *prometheus.HistogramVec
	authRejectedTotal        prometheus.Counter
	writebackDispatchedTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgedge_handler_requests_total",
			Help: "Total HTTP requests handled by the transform origin.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imgedge_handler_request_duration_seconds",
			Help:    "Transform origin request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imgedge_handler_stage_duration_seconds",
			Help:    "Elapsed time per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		authRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgedge_handler_auth_rejected_total",
			Help: "Total requests rejected at the auth gate.",
		}),
		writebackDispatchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgedge_handler_writeback_dispatched_total",
			Help: "Total variants handed to the write-back store.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.stageDuration,
		m.authRejectedTotal,
		m.writebackDispatchedTotal,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses image paths into one label to bound cardinality.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	default:
		return "transform"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

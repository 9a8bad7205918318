package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	tasksTotal        *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	activeTasks       prometheus.Gauge
	bytesWrittenTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgedge_worker_tasks_total",
			Help: "Total write-back tasks by final status.",
		}, []string{"status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imgedge_worker_task_duration_seconds",
			Help:    "Processing duration for each write-back task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imgedge_worker_active_tasks",
			Help: "Current number of in-flight write-back tasks.",
		}),
		bytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgedge_worker_bytes_written_total",
			Help: "Total variant bytes written to the transformed-image bucket.",
		}),
	}

	registry.MustRegister(
		m.tasksTotal,
		m.taskDuration,
		m.activeTasks,
		m.bytesWrittenTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

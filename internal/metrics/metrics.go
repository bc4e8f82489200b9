// Package metrics exposes Prometheus instrumentation for the agent.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rentalagent"

type Metrics struct {
	registry *prometheus.Registry

	connected  prometheus.Gauge
	emitted    *prometheus.CounterVec
	containers *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	gpuFailed  prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Number of clients currently receiving telemetry.",
		}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events sent to clients, by event name.",
		}, []string{"event"}),
		containers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_operations_total",
			Help:      "Container operations, by operation and result.",
		}, []string{"method", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "container_operation_duration_seconds",
			Help:      "Duration of container operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		gpuFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gpu_query_failures_total",
			Help:      "GPU queries that fell back to zero utilization.",
		}),
	}

	m.registry.MustRegister(
		m.connected,
		m.emitted,
		m.containers,
		m.latency,
		m.gpuFailed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) SetConnected(n int) {
	m.connected.Set(float64(n))
}

func (m *Metrics) Emitted(event string) {
	m.emitted.WithLabelValues(event).Inc()
}

// ContainerOp records one controller call that started at begin.
func (m *Metrics) ContainerOp(method string, success bool, begin time.Time) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.containers.WithLabelValues(method, result).Inc()
	m.latency.WithLabelValues(method).Observe(time.Since(begin).Seconds())
}

func (m *Metrics) GPUQueryFailed(error) {
	m.gpuFailed.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

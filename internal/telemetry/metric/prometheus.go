package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kvmesh"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Snapshot metrics
	SnapshotDuration prometheus.Histogram
	SnapshotEntries  prometheus.Gauge
	SnapshotFailures prometheus.Counter

	// Replication metrics
	ReplicationSentTotal    prometheus.Counter
	ReplicationFailedTotal  prometheus.Counter
	ReplicationDroppedTotal prometheus.Counter
	ReplicationQueue        prometheus.Gauge

	// Transport metrics
	RequestsTotal *prometheus.CounterVec
}

// NewRegistry creates a registry with every kvmesh metric plus the Go and
// process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by operation and result.",
		}, []string{"op", "result"}),

		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   []float64{.000001, .00001, .0001, .001, .01, .1},
		}, []string{"op"}),

		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "Time spent writing a snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),

		SnapshotEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "entries",
			Help:      "Entries in the last successful snapshot.",
		}),

		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "failures_total",
			Help:      "Failed snapshot writes.",
		}),

		ReplicationSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "sent_total",
			Help:      "Writes accepted by the follower.",
		}),

		ReplicationFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "failed_total",
			Help:      "Writes the follower did not accept.",
		}),

		ReplicationDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "dropped_total",
			Help:      "Writes dropped because the queue was full or closing.",
		}),

		ReplicationQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "queue_depth",
			Help:      "Writes waiting to be replicated.",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.StoreOperations,
		r.StoreDuration,
		r.SnapshotDuration,
		r.SnapshotEntries,
		r.SnapshotFailures,
		r.ReplicationSentTotal,
		r.ReplicationFailedTotal,
		r.ReplicationDroppedTotal,
		r.ReplicationQueue,
		r.RequestsTotal,
	)

	return r
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registerer exposes the underlying registry for additional collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// ObserveOperation records one store operation.
func (r *Registry) ObserveOperation(op, result string, d time.Duration) {
	r.StoreOperations.WithLabelValues(op, result).Inc()
	r.StoreDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveSnapshot records one snapshot write.
func (r *Registry) ObserveSnapshot(entries int, d time.Duration, err error) {
	r.SnapshotDuration.Observe(d.Seconds())
	if err != nil {
		r.SnapshotFailures.Inc()
		return
	}
	r.SnapshotEntries.Set(float64(entries))
}

// ReplicationSent counts a write accepted by the follower.
func (r *Registry) ReplicationSent() { r.ReplicationSentTotal.Inc() }

// ReplicationFailed counts a failed replication request.
func (r *Registry) ReplicationFailed() { r.ReplicationFailedTotal.Inc() }

// ReplicationDropped counts a write that was never sent.
func (r *Registry) ReplicationDropped() { r.ReplicationDroppedTotal.Inc() }

// ReplicationQueueDepth sets the queue depth gauge.
func (r *Registry) ReplicationQueueDepth(n int) { r.ReplicationQueue.Set(float64(n)) }

// RecordRequest counts one HTTP request.
func (r *Registry) RecordRequest(method, code string) {
	r.RequestsTotal.WithLabelValues(method, code).Inc()
}

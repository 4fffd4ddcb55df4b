// Package metric provides Prometheus metrics for kvmesh.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Registry, HTTP handler and the store, snapshot,
//     replication and request metrics
//   - collector.go: ShardCollector, reading shard occupancy at scrape time
//
// Registry satisfies the Metrics interfaces of the storage and replication
// packages. Both fall back to no-op metrics when none is configured.
//
// Metrics are exposed at /metrics in Prometheus format.
package metric

package metric

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/kvmesh-go/internal/storage/shard"
)

// StatsSource reports per-shard statistics.
type StatsSource interface {
	Stats() []shard.Stats
}

// ShardCollector reports shard occupancy at scrape time.
type ShardCollector struct {
	src      StatsSource
	active   *prometheus.Desc
	capacity *prometheus.Desc
}

// NewShardCollector creates a collector reading from src.
func NewShardCollector(src StatsSource) *ShardCollector {
	return &ShardCollector{
		src: src,
		active: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "shard", "active_entries"),
			"Active entries per shard.",
			[]string{"shard"}, nil,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "shard", "capacity"),
			"Slot capacity per shard.",
			[]string{"shard"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *ShardCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
	ch <- c.capacity
}

// Collect implements prometheus.Collector.
func (c *ShardCollector) Collect(ch chan<- prometheus.Metric) {
	for i, st := range c.src.Stats() {
		label := strconv.Itoa(i)
		ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(st.Active), label)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity), label)
	}
}

// RegisterShardCollector registers a ShardCollector for src.
func (r *Registry) RegisterShardCollector(src StatsSource) error {
	return r.registry.Register(NewShardCollector(src))
}

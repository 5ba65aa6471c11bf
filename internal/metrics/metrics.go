// Package metrics wires the engine's Prometheus instrumentation:
// pools discovered/dropped, reorg depth, dropped-notification counts,
// and the synchronizer's head block gauge (SPEC_FULL.md DOMAIN STACK).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the engine registers. Callers
// construct one with New, register it with MustRegister, and pass it
// down to Discovery and
// the Synchronizer; a nil *Metrics is valid and all methods on it are
// no-ops, so instrumentation is opt-in.
type Metrics struct {
	PoolsDiscovered  *prometheus.CounterVec
	PoolsDropped     *prometheus.CounterVec
	ReorgDepth       prometheus.Histogram
	NotificationsDropped prometheus.Counter
	HeadBlock        prometheus.Gauge
}

// New creates the collector set without registering it, for tests or
// callers managing their own registry lifecycle.
func New() *Metrics {
	return &Metrics{
		PoolsDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statespace",
			Name:      "pools_discovered_total",
			Help:      "Pools inserted into the registry during discovery, by variant.",
		}, []string{"variant"}),
		PoolsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statespace",
			Name:      "pools_dropped_total",
			Help:      "Pool shells dropped during discovery, by reason.",
		}, []string{"variant", "reason"}),
		ReorgDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statespace",
			Name:      "reorg_depth_blocks",
			Help:      "Depth of chain reorganizations handled by the synchronizer.",
			Buckets:   prometheus.LinearBuckets(1, 1, 12),
		}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statespace",
			Name:      "notifications_dropped_total",
			Help:      "Change notifications dropped due to a slow subscriber.",
		}),
		HeadBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statespace",
			Name:      "head_block_number",
			Help:      "Most recently synchronized block number.",
		}),
	}
}

// MustRegister registers every collector against reg, panicking on a
// duplicate-registration error as the teacher lineage's metrics setup
// does at process start.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	if m == nil {
		return
	}
	reg.MustRegister(m.PoolsDiscovered, m.PoolsDropped, m.ReorgDepth, m.NotificationsDropped, m.HeadBlock)
}

func (m *Metrics) ObservePoolDiscovered(variant string) {
	if m == nil {
		return
	}
	m.PoolsDiscovered.WithLabelValues(variant).Inc()
}

func (m *Metrics) ObservePoolDropped(variant, reason string) {
	if m == nil {
		return
	}
	m.PoolsDropped.WithLabelValues(variant, reason).Inc()
}

func (m *Metrics) ObserveReorgDepth(depth int) {
	if m == nil {
		return
	}
	m.ReorgDepth.Observe(float64(depth))
}

func (m *Metrics) IncNotificationsDropped() {
	if m == nil {
		return
	}
	m.NotificationsDropped.Inc()
}

func (m *Metrics) SetHeadBlock(number uint64) {
	if m == nil {
		return
	}
	m.HeadBlock.Set(float64(number))
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePoolDiscovered("constant-product")
		m.ObservePoolDropped("concentrated", "zero token address")
		m.ObserveReorgDepth(3)
		m.IncNotificationsDropped()
		m.SetHeadBlock(42)
		m.MustRegister(prometheus.NewRegistry())
	})
}

func TestObservePoolDiscoveredIncrementsByVariant(t *testing.T) {
	m := New()
	m.ObservePoolDiscovered("constant-product")
	m.ObservePoolDiscovered("constant-product")
	m.ObservePoolDiscovered("weighted")

	metric := &dto.Metric{}
	require.NoError(t, m.PoolsDiscovered.WithLabelValues("constant-product").Write(metric))
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestSetHeadBlockOverwritesGaugeValue(t *testing.T) {
	m := New()
	m.SetHeadBlock(100)
	m.SetHeadBlock(150)

	metric := &dto.Metric{}
	require.NoError(t, m.HeadBlock.Write(metric))
	assert.Equal(t, float64(150), metric.GetGauge().GetValue())
}

func TestMustRegisterRegistersEveryCollectorOnce(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { m.MustRegister(reg) })

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

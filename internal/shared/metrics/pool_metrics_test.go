package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/connpool/internal/shared/metrics"
)

func TestPoolMetrics_ObserveSetsGaugesAndAddsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := metrics.NewPoolMetrics(reg, "primary")

	pm.Observe(metrics.Snapshot{Active: 2, Idle: 3}, 1, 1, 0.5, 0, 0, 0.2)
	pm.Observe(metrics.Snapshot{Active: 4, Idle: 1}, 1, 0, 0, 1, 1, 0.3)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	requests := byName["connpool_requests_total"]
	require.NotNil(t, requests)
	require.Len(t, requests.Metric, 1)
	require.Equal(t, float64(2), requests.Metric[0].GetCounter().GetValue())

	active := byName["connpool_active_connections"]
	require.NotNil(t, active)
	require.Equal(t, float64(4), active.Metric[0].GetGauge().GetValue())

	bad := byName["connpool_bad_connections_total"]
	require.NotNil(t, bad)
	require.Equal(t, float64(1), bad.Metric[0].GetCounter().GetValue())
}

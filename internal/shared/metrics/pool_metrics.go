// Package metrics exposes connpool's pool statistics as Prometheus
// instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PoolMetrics holds the Prometheus instruments for one DataSource.
type PoolMetrics struct {
	activeConnections    prometheus.Gauge
	idleConnections      prometheus.Gauge
	requestsTotal        prometheus.Counter
	waitTotal            prometheus.Counter
	waitSecondsTotal     prometheus.Counter
	badConnectionsTotal  prometheus.Counter
	claimedOverdueTotal  prometheus.Counter
	checkoutSecondsTotal prometheus.Counter
}

// NewPoolMetrics registers a fresh set of instruments under the given
// label, e.g. the pool's logical name. Registerer may be nil, in which
// case the default global registry is used.
func NewPoolMetrics(reg prometheus.Registerer, name string) *PoolMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	labels := prometheus.Labels{"pool": name}

	return &PoolMetrics{
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "connpool_active_connections",
			Help:        "Number of connections currently checked out.",
			ConstLabels: labels,
		}),
		idleConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "connpool_idle_connections",
			Help:        "Number of connections currently idle in the pool.",
			ConstLabels: labels,
		}),
		requestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "connpool_requests_total",
			Help:        "Total number of successful Acquire calls.",
			ConstLabels: labels,
		}),
		waitTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "connpool_had_to_wait_total",
			Help:        "Total number of Acquire calls that had to wait.",
			ConstLabels: labels,
		}),
		waitSecondsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "connpool_wait_seconds_total",
			Help:        "Accumulated time Acquire callers spent waiting.",
			ConstLabels: labels,
		}),
		badConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "connpool_bad_connections_total",
			Help:        "Total number of connections discarded as bad.",
			ConstLabels: labels,
		}),
		claimedOverdueTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "connpool_claimed_overdue_total",
			Help:        "Total number of overdue active connections reclaimed.",
			ConstLabels: labels,
		}),
		checkoutSecondsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "connpool_checkout_seconds_total",
			Help:        "Accumulated checkout duration across all releases.",
			ConstLabels: labels,
		}),
	}
}

// Snapshot is the subset of pool.Stats that drives the gauges; it is
// defined here (rather than imported from internal/pool) to keep this
// package free of a dependency on the pool package's internals.
type Snapshot struct {
	Active                 int
	Idle                   int
	RequestCount           int64
	HadToWaitCount         int64
	AccumulatedWaitTimeSec float64
	BadConnectionCount     int64
	ClaimedOverdueCount    int64
	AccumulatedCheckoutSec float64
}

// Observe sets the gauges from s.Active and s.Idle and adds the delta
// arguments to the counters. It keeps no previous totals: callers call it
// once per interval with the increments since their last call already
// computed (negative or zero deltas are ignored), keeping this type
// stateless.
func (m *PoolMetrics) Observe(s Snapshot, deltaRequests, deltaWaits int64, deltaWaitSec float64, deltaBad, deltaOverdue int64, deltaCheckoutSec float64) {
	m.activeConnections.Set(float64(s.Active))
	m.idleConnections.Set(float64(s.Idle))
	if deltaRequests > 0 {
		m.requestsTotal.Add(float64(deltaRequests))
	}
	if deltaWaits > 0 {
		m.waitTotal.Add(float64(deltaWaits))
	}
	if deltaWaitSec > 0 {
		m.waitSecondsTotal.Add(deltaWaitSec)
	}
	if deltaBad > 0 {
		m.badConnectionsTotal.Add(float64(deltaBad))
	}
	if deltaOverdue > 0 {
		m.claimedOverdueTotal.Add(float64(deltaOverdue))
	}
	if deltaCheckoutSec > 0 {
		m.checkoutSecondsTotal.Add(deltaCheckoutSec)
	}
}

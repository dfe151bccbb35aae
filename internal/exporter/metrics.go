package exporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts exporter activity.
type Metrics struct {
	registry *prometheus.Registry

	PoolsListed      *prometheus.CounterVec
	PoolsStored      *prometheus.CounterVec
	PoolsDeleted     *prometheus.CounterVec
	SnapshotsStored  *prometheus.CounterVec
	PriceLookupsFail prometheus.Counter
	Runs             *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PoolsListed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_pools_listed_total",
			Help: "Pools listed from subgraphs by protocol",
		}, []string{"protocol"}),
		PoolsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_pools_stored_total",
			Help: "New pools stored by protocol",
		}, []string{"protocol"}),
		PoolsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_pools_deleted_total",
			Help: "Pools deleted for missing token prices by protocol",
		}, []string{"protocol"}),
		SnapshotsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_snapshots_stored_total",
			Help: "Snapshots stored by kind",
		}, []string{"kind"}),
		PriceLookupsFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frontier_price_lookups_failed_total",
			Help: "Oracle price lookups that returned no price or failed",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_exporter_runs_total",
			Help: "Exporter runs by exporter and result",
		}, []string{"exporter", "result"}),
	}
	m.registry.MustRegister(m.PoolsListed, m.PoolsStored, m.PoolsDeleted, m.SnapshotsStored, m.PriceLookupsFail, m.Runs)
	return m
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

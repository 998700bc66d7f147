// Package metric provides Prometheus metrics for redstone.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all application metrics.
type Registry struct {
	// ConnectionsActive is the number of currently open client connections.
	ConnectionsActive prometheus.Gauge

	// CommandsTotal counts dispatched commands by verb.
	CommandsTotal *prometheus.CounterVec

	// KeyspaceSize is the number of live keys.
	KeyspaceSize prometheus.Gauge

	// AOFSize is the append-only log size in bytes, updated after rewrites.
	AOFSize prometheus.Gauge

	// SnapshotsTotal counts completed background saves.
	SnapshotsTotal prometheus.Counter

	// RewritesTotal counts completed AOF rewrites.
	RewritesTotal prometheus.Counter

	// FsyncsTotal counts explicit AOF fsyncs under the everysec policy.
	FsyncsTotal prometheus.Counter

	reg *prometheus.Registry
}

// NewRegistry creates and registers all application metrics.
func NewRegistry() *Registry {
	r := &Registry{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redstone_connections_active",
			Help: "Number of open client connections.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redstone_commands_total",
			Help: "Commands dispatched, by verb.",
		}, []string{"verb"}),
		KeyspaceSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redstone_keyspace_size",
			Help: "Number of live keys.",
		}),
		AOFSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redstone_aof_size_bytes",
			Help: "Append-only log size in bytes.",
		}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redstone_snapshots_total",
			Help: "Completed background saves.",
		}),
		RewritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redstone_aof_rewrites_total",
			Help: "Completed AOF rewrites.",
		}),
		FsyncsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redstone_aof_fsyncs_total",
			Help: "Explicit AOF fsyncs.",
		}),
		reg: prometheus.NewRegistry(),
	}

	r.reg.MustRegister(
		r.ConnectionsActive,
		r.CommandsTotal,
		r.KeyspaceSize,
		r.AOFSize,
		r.SnapshotsTotal,
		r.RewritesTotal,
		r.FsyncsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Package metrics provides the prometheus metrics registry for codenode
// graph builds.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all build metrics. A nil *Registry is valid and records
// nothing, so callers never need to guard metric calls.
type Registry struct {
	registry *prometheus.Registry

	BuildsTotal   *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	FilesTotal    *prometheus.CounterVec
	GraphNodes    prometheus.Gauge
	GraphEdges    prometheus.Gauge
	EdgesPruned   prometheus.Counter
	CacheLookups  *prometheus.CounterVec
}

// NewRegistry creates a registry with all metrics registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.BuildsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "codenode_builds_total",
			Help: "Total number of graph builds",
		},
		[]string{"mode", "status"}, // full|incremental, ok|cancelled
	)

	r.BuildDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codenode_build_duration_seconds",
			Help:    "Graph build duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
	)

	r.FilesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "codenode_files_total",
			Help: "Total number of files run through a detector",
		},
		[]string{"category", "status"}, // ok|failed
	)

	r.GraphNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "codenode_graph_nodes",
			Help: "Number of nodes in the last successful build",
		},
	)

	r.GraphEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "codenode_graph_edges",
			Help: "Number of edges in the last successful build",
		},
	)

	r.EdgesPruned = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "codenode_edges_pruned_total",
			Help: "Edges dropped because an endpoint node was missing after merge",
		},
	)

	r.CacheLookups = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "codenode_cache_lookups_total",
			Help: "Detection cache lookups",
		},
		[]string{"result"}, // hit|miss
	)

	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving the metrics in text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordBuild records a finished build. Graph size is only recorded for
// successful builds.
func (r *Registry) RecordBuild(mode, status string, duration time.Duration, nodes, edges, pruned int) {
	if r == nil {
		return
	}
	r.BuildsTotal.WithLabelValues(mode, status).Inc()
	if status != "ok" {
		return
	}
	r.BuildDuration.Observe(duration.Seconds())
	r.GraphNodes.Set(float64(nodes))
	r.GraphEdges.Set(float64(edges))
	r.EdgesPruned.Add(float64(pruned))
}

// RecordFile records one detector invocation.
func (r *Registry) RecordFile(category, status string) {
	if r == nil {
		return
	}
	r.FilesTotal.WithLabelValues(category, status).Inc()
}

// RecordCacheLookup records a detection cache hit or miss.
func (r *Registry) RecordCacheLookup(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		r.CacheLookups.WithLabelValues("miss").Inc()
	}
}

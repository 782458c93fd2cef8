// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EditsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtcore_edits_total",
		Help: "Total number of applied plan edits",
	})
	DistrictsChanged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtcore_districts_changed_total",
		Help: "Total district snapshots written by edits",
	})
	PurgedRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtcore_purged_rows_total",
		Help: "Total district snapshots deleted by purge",
	})
	GeometryRepairs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtcore_geometry_repairs_total",
		Help: "Total geometries repaired before comparison",
	})
	CompareDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "districtcore_compare_duration_ms",
		Help:    "Plan comparison duration in milliseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	})
	DistCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtcore_distcache_hits_total",
		Help: "Distance cache hits",
	})
	DistCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "districtcore_distcache_misses_total",
		Help: "Distance cache misses",
	})
)

func init() {
	prometheus.MustRegister(EditsTotal)
	prometheus.MustRegister(DistrictsChanged)
	prometheus.MustRegister(PurgedRows)
	prometheus.MustRegister(GeometryRepairs)
	prometheus.MustRegister(CompareDurationMs)
	prometheus.MustRegister(DistCacheHits)
	prometheus.MustRegister(DistCacheMisses)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

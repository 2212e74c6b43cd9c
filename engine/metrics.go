package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================================
// METRICS
// ============================================================================

// Metrics counts session work. All collectors are registered on the
// registerer passed to NewMetrics.
type Metrics struct {
	Rebuilds        *prometheus.CounterVec
	RebuildDuration *prometheus.HistogramVec
	ScaleBuilds     *prometheus.CounterVec
	Sorts           prometheus.Counter
	StaleResults    *prometheus.CounterVec
	VisibleRecords  prometheus.Gauge
}

// NewMetrics creates and registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "obsviz_rebuilds_total",
			Help: "Geometry rebuilds, by plot type",
		}, []string{"plot"}),
		RebuildDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "obsviz_rebuild_duration_seconds",
			Help:    "Duration of geometry rebuilds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"plot"}),
		ScaleBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "obsviz_scale_builds_total",
			Help: "Scales built from records, by axis",
		}, []string{"axis"}),
		Sorts: f.NewCounter(prometheus.CounterOpts{
			Name: "obsviz_sorts_total",
			Help: "Visible-set sorts by the line X field",
		}),
		StaleResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "obsviz_stale_results_total",
			Help: "Async results discarded because a newer request superseded them",
		}, []string{"kind"}),
		VisibleRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "obsviz_visible_records",
			Help: "Records in the current visible set",
		}),
	}
}

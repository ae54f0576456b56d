package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "station_clusters"

// Metrics holds the Prometheus counters, histograms, and gauges for the clustering pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,error}
	ReadingsLoaded  prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Outcome of the last successful run.
	StationsClustered prometheus.Gauge
	StationsDropped   prometheus.Gauge

	RunDuration prometheus.Histogram

	SinkErrors *prometheus.CounterVec // labels: sink
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Clustering runs by outcome.",
		}, []string{"outcome"}),
		ReadingsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_loaded_total",
			Help:      "Total readings loaded from the reading source.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the pipeline loop is active, 0 otherwise.",
		}),
		StationsClustered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_clustered",
			Help:      "Stations that received a cluster label in the last successful run.",
		}),
		StationsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_dropped",
			Help:      "Stations left out of the profile in the last successful run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load-cluster-save run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Result writes that failed, by sink.",
		}, []string{"sink"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.ReadingsLoaded,
		m.PipelineRunning,
		m.StationsClustered,
		m.StationsDropped,
		m.RunDuration,
		m.SinkErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

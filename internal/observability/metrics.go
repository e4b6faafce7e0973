package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shelter_map"

// Metrics holds the Prometheus collectors for shelter loading and publishing.
type Metrics struct {
	Loads              *prometheus.CounterVec // labels: outcome={published,source_error,canceled,superseded}
	RecordsRejected    *prometheus.CounterVec // labels: reason
	SheltersLoaded     prometheus.Gauge
	SnapshotGeneration prometheus.Gauge
	LoadDuration       prometheus.Histogram
	PersistErrors      prometheus.Counter
	StreamSubscribers  prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Shelter loads by outcome.",
		}, []string{"outcome"}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Source records excluded during validation, by reason.",
		}, []string{"reason"}),
		SheltersLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shelters_loaded",
			Help:      "Shelters in the currently published snapshot.",
		}),
		SnapshotGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_generation",
			Help:      "Generation number of the currently published snapshot.",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of a shelter load from fetch to publish.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15},
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Snapshots that failed to persist to the store.",
		}),
		StreamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open gRPC snapshot streams.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Loads,
		m.RecordsRejected,
		m.SheltersLoaded,
		m.SnapshotGeneration,
		m.LoadDuration,
		m.PersistErrors,
		m.StreamSubscribers,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

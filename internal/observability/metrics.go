package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mute_zones"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	FixesConsumed  prometheus.Counter
	FixesRejected  prometheus.Counter
	FixesIgnored   prometheus.Counter
	ZoneMatches    *prometheus.CounterVec // labels: zone
	TrackerRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Ringer control metrics.
	Outcomes           *prometheus.CounterVec   // labels: action={reconcile,override,dnd}, outcome, pathway
	DeviceCallDuration *prometheus.HistogramVec // labels: operation
	RingerSilenced     prometheus.Gauge

	// Zone store metrics.
	ZonesLoaded     prometheus.Gauge
	ZoneStoreErrors prometheus.Counter

	DecisionsPublished prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FixesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_consumed_total",
			Help:      "Total location fixes read from the fix source.",
		}),
		FixesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_rejected_total",
			Help:      "Total fixes skipped because they could not be decoded or had invalid coordinates.",
		}),
		FixesIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_ignored_total",
			Help:      "Total fixes skipped because they were reported by another device.",
		}),
		ZoneMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_matches_total",
			Help:      "Fixes that fell inside a mute zone, by zone name.",
		}, []string{"zone"}),
		TrackerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracker_running",
			Help:      "1 when the tracker loop is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of fixes per extracted batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-evaluate-commit cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ringer_outcomes_total",
			Help:      "Ringer and Do Not Disturb decisions by action, outcome and pathway.",
		}, []string{"action", "outcome", "pathway"}),
		DeviceCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_call_duration_seconds",
			Help:      "Device API call duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		RingerSilenced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ringer_silenced",
			Help:      "1 when the last applied ringer mode is silent, 0 otherwise.",
		}),
		ZonesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zones_loaded",
			Help:      "Number of zones returned by the last zone store read.",
		}),
		ZoneStoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_store_errors_total",
			Help:      "Zone store reads that failed.",
		}),
		DecisionsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_published_total",
			Help:      "Decision records written to the decision topic.",
		}),
	}

	prometheus.MustRegister(
		m.FixesConsumed,
		m.FixesRejected,
		m.FixesIgnored,
		m.ZoneMatches,
		m.TrackerRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Outcomes,
		m.DeviceCallDuration,
		m.RingerSilenced,
		m.ZonesLoaded,
		m.ZoneStoreErrors,
		m.DecisionsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FixesConsumed:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "fixes_consumed_total"}),
		FixesRejected:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "fixes_rejected_total"}),
		FixesIgnored:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "fixes_ignored_total"}),
		ZoneMatches:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "zone_matches_total"}, []string{"zone"}),
		TrackerRunning:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "tracker_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_processing_duration_seconds"}),
		Outcomes:                prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "ringer_outcomes_total"}, []string{"action", "outcome", "pathway"}),
		DeviceCallDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "device_call_duration_seconds"}, []string{"operation"}),
		RingerSilenced:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ringer_silenced"}),
		ZonesLoaded:             prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "zones_loaded"}),
		ZoneStoreErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "zone_store_errors_total"}),
		DecisionsPublished:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "decisions_published_total"}),
	}
}

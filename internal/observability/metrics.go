package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	CyclesRun        prometheus.Counter
	CycleDuration    prometheus.Histogram
	IngestRunning    prometheus.Gauge
	RegionsProcessed prometheus.Counter
	RegionFailures   *prometheus.CounterVec // labels: kind={fetch,parse}

	EntriesSeen          prometheus.Counter
	EntriesCreated       prometheus.Counter
	EntriesRefreshed     prometheus.Counter
	EntriesWithHistory   prometheus.Counter
	NormalizeErrors      prometheus.Counter
	PersistenceErrors    prometheus.Counter
	StormsMarkedInactive prometheus.Counter

	FetchDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "cycles_total",
			Help:      "Total ingestion cycles run.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_ingest",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete ingestion cycle across all regions.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_ingest",
			Name:      "cycle_running",
			Help:      "1 while an ingestion cycle is in progress, 0 otherwise.",
		}),
		RegionsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "regions_processed_total",
			Help:      "Total regions fully processed, across all cycles.",
		}),
		RegionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "region_failures_total",
			Help:      "Regions excluded from a cycle, by failure kind.",
		}, []string{"kind"}),
		EntriesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "entries_seen_total",
			Help:      "Total advisory entries observed in feeds.",
		}),
		EntriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "entries_created_total",
			Help:      "Total first-sighting storm records created.",
		}),
		EntriesRefreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "entries_refreshed_total",
			Help:      "Total storm state refreshes without a history append.",
		}),
		EntriesWithHistory: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "entries_with_history_total",
			Help:      "Total storm state refreshes that appended history.",
		}),
		NormalizeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "normalize_errors_total",
			Help:      "Total advisory entries skipped for missing required fields.",
		}),
		PersistenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "persistence_errors_total",
			Help:      "Total entries skipped due to storage failures.",
		}),
		StormsMarkedInactive: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_ingest",
			Name:      "storms_marked_inactive_total",
			Help:      "Total storms transitioned to inactive by the absence sweep.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_ingest",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of individual feed fetches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	prometheus.MustRegister(
		m.CyclesRun,
		m.CycleDuration,
		m.IngestRunning,
		m.RegionsProcessed,
		m.RegionFailures,
		m.EntriesSeen,
		m.EntriesCreated,
		m.EntriesRefreshed,
		m.EntriesWithHistory,
		m.NormalizeErrors,
		m.PersistenceErrors,
		m.StormsMarkedInactive,
		m.FetchDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CyclesRun:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "cycles_total"}),
		CycleDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "storm_ingest", Name: "cycle_duration_seconds"}),
		IngestRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "storm_ingest", Name: "cycle_running"}),
		RegionsProcessed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "regions_processed_total"}),
		RegionFailures:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "region_failures_total"}, []string{"kind"}),
		EntriesSeen:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "entries_seen_total"}),
		EntriesCreated:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "entries_created_total"}),
		EntriesRefreshed:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "entries_refreshed_total"}),
		EntriesWithHistory:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "entries_with_history_total"}),
		NormalizeErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "normalize_errors_total"}),
		PersistenceErrors:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "persistence_errors_total"}),
		StormsMarkedInactive: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_ingest", Name: "storms_marked_inactive_total"}),
		FetchDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "storm_ingest", Name: "fetch_duration_seconds"}),
	}
}

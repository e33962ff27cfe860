package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL
// pipeline.
type Metrics struct {
	FilesProcessed  prometheus.Counter
	FilesSkipped    prometheus.Counter
	PipelineRunning prometheus.Gauge

	SlicesProcessed prometheus.Counter
	SliceErrors     prometheus.Counter
	SliceDuration   prometheus.Histogram

	RecordsFlattened prometheus.Counter
	RecordsDropped   prometheus.Counter

	DocumentsUpserted prometheus.Counter
	DocumentsMatched  prometheus.Counter
	BulkWriteErrors   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesProcessed,
		m.FilesSkipped,
		m.PipelineRunning,
		m.SlicesProcessed,
		m.SliceErrors,
		m.SliceDuration,
		m.RecordsFlattened,
		m.RecordsDropped,
		m.DocumentsUpserted,
		m.DocumentsMatched,
		m.BulkWriteErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "files_processed_total",
			Help:      "Total grid files processed to completion.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "files_skipped_total",
			Help:      "Total grid files skipped after failing validation or open.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "pipeline_running",
			Help:      "1 while the load pipeline is active, 0 when finished.",
		}),
		SlicesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "slices_processed_total",
			Help:      "Total time slices transformed and loaded.",
		}),
		SliceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "slice_errors_total",
			Help:      "Total time slices skipped due to an error.",
		}),
		SliceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "slice_processing_duration_seconds",
			Help:      "Duration of a complete load-transform-write cycle for one slice.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RecordsFlattened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "records_flattened_total",
			Help:      "Total point records produced by flattening slices.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "records_dropped_total",
			Help:      "Total point records dropped during batch building.",
		}),
		DocumentsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "documents_upserted_total",
			Help:      "Total new documents inserted by bulk writes.",
		}),
		DocumentsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "documents_matched_total",
			Help:      "Total existing documents matched by bulk writes.",
		}),
		BulkWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "bulk_write_errors_total",
			Help:      "Total whole-batch write failures.",
		}),
	}
}

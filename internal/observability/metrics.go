package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the DSD
// processing pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// DSD core metrics.
	SpectraProcessed      *prometheus.CounterVec // labels: instrument
	UndefinedFits         prometheus.Counter
	ScatteringLookupFails prometheus.Counter
	FieldComputeDuration  *prometheus.HistogramVec // labels: field
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dsd",
			Name:      "messages_consumed_total",
			Help:      "Total raw spectrum messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dsd",
			Name:      "messages_produced_total",
			Help:      "Total derived-product messages written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dsd",
			Name:      "transform_errors_total",
			Help:      "Total spectrum transformation failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dsd",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dsd",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dsd",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		SpectraProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dsd",
			Name:      "spectra_processed_total",
			Help:      "Spectra fully processed, by instrument type.",
		}, []string{"instrument"}),
		UndefinedFits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dsd",
			Name:      "undefined_fits_total",
			Help:      "Gamma fits that returned the undefined sentinel (rain-free or sparse spectra).",
		}),
		ScatteringLookupFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dsd",
			Name:      "scattering_lookup_failures_total",
			Help:      "Radar moment computations aborted by out-of-domain scattering lookups.",
		}),
		FieldComputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dsd",
			Name:      "field_compute_duration_seconds",
			Help:      "Duration of one derived-field sequence computation.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"field"}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.SpectraProcessed,
		m.UndefinedFits,
		m.ScatteringLookupFails,
		m.FieldComputeDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "dsd", Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "dsd", Name: "messages_produced_total"}),
		TransformErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "dsd", Name: "transform_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "dsd", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "dsd", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "dsd", Name: "batch_processing_duration_seconds"}),
		SpectraProcessed:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "dsd", Name: "spectra_processed_total"}, []string{"instrument"}),
		UndefinedFits:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "dsd", Name: "undefined_fits_total"}),
		ScatteringLookupFails:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "dsd", Name: "scattering_lookup_failures_total"}),
		FieldComputeDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "dsd", Name: "field_compute_duration_seconds"}, []string{"field"}),
	}
}

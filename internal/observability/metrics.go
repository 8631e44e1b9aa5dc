package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "river_wqi"

// Metrics holds the Prometheus counters, histograms, and gauges for the WQI pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Assessment metrics.
	ReadingsRejected   *prometheus.CounterVec // labels: reason={invalid,out_of_range}
	WQI                prometheus.Histogram
	AssessmentsByClass *prometheus.CounterVec // labels: class={I..V}

	// Alert metrics.
	AlertsPending          *prometheus.CounterVec // labels: parameter
	AlertsRecorded         *prometheus.CounterVec // labels: parameter
	AlertsSuppressed       *prometheus.CounterVec // labels: parameter
	AlertPersistenceErrors prometheus.Counter
	AlertsPurged           prometheus.Counter

	// Prediction metrics.
	PredictorRequests    *prometheus.CounterVec // labels: outcome={success,error}
	PredictorCache       *prometheus.CounterVec // labels: result={hit,miss}
	PredictorAPIDuration prometheus.Histogram
	PredictorEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total assessments written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total readings that could not be assessed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      "Readings rejected before assessment, by reason.",
		}, []string{"reason"}),
		WQI: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wqi",
			Help:      "Distribution of computed water quality index values.",
			Buckets:   []float64{31, 51, 60, 76, 80, 92, 100},
		}),
		AssessmentsByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Assessed readings by DOE river class.",
		}, []string{"class"}),
		AlertsPending: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_pending_total",
			Help:      "Parameters that entered the pending alert state.",
		}, []string{"parameter"}),
		AlertsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_recorded_total",
			Help:      "Alert records persisted to the alert store.",
		}, []string{"parameter"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Acknowledgements that matched an existing alert record.",
		}, []string{"parameter"}),
		AlertPersistenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_persistence_errors_total",
			Help:      "Alert store failures during acknowledgement.",
		}),
		AlertsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_purged_total",
			Help:      "Alert records deleted by the retention job.",
		}),
		PredictorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictor_requests_total",
			Help:      "River status prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictorCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictor_cache_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		PredictorAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predictor_api_duration_seconds",
			Help:      "Prediction API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PredictorEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "predictor_enabled",
			Help:      "1 when prediction enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ReadingsRejected,
		m.WQI,
		m.AssessmentsByClass,
		m.AlertsPending,
		m.AlertsRecorded,
		m.AlertsSuppressed,
		m.AlertPersistenceErrors,
		m.AlertsPurged,
		m.PredictorRequests,
		m.PredictorCache,
		m.PredictorAPIDuration,
		m.PredictorEnabled,
	}
}

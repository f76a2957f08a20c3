package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// report pipeline and map store.
type Metrics struct {
	ExecutionsStarted   prometheus.Counter
	ExecutionsCompleted prometheus.Counter
	ExecutionsFailed    prometheus.Counter
	ExecutionsCancelled prometheus.Counter
	ExecutionsActive    prometheus.Gauge

	StageDuration     *prometheus.HistogramVec // label: stage
	ExecutionDuration prometheus.Histogram

	MapOperations      *prometheus.CounterVec // labels: op={store,get,list,delete}, outcome={success,error}
	EventPublishErrors prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ExecutionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clima_scope",
			Name:      "pipeline_executions_started_total",
			Help:      "Total pipeline executions started.",
		}),
		ExecutionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clima_scope",
			Name:      "pipeline_executions_completed_total",
			Help:      "Total pipeline executions that reached completed.",
		}),
		ExecutionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clima_scope",
			Name:      "pipeline_executions_failed_total",
			Help:      "Total pipeline executions that ended in failure.",
		}),
		ExecutionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clima_scope",
			Name:      "pipeline_executions_cancelled_total",
			Help:      "Total pipeline executions cancelled by callers.",
		}),
		ExecutionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clima_scope",
			Name:      "pipeline_executions_active",
			Help:      "Pipeline executions currently running.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clima_scope",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		ExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clima_scope",
			Name:      "pipeline_execution_duration_seconds",
			Help:      "End-to-end duration of a pipeline execution.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		MapOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clima_scope",
			Name:      "map_operations_total",
			Help:      "Map store operations by op and outcome.",
		}, []string{"op", "outcome"}),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clima_scope",
			Name:      "event_publish_errors_total",
			Help:      "Lifecycle events that could not be published.",
		}),
	}

	prometheus.MustRegister(
		m.ExecutionsStarted,
		m.ExecutionsCompleted,
		m.ExecutionsFailed,
		m.ExecutionsCancelled,
		m.ExecutionsActive,
		m.StageDuration,
		m.ExecutionDuration,
		m.MapOperations,
		m.EventPublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ExecutionsStarted:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "clima_scope", Name: "pipeline_executions_started_total"}),
		ExecutionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "clima_scope", Name: "pipeline_executions_completed_total"}),
		ExecutionsFailed:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "clima_scope", Name: "pipeline_executions_failed_total"}),
		ExecutionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "clima_scope", Name: "pipeline_executions_cancelled_total"}),
		ExecutionsActive:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "clima_scope", Name: "pipeline_executions_active"}),
		StageDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "clima_scope", Name: "pipeline_stage_duration_seconds"}, []string{"stage"}),
		ExecutionDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "clima_scope", Name: "pipeline_execution_duration_seconds"}),
		MapOperations:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "clima_scope", Name: "map_operations_total"}, []string{"op", "outcome"}),
		EventPublishErrors:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "clima_scope", Name: "event_publish_errors_total"}),
	}
}

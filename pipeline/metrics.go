package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for pipeline runs.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RowsLoaded      prometheus.Counter
	RowsTransformed prometheus.Counter
	RowErrors       *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	SummaryRows     *prometheus.GaugeVec
}

// NewMetrics constructs a dedicated registry and registers pipeline collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_pipeline_runs_total",
			Help: "Pipeline runs by outcome.",
		},
		[]string{"status"},
	)
	rowsLoaded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_rows_loaded_total",
			Help: "Raw rows read from the source.",
		},
	)
	rowsTransformed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_rows_transformed_total",
			Help: "Rows cleaned without error.",
		},
	)
	rowErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_row_errors_total",
			Help: "Malformed rows by error type.",
		},
		[]string{"error_type"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	summaryRows := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "campaign_summary_rows",
			Help: "Group count of each summary table in the last run.",
		},
		[]string{"summary"},
	)

	registry.MustRegister(runs, rowsLoaded, rowsTransformed, rowErrors, stageDuration, summaryRows)

	return &Metrics{
		Registry:        registry,
		RunsTotal:       runs,
		RowsLoaded:      rowsLoaded,
		RowsTransformed: rowsTransformed,
		RowErrors:       rowErrors,
		StageDuration:   stageDuration,
		SummaryRows:     summaryRows,
	}
}

// IncRun counts a finished run.
func (m *Metrics) IncRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// AddLoaded counts raw rows.
func (m *Metrics) AddLoaded(n int) {
	if m == nil {
		return
	}
	m.RowsLoaded.Add(float64(n))
}

// IncTransformed counts one cleaned row.
func (m *Metrics) IncTransformed() {
	if m == nil {
		return
	}
	m.RowsTransformed.Inc()
}

// IncRowError counts a malformed row for a type label.
func (m *Metrics) IncRowError(errorType string) {
	if m == nil {
		return
	}
	m.RowErrors.WithLabelValues(errorType).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetSummaryRows records the number of groups in a summary table.
func (m *Metrics) SetSummaryRows(summary string, n int) {
	if m == nil {
		return
	}
	m.SummaryRows.WithLabelValues(summary).Set(float64(n))
}

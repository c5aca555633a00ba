// Package metrics provides a batch observer that records execution metrics
// to a Prometheus registry.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

// PrometheusObserver records batch and row outcomes as Prometheus metrics.
type PrometheusObserver struct {
	registry *prometheus.Registry

	batchStatusCounter   *prometheus.CounterVec
	batchDurationSeconds *prometheus.HistogramVec
	rowStatusCounter     *prometheus.CounterVec
	rowErrorCounter      *prometheus.CounterVec
	shipmentCostCents    *prometheus.CounterVec
}

// NewPrometheusObserver creates and registers the batch metrics.
func NewPrometheusObserver() *PrometheusObserver {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	o := &PrometheusObserver{
		registry: registry,
		batchStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipbatch_batch_status_total",
			Help: "Total number of batch executions by final status.",
		}, []string{"job_name", "status"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shipbatch_batch_duration_seconds",
			Help:    "Duration of batch executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status"}),
		rowStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipbatch_row_status_total",
			Help: "Total number of processed rows by outcome.",
		}, []string{"job_name", "status"}),
		rowErrorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipbatch_row_error_total",
			Help: "Total number of row failures by error code.",
		}, []string{"job_name", "code"}),
		shipmentCostCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipbatch_shipment_cost_cents_total",
			Help: "Accumulated shipment cost in cents.",
		}, []string{"job_name"}),
	}

	registry.MustRegister(o.batchStatusCounter)
	registry.MustRegister(o.batchDurationSeconds)
	registry.MustRegister(o.rowStatusCounter)
	registry.MustRegister(o.rowErrorCounter)
	registry.MustRegister(o.shipmentCostCents)

	return o
}

var _ port.BatchObserver = (*PrometheusObserver)(nil)

// GetRegistry returns the Prometheus registry.
func (o *PrometheusObserver) GetRegistry() *prometheus.Registry {
	return o.registry
}

// OnBatchStarted records the start of a batch.
func (o *PrometheusObserver) OnBatchStarted(ctx context.Context, job *model.Job) {
	o.batchStatusCounter.WithLabelValues(job.Name, string(model.JobStatusRunning)).Inc()
	logger.Debugf("Metrics: batch '%s' started.", job.Name)
}

// OnRowStarted does nothing; only row outcomes are counted.
func (o *PrometheusObserver) OnRowStarted(ctx context.Context, job *model.Job, row *model.JobRow) {}

// OnRowCompleted records a shipped row and its cost.
func (o *PrometheusObserver) OnRowCompleted(ctx context.Context, job *model.Job, row *model.JobRow) {
	o.rowStatusCounter.WithLabelValues(job.Name, string(model.RowStatusCompleted)).Inc()
	o.shipmentCostCents.WithLabelValues(job.Name).Add(float64(row.CostCents))
}

// OnRowFailed records a failed row by error code.
func (o *PrometheusObserver) OnRowFailed(ctx context.Context, job *model.Job, row *model.JobRow, terr port.TranslatedError) {
	o.rowStatusCounter.WithLabelValues(job.Name, string(model.RowStatusFailed)).Inc()
	o.rowErrorCounter.WithLabelValues(job.Name, terr.Code).Inc()
}

// OnBatchCompleted records a completed batch with its duration.
func (o *PrometheusObserver) OnBatchCompleted(ctx context.Context, job *model.Job, result *model.BatchResult) {
	o.batchStatusCounter.WithLabelValues(job.Name, string(model.JobStatusCompleted)).Inc()
	o.batchDurationSeconds.WithLabelValues(job.Name, string(model.JobStatusCompleted)).Observe(result.DurationSeconds)
	logger.Debugf("Metrics: batch '%s' completed in %.3fs.", job.Name, result.DurationSeconds)
}

// OnBatchFailed records a failed batch with its duration.
func (o *PrometheusObserver) OnBatchFailed(ctx context.Context, job *model.Job, result *model.BatchResult, terr port.TranslatedError) {
	o.batchStatusCounter.WithLabelValues(job.Name, string(model.JobStatusFailed)).Inc()
	o.batchDurationSeconds.WithLabelValues(job.Name, string(model.JobStatusFailed)).Observe(result.DurationSeconds)
}

// Package tracing provides a batch observer that records execution spans
// through the OpenTelemetry API. Without a configured SDK exporter the
// spans are no-ops, so the observer is safe to register unconditionally.
package tracing

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

const tracerName = "github.com/tigerroll/shipbatch"

// Observer opens one span per batch and records row outcomes as span
// events. Spans are tracked by job ID between start and end callbacks.
type Observer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewObserver creates a tracing observer using the global tracer provider.
func NewObserver() *Observer {
	return &Observer{
		tracer: otel.Tracer(tracerName),
		spans:  make(map[string]trace.Span),
	}
}

var _ port.BatchObserver = (*Observer)(nil)

// OnBatchStarted opens the batch span.
func (o *Observer) OnBatchStarted(ctx context.Context, job *model.Job) {
	_, span := o.tracer.Start(ctx, "batch.execute", trace.WithAttributes(
		attribute.String("batch.job_id", job.ID),
		attribute.String("batch.job_name", job.Name),
		attribute.String("batch.mode", string(job.Mode)),
		attribute.Int("batch.total_rows", job.TotalRows),
	))

	o.mu.Lock()
	o.spans[job.ID] = span
	o.mu.Unlock()
}

// OnRowStarted records a row-start event on the batch span.
func (o *Observer) OnRowStarted(ctx context.Context, job *model.Job, row *model.JobRow) {
	if span := o.span(job.ID); span != nil {
		span.AddEvent("row.started", trace.WithAttributes(
			attribute.Int("row.number", row.RowNumber),
		))
	}
}

// OnRowCompleted records a row-completion event on the batch span.
func (o *Observer) OnRowCompleted(ctx context.Context, job *model.Job, row *model.JobRow) {
	if span := o.span(job.ID); span != nil {
		span.AddEvent("row.completed", trace.WithAttributes(
			attribute.Int("row.number", row.RowNumber),
			attribute.String("row.tracking_number", row.TrackingNumber),
			attribute.Int64("row.cost_cents", row.CostCents),
		))
	}
}

// OnRowFailed records the failure on the batch span.
func (o *Observer) OnRowFailed(ctx context.Context, job *model.Job, row *model.JobRow, terr port.TranslatedError) {
	if span := o.span(job.ID); span != nil {
		span.AddEvent("row.failed", trace.WithAttributes(
			attribute.Int("row.number", row.RowNumber),
			attribute.String("error.code", terr.Code),
		))
		span.RecordError(errors.New(terr.Message))
	}
}

// OnBatchCompleted ends the batch span with OK status.
func (o *Observer) OnBatchCompleted(ctx context.Context, job *model.Job, result *model.BatchResult) {
	if span := o.takeSpan(job.ID); span != nil {
		span.SetAttributes(
			attribute.Int("batch.successful_rows", result.SuccessfulRows),
			attribute.Int64("batch.total_cost_cents", result.TotalCostCents),
		)
		span.SetStatus(codes.Ok, "")
		span.End()
	}
}

// OnBatchFailed ends the batch span with error status.
func (o *Observer) OnBatchFailed(ctx context.Context, job *model.Job, result *model.BatchResult, terr port.TranslatedError) {
	if span := o.takeSpan(job.ID); span != nil {
		span.SetAttributes(attribute.String("error.code", terr.Code))
		span.SetStatus(codes.Error, terr.Message)
		span.End()
	}
}

func (o *Observer) span(jobID string) trace.Span {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.spans[jobID]
}

func (o *Observer) takeSpan(jobID string) trace.Span {
	o.mu.Lock()
	defer o.mu.Unlock()
	span := o.spans[jobID]
	delete(o.spans, jobID)
	return span
}

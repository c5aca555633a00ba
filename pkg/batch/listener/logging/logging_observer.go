// Package logging provides a batch observer that logs execution lifecycle
// events through the application logger.
package logging

import (
	"context"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

// Observer logs every batch lifecycle event.
type Observer struct{}

// NewObserver creates a logging observer.
func NewObserver() *Observer {
	return &Observer{}
}

var _ port.BatchObserver = (*Observer)(nil)

// OnBatchStarted logs the start of a batch.
func (o *Observer) OnBatchStarted(ctx context.Context, job *model.Job) {
	logger.Infof("Batch started: job '%s' (ID: %s), %d rows, mode=%s", job.Name, job.ID, job.TotalRows, job.Mode)
}

// OnRowStarted logs a row entering processing.
func (o *Observer) OnRowStarted(ctx context.Context, job *model.Job, row *model.JobRow) {
	logger.Debugf("Row %d/%d of job %s: processing", row.RowNumber, job.TotalRows, job.ID)
}

// OnRowCompleted logs a shipped row.
func (o *Observer) OnRowCompleted(ctx context.Context, job *model.Job, row *model.JobRow) {
	logger.Infof("Row %d/%d of job %s: shipped, tracking=%s cost=%s",
		row.RowNumber, job.TotalRows, job.ID, row.TrackingNumber, model.FormatMoneyCents(row.CostCents))
}

// OnRowFailed logs a failed row.
func (o *Observer) OnRowFailed(ctx context.Context, job *model.Job, row *model.JobRow, terr port.TranslatedError) {
	logger.Errorf("Row %d/%d of job %s: failed [%s] %s", row.RowNumber, job.TotalRows, job.ID, terr.Code, terr.Message)
}

// OnBatchCompleted logs a completed batch.
func (o *Observer) OnBatchCompleted(ctx context.Context, job *model.Job, result *model.BatchResult) {
	logger.Infof("Batch completed: job '%s' (ID: %s), %d/%d shipped, total cost %s, %.1fs",
		job.Name, job.ID, result.SuccessfulRows, result.TotalRows,
		model.FormatMoneyCents(result.TotalCostCents), result.DurationSeconds)
}

// OnBatchFailed logs a halted batch.
func (o *Observer) OnBatchFailed(ctx context.Context, job *model.Job, result *model.BatchResult, terr port.TranslatedError) {
	logger.Errorf("Batch failed: job '%s' (ID: %s), halted after %d/%d rows [%s] %s",
		job.Name, job.ID, result.SuccessfulRows, result.TotalRows, terr.Code, terr.Message)
	if terr.Hint != "" {
		logger.Infof("Hint: %s", terr.Hint)
	}
}

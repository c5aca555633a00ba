// Package executor drives batch shipment execution: the fail-fast,
// crash-recoverable row loop that turns a prepared job into shipments.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/events"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/mode"
	"github.com/tigerroll/shipbatch/pkg/batch/infrastructure/writeback"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

const moduleName = "executor"

// BatchExecutor runs prepared jobs row by row. Execution is fail-fast: the
// first row error halts the batch with the job in the failed state, and all
// already-completed rows keep their results so the batch can be resumed.
type BatchExecutor struct {
	jobRepo     repository.JobRepository
	auditRepo   repository.AuditRepository
	resolver    port.SourceResolver
	renderer    port.TemplateRenderer
	carrier     port.CarrierGateway
	translator  port.ErrorTranslator
	emitter     *events.Emitter
	modeManager *mode.SessionModeManager
	writeBack   *writeback.RetryingWriteBack
	notifier    port.Notifier
}

// NewBatchExecutor wires the executor's collaborators. notifier may be nil
// when end-of-batch notification is disabled.
func NewBatchExecutor(
	jobRepo repository.JobRepository,
	auditRepo repository.AuditRepository,
	resolver port.SourceResolver,
	renderer port.TemplateRenderer,
	carrier port.CarrierGateway,
	translator port.ErrorTranslator,
	emitter *events.Emitter,
	modeManager *mode.SessionModeManager,
	writeBack *writeback.RetryingWriteBack,
	notifier port.Notifier,
) *BatchExecutor {
	return &BatchExecutor{
		jobRepo:     jobRepo,
		auditRepo:   auditRepo,
		resolver:    resolver,
		renderer:    renderer,
		carrier:     carrier,
		translator:  translator,
		emitter:     emitter,
		modeManager: modeManager,
		writeBack:   writeBack,
		notifier:    notifier,
	}
}

// Prepare creates a pending job and materializes its row set from the
// filtered source. Row checksums are computed from the canonical form of
// each source row.
func (e *BatchExecutor) Prepare(ctx context.Context, name, originalCommand, sourceName string) (*model.Job, error) {
	source, err := e.resolver.Resolve(ctx, sourceName)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve source '%s'", sourceName), err, false)
	}

	rows, err := source.Rows(ctx)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to read rows from source '%s'", sourceName), err, false)
	}

	job := model.NewJob(name, originalCommand, fmt.Sprintf("%d rows from %s", len(rows), source.Name()), e.modeManager.EffectiveMode())
	if err := e.jobRepo.CreateJob(ctx, job); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create job", err, false)
	}

	seeds := make([]model.RowSeed, 0, len(rows))
	for _, row := range rows {
		checksum, err := model.RowChecksum(row.Data)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to checksum row %d", row.Number), err, false)
		}
		seeds = append(seeds, model.RowSeed{RowNumber: row.Number, Checksum: checksum})
	}
	if err := e.jobRepo.CreateRows(ctx, job.ID, seeds); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create job rows", err, false)
	}
	job.TotalRows = len(seeds)

	e.appendAudit(ctx, job.ID, "", "job_prepared", fmt.Sprintf("%d rows from source '%s'", len(seeds), source.Name()))
	return job, nil
}

// Execute runs a prepared or paused job to completion or first failure.
// The returned BatchResult is populated in every outcome; the error is
// non-nil when the batch halted.
//
// The session mode is locked for the duration of the run and always
// released, including on panic or early return.
func (e *BatchExecutor) Execute(ctx context.Context, jobID, mappingTemplate string, shipper model.ShipperInfo, sourceName string) (*model.BatchResult, error) {
	if err := e.modeManager.Lock(jobID); err != nil {
		return nil, exception.NewBatchError(moduleName, "another batch is already executing", err, false)
	}
	defer e.modeManager.Unlock()

	started := time.Now()

	job, err := e.jobRepo.GetJob(ctx, jobID)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to load job %s", jobID), err, false)
	}

	source, err := e.resolver.Resolve(ctx, sourceName)
	if err != nil {
		return nil, e.haltBeforeStart(ctx, job, exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve source '%s'", sourceName), err, false))
	}

	if err := e.jobRepo.UpdateStatus(ctx, jobID, model.JobStatusRunning); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to start job", err, false)
	}
	job.Status = model.JobStatusRunning
	e.emitter.BatchStarted(ctx, job)
	e.appendAudit(ctx, jobID, "", "batch_started", fmt.Sprintf("mode=%s", job.Mode))

	pending, err := e.jobRepo.GetPendingRows(ctx, jobID)
	if err != nil {
		return nil, e.haltBeforeStart(ctx, job, exception.NewBatchError(moduleName, "failed to load pending rows", err, false))
	}

	for _, row := range pending {
		select {
		case <-ctx.Done():
			return e.pauseBatch(ctx, job, started, ctx.Err())
		default:
		}

		if err := e.processRow(ctx, job, row, mappingTemplate, shipper, source); err != nil {
			return e.failBatch(ctx, job, row, started, err)
		}
	}

	return e.completeBatch(ctx, job, started)
}

// processRow ships one row: fetch its current source data, render, create
// the shipment, persist the outcome, write back to the source. A write-back
// failure is queued for the end-of-batch flush and does not fail the row.
func (e *BatchExecutor) processRow(ctx context.Context, job *model.Job, row *model.JobRow, mappingTemplate string, shipper model.ShipperInfo, source port.DataSource) error {
	if err := e.jobRepo.StartRow(ctx, row.ID); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to start row %d", row.RowNumber), err, false)
	}
	row.Status = model.RowStatusProcessing
	e.emitter.RowStarted(ctx, job, row)

	data, err := source.Row(ctx, row.RowNumber)
	if err != nil {
		return exception.NewBatchError("source",
			fmt.Sprintf("failed to fetch row %d from the source", row.RowNumber), err, false)
	}

	payload, err := e.renderer.Render(ctx, mappingTemplate, data, shipper)
	if err != nil {
		return exception.NewBatchError("renderer", fmt.Sprintf("failed to render row %d", row.RowNumber), err, false)
	}

	confirmation, err := e.carrier.CreateShipment(ctx, payload)
	if err != nil {
		return exception.NewBatchError("carrier", fmt.Sprintf("shipment creation failed for row %d", row.RowNumber), err, exception.IsTemporary(err))
	}
	if len(confirmation.TrackingNumbers) == 0 {
		return exception.NewBatchError("carrier", fmt.Sprintf("carrier returned no tracking number for row %d", row.RowNumber), nil, false)
	}

	costCents, err := model.ParseMoneyCents(confirmation.TotalCharges)
	if err != nil {
		return exception.NewBatchError("carrier", fmt.Sprintf("carrier returned unparseable charge for row %d", row.RowNumber), err, false)
	}

	trackingNumber := confirmation.TrackingNumbers[0]
	labelPath := ""
	if len(confirmation.LabelPaths) > 0 {
		labelPath = confirmation.LabelPaths[0]
	}

	if err := e.jobRepo.CompleteRow(ctx, row.ID, trackingNumber, labelPath, costCents); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to record completion of row %d", row.RowNumber), err, false)
	}
	row.Status = model.RowStatusCompleted
	row.TrackingNumber = trackingNumber
	row.LabelPath = labelPath
	row.CostCents = costCents
	job.ProcessedRows++
	job.SuccessfulRows++

	// Immediate write-back so an interrupted batch loses at most one
	// recorded result. Failure is non-fatal: the result is queued and
	// retried in the end-of-batch flush.
	if err := source.WriteBack(ctx, row.RowNumber, trackingNumber, labelPath, costCents); err != nil {
		logger.Warnf("Write-back failed for row %d of job %s, queued for retry: %v", row.RowNumber, job.ID, err)
		e.writeBack.Queue(job.ID, row.RowNumber, trackingNumber, labelPath, costCents)
	}

	e.appendAudit(ctx, job.ID, row.ID, "row_completed", fmt.Sprintf("tracking=%s cost=%s", trackingNumber, model.FormatMoneyCents(costCents)))
	e.emitter.RowCompleted(ctx, job, row)
	return nil
}

// failBatch records a row failure, moves the job to failed, and returns the
// result alongside the translated error.
func (e *BatchExecutor) failBatch(ctx context.Context, job *model.Job, row *model.JobRow, started time.Time, cause error) (*model.BatchResult, error) {
	terr := e.translator.Translate(cause)
	logger.Errorf("Batch %s halted at row %d: [%s] %s", job.ID, row.RowNumber, terr.Code, terr.Message)

	if err := e.jobRepo.FailRow(ctx, row.ID, terr.Code, terr.Message); err != nil {
		logger.Errorf("Failed to persist failure of row %d: %v", row.RowNumber, err)
	}
	row.Status = model.RowStatusFailed
	row.ErrorCode = terr.Code
	row.ErrorMessage = terr.Message
	job.ProcessedRows++
	job.FailedRows++
	e.emitter.RowFailed(ctx, job, row, terr)

	if err := e.jobRepo.SetJobError(ctx, job.ID, terr.Code, terr.Message); err != nil {
		logger.Errorf("Failed to persist job error for %s: %v", job.ID, err)
	}
	if err := e.jobRepo.UpdateStatus(ctx, job.ID, model.JobStatusFailed); err != nil {
		logger.Errorf("Failed to transition job %s to failed: %v", job.ID, err)
	}
	job.Status = model.JobStatusFailed
	job.ErrorCode = terr.Code
	job.ErrorMessage = terr.Message

	e.flushWriteBack(ctx, job.ID)
	e.appendAudit(ctx, job.ID, row.ID, "batch_failed", fmt.Sprintf("code=%s row=%d", terr.Code, row.RowNumber))

	result := e.buildResult(ctx, job, started)
	result.ErrorCode = terr.Code
	result.ErrorMessage = terr.Message
	e.emitter.BatchFailed(ctx, job, result, terr)
	e.notify(ctx, result)
	return result, cause
}

// pauseBatch transitions an interrupted job to paused so it can be resumed.
func (e *BatchExecutor) pauseBatch(ctx context.Context, job *model.Job, started time.Time, cause error) (*model.BatchResult, error) {
	// ctx is cancelled here; persistence uses a detached context so the
	// pause itself is not lost.
	persistCtx := context.WithoutCancel(ctx)
	if err := e.jobRepo.UpdateStatus(persistCtx, job.ID, model.JobStatusPaused); err != nil {
		logger.Errorf("Failed to pause job %s: %v", job.ID, err)
	}
	job.Status = model.JobStatusPaused
	e.flushWriteBack(persistCtx, job.ID)
	e.appendAudit(persistCtx, job.ID, "", "batch_paused", "execution interrupted")

	result := e.buildResult(persistCtx, job, started)
	return result, exception.NewBatchError(moduleName, fmt.Sprintf("batch %s paused", job.ID), cause, true)
}

// completeBatch finalizes a fully processed job.
func (e *BatchExecutor) completeBatch(ctx context.Context, job *model.Job, started time.Time) (*model.BatchResult, error) {
	if err := e.jobRepo.UpdateStatus(ctx, job.ID, model.JobStatusCompleted); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to complete job", err, false)
	}
	job.Status = model.JobStatusCompleted

	e.flushWriteBack(ctx, job.ID)
	e.appendAudit(ctx, job.ID, "", "batch_completed", fmt.Sprintf("%d rows", job.SuccessfulRows))

	result := e.buildResult(ctx, job, started)
	logger.Infof("Batch %s completed: %d/%d rows shipped, total cost %s",
		job.ID, result.SuccessfulRows, result.TotalRows, model.FormatMoneyCents(result.TotalCostCents))
	e.emitter.BatchCompleted(ctx, job, result)
	e.notify(ctx, result)
	return result, nil
}

// haltBeforeStart fails a job that could not begin executing at all.
func (e *BatchExecutor) haltBeforeStart(ctx context.Context, job *model.Job, cause error) error {
	terr := e.translator.Translate(cause)
	if err := e.jobRepo.SetJobError(ctx, job.ID, terr.Code, terr.Message); err != nil {
		logger.Errorf("Failed to persist job error for %s: %v", job.ID, err)
	}
	if err := e.jobRepo.UpdateStatus(ctx, job.ID, model.JobStatusFailed); err != nil {
		logger.Errorf("Failed to transition job %s to failed: %v", job.ID, err)
	}
	return cause
}

// buildResult aggregates the batch outcome from the persisted summary,
// falling back to in-memory counters if the summary query fails.
func (e *BatchExecutor) buildResult(ctx context.Context, job *model.Job, started time.Time) *model.BatchResult {
	result := &model.BatchResult{
		JobID:           job.ID,
		Status:          job.Status,
		TotalRows:       job.TotalRows,
		SuccessfulRows:  job.SuccessfulRows,
		FailedRows:      job.FailedRows,
		DurationSeconds: time.Since(started).Seconds(),
	}

	summary, err := e.jobRepo.GetJobSummary(ctx, job.ID)
	if err != nil {
		logger.Warnf("Failed to load summary for job %s: %v", job.ID, err)
		return result
	}
	result.TotalRows = summary.TotalRows
	result.SuccessfulRows = summary.SuccessfulRows
	result.FailedRows = summary.FailedRows
	result.TotalCostCents = summary.TotalCostCents
	result.TrackingNumbers = summary.TrackingNumbers
	return result
}

// flushWriteBack retries queued write-back entries at batch end.
func (e *BatchExecutor) flushWriteBack(ctx context.Context, jobID string) {
	if err := e.writeBack.Flush(ctx, jobID); err != nil {
		logger.Warnf("Write-back flush for job %s left unrecorded results: %v", jobID, err)
		e.appendAudit(ctx, jobID, "", "write_back_incomplete", exception.ExtractErrorMessage(err))
	}
}

// notify sends the end-of-batch summary if a notifier is configured.
func (e *BatchExecutor) notify(ctx context.Context, result *model.BatchResult) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyBatchFinished(ctx, result); err != nil {
		logger.Warnf("Batch notification failed for job %s: %v", result.JobID, err)
	}
}

// appendAudit records an audit entry, logging rather than failing on error.
func (e *BatchExecutor) appendAudit(ctx context.Context, jobID, rowID, event, detail string) {
	entry := &repository.AuditEntry{
		ID:        model.NewID(),
		JobID:     jobID,
		RowID:     rowID,
		Event:     event,
		Detail:    detail,
		CreatedAt: model.NowISO(),
	}
	if err := e.auditRepo.Append(ctx, entry); err != nil {
		logger.Warnf("Failed to append audit entry '%s' for job %s: %v", event, jobID, err)
	}
}

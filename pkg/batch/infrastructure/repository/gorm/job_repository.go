package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

const moduleName = "repository"

// JobRepository is the GORM implementation of repository.JobRepository.
// Status mutations validate against the state machines inside the same
// transaction that applies them, so a lost race surfaces as an
// InvalidTransitionError rather than silent corruption.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a JobRepository on the given connection.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ repository.JobRepository = (*JobRepository)(nil)

// CreateJob persists a new job in the pending state.
func (r *JobRepository) CreateJob(ctx context.Context, job *model.Job) error {
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if err := r.db.WithContext(ctx).Create(toJobEntity(job)).Error; err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to create job %s", job.ID), err, false)
	}
	return nil
}

// GetJob fetches a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var entity jobEntity
	err := r.db.WithContext(ctx).First(&entity, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrJobNotFound
	}
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to load job %s", jobID), err, false)
	}
	return toJobModel(&entity), nil
}

// ListJobs returns jobs most recent first, optionally filtered by status.
func (r *JobRepository) ListJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	query := r.db.WithContext(ctx).Model(&jobEntity{}).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entities []jobEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to list jobs", err, false)
	}
	jobs := make([]*model.Job, 0, len(entities))
	for i := range entities {
		jobs = append(jobs, toJobModel(&entities[i]))
	}
	return jobs, nil
}

// DeleteJob removes a job and all of its rows and audit entries.
func (r *JobRepository) DeleteJob(ctx context.Context, jobID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&jobRowEntity{}, "job_id = ?", jobID).Error; err != nil {
			return err
		}
		result := tx.Delete(&jobEntity{}, "id = ?", jobID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repository.ErrJobNotFound
		}
		return nil
	})
	if errors.Is(err, repository.ErrJobNotFound) {
		return err
	}
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to delete job %s", jobID), err, false)
	}
	return nil
}

// UpdateStatus transitions a job to a new status, validating against the
// job state machine. Transitioning to running stamps started_at on the
// first run; terminal transitions stamp completed_at.
func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity jobEntity
		if err := tx.First(&entity, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrJobNotFound
			}
			return err
		}

		current := model.JobStatus(entity.Status)
		if !model.CanTransition(current, status) {
			return invalidJobTransition(jobID, current, status)
		}

		now := model.NowISO()
		updates := map[string]interface{}{
			"status":     string(status),
			"updated_at": now,
		}
		if status == model.JobStatusRunning && entity.StartedAt == "" {
			updates["started_at"] = now
		}
		if status.IsTerminal() {
			updates["completed_at"] = now
		}
		return tx.Model(&jobEntity{}).Where("id = ?", jobID).Updates(updates).Error
	})

	var transition *repository.InvalidTransitionError
	if errors.Is(err, repository.ErrJobNotFound) || errors.As(err, &transition) {
		return err
	}
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to update status of job %s", jobID), err, false)
	}
	return nil
}

// SetJobError records an error code and message on a job.
func (r *JobRepository) SetJobError(ctx context.Context, jobID string, errorCode, errorMessage string) error {
	result := r.db.WithContext(ctx).Model(&jobEntity{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"error_code":    errorCode,
		"error_message": errorMessage,
		"updated_at":    model.NowISO(),
	})
	if result.Error != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to set error on job %s", jobID), result.Error, false)
	}
	if result.RowsAffected == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

// CreateRows materializes the pending row set for a job and sets the job's
// total row count in the same transaction.
func (r *JobRepository) CreateRows(ctx context.Context, jobID string, seeds []model.RowSeed) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := model.NowISO()
		for _, seed := range seeds {
			entity := &jobRowEntity{
				ID:          model.NewID(),
				JobID:       jobID,
				RowNumber:   seed.RowNumber,
				RowChecksum: seed.Checksum,
				Status:      string(model.RowStatusPending),
				CreatedAt:   now,
			}
			if err := tx.Create(entity).Error; err != nil {
				return err
			}
		}
		return tx.Model(&jobEntity{}).Where("id = ?", jobID).Updates(map[string]interface{}{
			"total_rows": len(seeds),
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to create rows for job %s", jobID), err, false)
	}
	return nil
}

// GetRows returns all rows of a job ordered by row number.
func (r *JobRepository) GetRows(ctx context.Context, jobID string) ([]*model.JobRow, error) {
	return r.findRows(ctx, jobID, "")
}

// GetPendingRows returns the job's pending rows ordered by row number.
func (r *JobRepository) GetPendingRows(ctx context.Context, jobID string) ([]*model.JobRow, error) {
	return r.findRows(ctx, jobID, model.RowStatusPending)
}

func (r *JobRepository) findRows(ctx context.Context, jobID string, status model.RowStatus) ([]*model.JobRow, error) {
	query := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("row_number ASC")
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var entities []jobRowEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to load rows of job %s", jobID), err, false)
	}
	rows := make([]*model.JobRow, 0, len(entities))
	for i := range entities {
		rows = append(rows, toRowModel(&entities[i]))
	}
	return rows, nil
}

// GetRow fetches a single row by ID.
func (r *JobRepository) GetRow(ctx context.Context, rowID string) (*model.JobRow, error) {
	var entity jobRowEntity
	err := r.db.WithContext(ctx).First(&entity, "id = ?", rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrRowNotFound
	}
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to load row %s", rowID), err, false)
	}
	return toRowModel(&entity), nil
}

// StartRow transitions a row from pending to processing.
func (r *JobRepository) StartRow(ctx context.Context, rowID string) error {
	return r.transitionRow(ctx, rowID, model.RowStatusProcessing, nil, nil)
}

// CompleteRow transitions a row to completed, records the shipment outcome,
// and increments the parent job's processed and successful counters in the
// same transaction.
func (r *JobRepository) CompleteRow(ctx context.Context, rowID string, trackingNumber, labelPath string, costCents int64) error {
	rowUpdates := map[string]interface{}{
		"tracking_number": trackingNumber,
		"label_path":      labelPath,
		"cost_cents":      costCents,
		"processed_at":    model.NowISO(),
	}
	return r.transitionRow(ctx, rowID, model.RowStatusCompleted, rowUpdates, map[string]interface{}{
		"processed_rows":  gorm.Expr("processed_rows + 1"),
		"successful_rows": gorm.Expr("successful_rows + 1"),
	})
}

// FailRow transitions a row to failed, records the error, and increments
// the parent job's processed and failed counters in the same transaction.
func (r *JobRepository) FailRow(ctx context.Context, rowID string, errorCode, errorMessage string) error {
	rowUpdates := map[string]interface{}{
		"error_code":    errorCode,
		"error_message": errorMessage,
		"processed_at":  model.NowISO(),
	}
	return r.transitionRow(ctx, rowID, model.RowStatusFailed, rowUpdates, map[string]interface{}{
		"processed_rows": gorm.Expr("processed_rows + 1"),
		"failed_rows":    gorm.Expr("failed_rows + 1"),
	})
}

// SkipRow transitions a row from processing to skipped.
func (r *JobRepository) SkipRow(ctx context.Context, rowID string, reason string) error {
	return r.transitionRow(ctx, rowID, model.RowStatusSkipped, map[string]interface{}{
		"error_message": reason,
		"processed_at":  model.NowISO(),
	}, nil)
}

// transitionRow applies a validated row status transition plus optional row
// field updates and parent job counter updates, all in one transaction.
func (r *JobRepository) transitionRow(ctx context.Context, rowID string, next model.RowStatus, rowUpdates, jobUpdates map[string]interface{}) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity jobRowEntity
		if err := tx.First(&entity, "id = ?", rowID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrRowNotFound
			}
			return err
		}

		current := model.RowStatus(entity.Status)
		if !model.CanTransitionRow(current, next) {
			return invalidRowTransition(rowID, current, next)
		}

		updates := map[string]interface{}{"status": string(next)}
		for k, v := range rowUpdates {
			updates[k] = v
		}
		if err := tx.Model(&jobRowEntity{}).Where("id = ?", rowID).Updates(updates).Error; err != nil {
			return err
		}

		if len(jobUpdates) > 0 {
			jobUpdates["updated_at"] = model.NowISO()
			if err := tx.Model(&jobEntity{}).Where("id = ?", entity.JobID).Updates(jobUpdates).Error; err != nil {
				return err
			}
		}
		return nil
	})

	var transition *repository.InvalidTransitionError
	if errors.Is(err, repository.ErrRowNotFound) || errors.As(err, &transition) {
		return err
	}
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to transition row %s to %s", rowID, next), err, false)
	}
	return nil
}

// GetJobSummary aggregates a job's persisted outcome. The cost total is
// computed by the database over completed rows, never from in-memory state.
func (r *JobRepository) GetJobSummary(ctx context.Context, jobID string) (*model.JobSummary, error) {
	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var totalCost int64
	err = r.db.WithContext(ctx).Model(&jobRowEntity{}).
		Where("job_id = ? AND status = ?", jobID, string(model.RowStatusCompleted)).
		Select("COALESCE(SUM(cost_cents), 0)").
		Scan(&totalCost).Error
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to sum costs of job %s", jobID), err, false)
	}

	var pendingCount int64
	err = r.db.WithContext(ctx).Model(&jobRowEntity{}).
		Where("job_id = ? AND status = ?", jobID, string(model.RowStatusPending)).
		Count(&pendingCount).Error
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to count pending rows of job %s", jobID), err, false)
	}

	var trackingNumbers []string
	err = r.db.WithContext(ctx).Model(&jobRowEntity{}).
		Where("job_id = ? AND status = ?", jobID, string(model.RowStatusCompleted)).
		Order("row_number ASC").
		Pluck("tracking_number", &trackingNumbers).Error
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to collect tracking numbers of job %s", jobID), err, false)
	}

	return &model.JobSummary{
		JobID:           job.ID,
		Name:            job.Name,
		Status:          job.Status,
		TotalRows:       job.TotalRows,
		SuccessfulRows:  job.SuccessfulRows,
		FailedRows:      job.FailedRows,
		PendingRows:     int(pendingCount),
		TotalCostCents:  totalCost,
		TrackingNumbers: trackingNumbers,
	}, nil
}

// FindInterruptedJobs returns jobs left in the running or paused state,
// most recent first.
func (r *JobRepository) FindInterruptedJobs(ctx context.Context) ([]*model.InterruptedJobInfo, error) {
	var entities []jobEntity
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(model.JobStatusRunning), string(model.JobStatusPaused)}).
		Order("created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to find interrupted jobs", err, false)
	}

	infos := make([]*model.InterruptedJobInfo, 0, len(entities))
	for i := range entities {
		e := &entities[i]
		info := &model.InterruptedJobInfo{
			JobID:          e.ID,
			Name:           e.Name,
			Status:         model.JobStatus(e.Status),
			TotalRows:      e.TotalRows,
			ProcessedRows:  e.ProcessedRows,
			SuccessfulRows: e.SuccessfulRows,
			FailedRows:     e.FailedRows,
			RemainingRows:  e.TotalRows - e.ProcessedRows,
			ErrorCode:      e.ErrorCode,
			ErrorMessage:   e.ErrorMessage,
			StartedAt:      e.StartedAt,
		}

		// The highest-numbered completed row tells the operator where the
		// previous run got to.
		var lastRow jobRowEntity
		err := r.db.WithContext(ctx).
			Where("job_id = ? AND status = ?", e.ID, string(model.RowStatusCompleted)).
			Order("row_number DESC").
			First(&lastRow).Error
		switch {
		case err == nil:
			info.LastRowNumber = lastRow.RowNumber
			info.LastTrackingNumber = lastRow.TrackingNumber
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No row completed before the interruption.
		default:
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to find last completed row of job %s", e.ID), err, false)
		}

		infos = append(infos, info)
	}
	return infos, nil
}

// ResetJobForRestart clears all row outcomes and counters, returning the
// job to a state equivalent to freshly created with pending rows. Already
// shipped rows lose their link to the job, so a restart can produce
// duplicate shipments; callers warn the operator before invoking this.
func (r *JobRepository) ResetJobForRestart(ctx context.Context, jobID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity jobEntity
		if err := tx.First(&entity, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrJobNotFound
			}
			return err
		}

		now := model.NowISO()
		if err := tx.Model(&jobRowEntity{}).Where("job_id = ?", jobID).Updates(map[string]interface{}{
			"status":          string(model.RowStatusPending),
			"tracking_number": "",
			"label_path":      "",
			"cost_cents":      0,
			"error_code":      "",
			"error_message":   "",
			"processed_at":    "",
		}).Error; err != nil {
			return err
		}

		return tx.Model(&jobEntity{}).Where("id = ?", jobID).Updates(map[string]interface{}{
			"status":          string(model.JobStatusPending),
			"processed_rows":  0,
			"successful_rows": 0,
			"failed_rows":     0,
			"error_code":      "",
			"error_message":   "",
			"started_at":      "",
			"completed_at":    "",
			"updated_at":      now,
		}).Error
	})
	if errors.Is(err, repository.ErrJobNotFound) {
		return err
	}
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to reset job %s for restart", jobID), err, false)
	}
	return nil
}

func invalidJobTransition(jobID string, current, attempted model.JobStatus) *repository.InvalidTransitionError {
	allowed := model.AllowedTransitions(current)
	allowedStr := make([]string, 0, len(allowed))
	for _, a := range allowed {
		allowedStr = append(allowedStr, string(a))
	}
	return &repository.InvalidTransitionError{
		Entity:    "job",
		ID:        jobID,
		Current:   string(current),
		Attempted: string(attempted),
		Allowed:   allowedStr,
	}
}

func invalidRowTransition(rowID string, current, attempted model.RowStatus) *repository.InvalidTransitionError {
	allowed := model.AllowedRowTransitions(current)
	allowedStr := make([]string, 0, len(allowed))
	for _, a := range allowed {
		allowedStr = append(allowedStr, string(a))
	}
	return &repository.InvalidTransitionError{
		Entity:    "row",
		ID:        rowID,
		Current:   string(current),
		Attempted: string(attempted),
		Allowed:   allowedStr,
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
)

// ErrJobNotFound is returned when the requested job does not exist.
var ErrJobNotFound = errors.New("job not found")

// ErrRowNotFound is returned when the requested job row does not exist.
var ErrRowNotFound = errors.New("job row not found")

// InvalidTransitionError reports a rejected state machine transition. It
// carries the current state, the attempted target, and the set of targets
// that would have been allowed.
type InvalidTransitionError struct {
	Entity    string
	ID        string
	Current   string
	Attempted string
	Allowed   []string
}

func (e *InvalidTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("invalid %s transition for %s: %s -> %s (allowed: %s)",
		e.Entity, e.ID, e.Current, e.Attempted, allowed)
}

// JobRepository persists jobs and their rows, enforcing the job and row
// state machines on every status mutation.
type JobRepository interface {
	// CreateJob persists a new job in the pending state.
	CreateJob(ctx context.Context, job *model.Job) error
	// GetJob fetches a job by ID. Returns ErrJobNotFound if absent.
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	// ListJobs returns jobs most recent first, optionally filtered by status.
	// A zero limit means no limit.
	ListJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
	// DeleteJob removes a job and all of its rows.
	DeleteJob(ctx context.Context, jobID string) error
	// UpdateStatus transitions a job to a new status, validating against the
	// job state machine. Returns *InvalidTransitionError on a rejected move.
	UpdateStatus(ctx context.Context, jobID string, status model.JobStatus) error
	// SetJobError records an error code and message on a job without
	// changing its status.
	SetJobError(ctx context.Context, jobID string, errorCode, errorMessage string) error

	// CreateRows materializes the pending row set for a job and sets the
	// job's total row count in the same transaction.
	CreateRows(ctx context.Context, jobID string, seeds []model.RowSeed) error
	// GetRows returns all rows of a job ordered by row number.
	GetRows(ctx context.Context, jobID string) ([]*model.JobRow, error)
	// GetPendingRows returns the job's pending rows ordered by row number.
	// Resume after a crash depends on this ordering.
	GetPendingRows(ctx context.Context, jobID string) ([]*model.JobRow, error)
	// GetRow fetches a single row by ID. Returns ErrRowNotFound if absent.
	GetRow(ctx context.Context, rowID string) (*model.JobRow, error)

	// StartRow transitions a row from pending to processing.
	StartRow(ctx context.Context, rowID string) error
	// CompleteRow transitions a row to completed, records the shipment
	// outcome, and increments the parent job's processed and successful
	// counters in the same transaction.
	CompleteRow(ctx context.Context, rowID string, trackingNumber, labelPath string, costCents int64) error
	// FailRow transitions a row to failed, records the error, and increments
	// the parent job's processed and failed counters in the same transaction.
	FailRow(ctx context.Context, rowID string, errorCode, errorMessage string) error
	// SkipRow transitions a row from processing to skipped.
	SkipRow(ctx context.Context, rowID string, reason string) error

	// GetJobSummary aggregates a job's persisted outcome, computing the cost
	// total from completed rows in the database.
	GetJobSummary(ctx context.Context, jobID string) (*model.JobSummary, error)
	// FindInterruptedJobs returns jobs left in the running or paused state,
	// most recent first.
	FindInterruptedJobs(ctx context.Context) ([]*model.InterruptedJobInfo, error)
	// ResetJobForRestart clears all row outcomes and counters, returning the
	// job to a state equivalent to freshly created with pending rows.
	ResetJobForRestart(ctx context.Context, jobID string) error
}

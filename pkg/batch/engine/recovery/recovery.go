// Package recovery detects jobs interrupted by a crash and applies the
// operator's recovery choice: resume, restart from scratch, or cancel.
package recovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

const moduleName = "recovery"

// Choice is an operator's decision for one interrupted job.
type Choice string

const (
	// ChoiceResume continues the job over its remaining pending rows.
	// Completed rows keep their shipments; nothing is re-shipped.
	ChoiceResume Choice = "resume"
	// ChoiceRestart resets the job and re-processes every row. Rows that
	// already shipped will ship again.
	ChoiceRestart Choice = "restart"
	// ChoiceCancel abandons the job, keeping completed rows' results.
	ChoiceCancel Choice = "cancel"
)

// Outcome describes what a recovery choice did to a job.
type Outcome struct {
	JobID     string
	Choice    Choice
	NewStatus model.JobStatus
	// ReadyToRun is true when the job was returned to a runnable state and
	// the caller should execute it.
	ReadyToRun bool
	// DuplicateRisk is true when the applied choice can produce duplicate
	// shipments (restart of a partially completed job).
	DuplicateRisk bool
}

// Manager checks for and recovers interrupted jobs.
type Manager struct {
	jobRepo   repository.JobRepository
	auditRepo repository.AuditRepository
}

// NewManager creates a recovery manager.
func NewManager(jobRepo repository.JobRepository, auditRepo repository.AuditRepository) *Manager {
	return &Manager{jobRepo: jobRepo, auditRepo: auditRepo}
}

// CheckInterruptedJobs returns jobs left in a non-terminal running or
// paused state by a previous process. The check reads only; calling it
// repeatedly without applying a choice changes nothing.
func (m *Manager) CheckInterruptedJobs(ctx context.Context) ([]*model.InterruptedJobInfo, error) {
	infos, err := m.jobRepo.FindInterruptedJobs(ctx)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to check for interrupted jobs", err, false)
	}
	if len(infos) > 0 {
		logger.Infof("Found %d interrupted job(s) eligible for recovery", len(infos))
	}
	return infos, nil
}

// Prompt renders the operator-facing recovery question for one interrupted
// job: progress, the last completed row and its tracking number, the stored
// error if the interruption was error-driven, and the consequences of each
// choice.
func Prompt(info *model.InterruptedJobInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Job '%s' was interrupted (%d of %d rows processed, %d shipped, %d failed).\n",
		info.Name, info.ProcessedRows, info.TotalRows, info.SuccessfulRows, info.FailedRows)
	if info.LastRowNumber > 0 {
		fmt.Fprintf(&sb, "Last completed row: %d (tracking %s)\n", info.LastRowNumber, info.LastTrackingNumber)
	}
	if info.ErrorCode != "" || info.ErrorMessage != "" {
		fmt.Fprintf(&sb, "Last error: [%s] %s\n", info.ErrorCode, info.ErrorMessage)
	}
	fmt.Fprintf(&sb, "  resume  - continue with the remaining %d row(s); completed shipments are kept\n", info.RemainingRows)
	sb.WriteString("  restart - process all rows again; already shipped rows WILL ship again\n")
	sb.WriteString("  cancel  - abandon the job; completed shipments are kept\n")
	sb.WriteString("Choose [resume/restart/cancel]: ")
	return sb.String()
}

// Apply executes the operator's choice against an interrupted job.
//
// Resume transitions a paused job back to running eligibility; restart is
// two-step (cancel-free reset, then pending) and flags the duplicate
// shipment risk; cancel moves the job to its terminal cancelled state.
func (m *Manager) Apply(ctx context.Context, jobID string, choice Choice) (*Outcome, error) {
	job, err := m.jobRepo.GetJob(ctx, jobID)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to load job %s for recovery", jobID), err, false)
	}
	if job.Status.IsTerminal() {
		return nil, exception.NewBatchError(moduleName,
			fmt.Sprintf("job %s is already %s and needs no recovery", jobID, job.Status), nil, false)
	}

	switch choice {
	case ChoiceResume:
		return m.resume(ctx, job)
	case ChoiceRestart:
		return m.restart(ctx, job)
	case ChoiceCancel:
		return m.cancel(ctx, job)
	default:
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("unknown recovery choice: %s", choice), nil, false)
	}
}

// resume leaves completed rows untouched; the executor picks up the
// remaining pending rows in row order.
func (m *Manager) resume(ctx context.Context, job *model.Job) (*Outcome, error) {
	// A job stranded in running was interrupted mid-flight; park it in
	// paused so the run transition is valid again.
	if job.Status == model.JobStatusRunning {
		if err := m.jobRepo.UpdateStatus(ctx, job.ID, model.JobStatusPaused); err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to park job %s for resume", job.ID), err, false)
		}
	}

	m.audit(ctx, job.ID, "recovery_resume", fmt.Sprintf("%d rows remaining", job.TotalRows-job.ProcessedRows))
	logger.Infof("Job %s prepared for resume: %d of %d rows remaining", job.ID, job.TotalRows-job.ProcessedRows, job.TotalRows)
	return &Outcome{
		JobID:      job.ID,
		Choice:     ChoiceResume,
		NewStatus:  model.JobStatusPaused,
		ReadyToRun: true,
	}, nil
}

// restart resets every row back to pending. Shipments already created by
// this job are not voided, so a restart of a partially completed job can
// duplicate them; the outcome flags that risk.
func (m *Manager) restart(ctx context.Context, job *model.Job) (*Outcome, error) {
	duplicateRisk := job.SuccessfulRows > 0
	if duplicateRisk {
		logger.Warnf("Restarting job %s will re-ship %d already completed row(s)", job.ID, job.SuccessfulRows)
	}

	if err := m.jobRepo.ResetJobForRestart(ctx, job.ID); err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to reset job %s for restart", job.ID), err, false)
	}

	m.audit(ctx, job.ID, "recovery_restart", fmt.Sprintf("duplicate_risk=%t", duplicateRisk))
	return &Outcome{
		JobID:         job.ID,
		Choice:        ChoiceRestart,
		NewStatus:     model.JobStatusPending,
		ReadyToRun:    true,
		DuplicateRisk: duplicateRisk,
	}, nil
}

// cancel abandons the job, keeping completed rows' results for auditing.
func (m *Manager) cancel(ctx context.Context, job *model.Job) (*Outcome, error) {
	if err := m.jobRepo.UpdateStatus(ctx, job.ID, model.JobStatusCancelled); err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to cancel job %s", job.ID), err, false)
	}

	m.audit(ctx, job.ID, "recovery_cancel", fmt.Sprintf("%d of %d rows had completed", job.SuccessfulRows, job.TotalRows))
	return &Outcome{
		JobID:     job.ID,
		Choice:    ChoiceCancel,
		NewStatus: model.JobStatusCancelled,
	}, nil
}

func (m *Manager) audit(ctx context.Context, jobID, event, detail string) {
	entry := &repository.AuditEntry{
		ID:        model.NewID(),
		JobID:     jobID,
		Event:     event,
		Detail:    detail,
		CreatedAt: model.NowISO(),
	}
	if err := m.auditRepo.Append(ctx, entry); err != nil {
		logger.Warnf("Failed to append audit entry '%s' for job %s: %v", event, jobID, err)
	}
}

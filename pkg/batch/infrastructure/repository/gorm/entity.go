// Package gorm implements the job, audit and write-back repositories on
// GORM, enforcing the job and row state machines at the persistence layer.
package gorm

import (
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
)

// jobEntity is the persistence mapping for model.Job.
type jobEntity struct {
	ID              string `gorm:"primaryKey;column:id"`
	Name            string `gorm:"column:name"`
	Description     string `gorm:"column:description"`
	OriginalCommand string `gorm:"column:original_command"`
	Status          string `gorm:"column:status;index"`
	Mode            string `gorm:"column:mode"`
	TotalRows       int    `gorm:"column:total_rows"`
	ProcessedRows   int    `gorm:"column:processed_rows"`
	SuccessfulRows  int    `gorm:"column:successful_rows"`
	FailedRows      int    `gorm:"column:failed_rows"`
	ErrorCode       string `gorm:"column:error_code"`
	ErrorMessage    string `gorm:"column:error_message"`
	CreatedAt       string `gorm:"column:created_at"`
	UpdatedAt       string `gorm:"column:updated_at"`
	StartedAt       string `gorm:"column:started_at"`
	CompletedAt     string `gorm:"column:completed_at"`
}

// TableName overrides GORM's default table name.
func (jobEntity) TableName() string {
	return "shipment_jobs"
}

// jobRowEntity is the persistence mapping for model.JobRow.
type jobRowEntity struct {
	ID             string `gorm:"primaryKey;column:id"`
	JobID          string `gorm:"column:job_id;index"`
	RowNumber      int    `gorm:"column:row_number"`
	RowChecksum    string `gorm:"column:row_checksum"`
	Status         string `gorm:"column:status;index"`
	TrackingNumber string `gorm:"column:tracking_number"`
	LabelPath      string `gorm:"column:label_path"`
	CostCents      int64  `gorm:"column:cost_cents"`
	ErrorCode      string `gorm:"column:error_code"`
	ErrorMessage   string `gorm:"column:error_message"`
	CreatedAt      string `gorm:"column:created_at"`
	ProcessedAt    string `gorm:"column:processed_at"`
}

// TableName overrides GORM's default table name.
func (jobRowEntity) TableName() string {
	return "shipment_job_rows"
}

// auditEntity is the persistence mapping for repository.AuditEntry.
type auditEntity struct {
	ID        string `gorm:"primaryKey;column:id"`
	JobID     string `gorm:"column:job_id;index"`
	RowID     string `gorm:"column:row_id"`
	Event     string `gorm:"column:event"`
	Detail    string `gorm:"column:detail"`
	CreatedAt string `gorm:"column:created_at"`
}

// TableName overrides GORM's default table name.
func (auditEntity) TableName() string {
	return "shipment_audit_log"
}

// writeBackRecordEntity is one durably recorded shipment result.
type writeBackRecordEntity struct {
	ID             string `gorm:"primaryKey;column:id"`
	JobID          string `gorm:"column:job_id;index"`
	RowNumber      int    `gorm:"column:row_number"`
	TrackingNumber string `gorm:"column:tracking_number"`
	LabelPath      string `gorm:"column:label_path"`
	CostCents      int64  `gorm:"column:cost_cents"`
	CreatedAt      string `gorm:"column:created_at"`
}

// TableName overrides GORM's default table name.
func (writeBackRecordEntity) TableName() string {
	return "shipment_write_back_records"
}

func toJobEntity(job *model.Job) *jobEntity {
	return &jobEntity{
		ID:              job.ID,
		Name:            job.Name,
		Description:     job.Description,
		OriginalCommand: job.OriginalCommand,
		Status:          string(job.Status),
		Mode:            string(job.Mode),
		TotalRows:       job.TotalRows,
		ProcessedRows:   job.ProcessedRows,
		SuccessfulRows:  job.SuccessfulRows,
		FailedRows:      job.FailedRows,
		ErrorCode:       job.ErrorCode,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}
}

func toJobModel(e *jobEntity) *model.Job {
	return &model.Job{
		ID:              e.ID,
		Name:            e.Name,
		Description:     e.Description,
		OriginalCommand: e.OriginalCommand,
		Status:          model.JobStatus(e.Status),
		Mode:            model.ExecutionMode(e.Mode),
		TotalRows:       e.TotalRows,
		ProcessedRows:   e.ProcessedRows,
		SuccessfulRows:  e.SuccessfulRows,
		FailedRows:      e.FailedRows,
		ErrorCode:       e.ErrorCode,
		ErrorMessage:    e.ErrorMessage,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		StartedAt:       e.StartedAt,
		CompletedAt:     e.CompletedAt,
	}
}

func toRowModel(e *jobRowEntity) *model.JobRow {
	return &model.JobRow{
		ID:             e.ID,
		JobID:          e.JobID,
		RowNumber:      e.RowNumber,
		RowChecksum:    e.RowChecksum,
		Status:         model.RowStatus(e.Status),
		TrackingNumber: e.TrackingNumber,
		LabelPath:      e.LabelPath,
		CostCents:      e.CostCents,
		ErrorCode:      e.ErrorCode,
		ErrorMessage:   e.ErrorMessage,
		CreatedAt:      e.CreatedAt,
		ProcessedAt:    e.ProcessedAt,
	}
}

func toAuditEntity(entry *repository.AuditEntry) *auditEntity {
	return &auditEntity{
		ID:        entry.ID,
		JobID:     entry.JobID,
		RowID:     entry.RowID,
		Event:     entry.Event,
		Detail:    entry.Detail,
		CreatedAt: entry.CreatedAt,
	}
}

func toAuditModel(e *auditEntity) *repository.AuditEntry {
	return &repository.AuditEntry{
		ID:        e.ID,
		JobID:     e.JobID,
		RowID:     e.RowID,
		Event:     e.Event,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}

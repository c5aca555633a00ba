package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

// AuditRepository is the GORM implementation of repository.AuditRepository.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates an AuditRepository on the given connection.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ repository.AuditRepository = (*AuditRepository)(nil)

// Append records one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *repository.AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(toAuditEntity(entry)).Error; err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to append audit entry for job %s", entry.JobID), err, false)
	}
	return nil
}

// ListByJob returns a job's audit entries in insertion order.
func (r *AuditRepository) ListByJob(ctx context.Context, jobID string) ([]*repository.AuditEntry, error) {
	var entities []auditEntity
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at ASC").Find(&entities).Error
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to list audit entries of job %s", jobID), err, false)
	}
	entries := make([]*repository.AuditEntry, 0, len(entities))
	for i := range entities {
		entries = append(entries, toAuditModel(&entities[i]))
	}
	return entries, nil
}

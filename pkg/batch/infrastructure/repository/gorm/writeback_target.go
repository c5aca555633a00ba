package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

// WriteBackTarget durably records shipment results in the job store's
// write-back table. It is the fallback target when the source itself
// rejected the immediate write-back.
type WriteBackTarget struct {
	db *gorm.DB
}

// NewWriteBackTarget creates a WriteBackTarget on the given connection.
func NewWriteBackTarget(db *gorm.DB) *WriteBackTarget {
	return &WriteBackTarget{db: db}
}

var _ port.WriteBackTarget = (*WriteBackTarget)(nil)

// Record persists one shipment result.
func (t *WriteBackTarget) Record(ctx context.Context, jobID string, rowNumber int, trackingNumber, labelPath string, costCents int64) error {
	entity := &writeBackRecordEntity{
		ID:             model.NewID(),
		JobID:          jobID,
		RowNumber:      rowNumber,
		TrackingNumber: trackingNumber,
		LabelPath:      labelPath,
		CostCents:      costCents,
		CreatedAt:      model.NowISO(),
	}
	if err := t.db.WithContext(ctx).Create(entity).Error; err != nil {
		return exception.NewBatchError(moduleName,
			fmt.Sprintf("failed to record write-back for job %s row %d", jobID, rowNumber), err, true)
	}
	return nil
}

package port

import (
	"context"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
)

// BatchObserver receives execution lifecycle events. Observers must not
// influence execution: they return nothing, and the emitter isolates any
// panic so a broken observer cannot halt a batch.
type BatchObserver interface {
	OnBatchStarted(ctx context.Context, job *model.Job)
	OnRowStarted(ctx context.Context, job *model.Job, row *model.JobRow)
	OnRowCompleted(ctx context.Context, job *model.Job, row *model.JobRow)
	OnRowFailed(ctx context.Context, job *model.Job, row *model.JobRow, terr TranslatedError)
	OnBatchCompleted(ctx context.Context, job *model.Job, result *model.BatchResult)
	OnBatchFailed(ctx context.Context, job *model.Job, result *model.BatchResult, terr TranslatedError)
}

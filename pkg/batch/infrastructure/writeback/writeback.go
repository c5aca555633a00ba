// Package writeback records shipment results outside the job store and
// retries results whose immediate write-back failed mid-batch.
package writeback

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

const moduleName = "writeback"

// entry is one queued shipment result awaiting durable recording.
type entry struct {
	RowNumber      int
	TrackingNumber string
	LabelPath      string
	CostCents      int64
}

// RetryingWriteBack queues shipment results whose immediate source
// write-back failed and flushes them to a durable target at batch end.
// Flush retries each entry with backoff and aggregates all residual
// failures; an incomplete flush never fails the batch itself.
type RetryingWriteBack struct {
	target          port.WriteBackTarget
	maxAttempts     int
	initialInterval time.Duration

	mu     sync.Mutex
	queued map[string][]entry
}

// NewRetryingWriteBack creates a write-back retrier over the given target.
func NewRetryingWriteBack(target port.WriteBackTarget, maxAttempts int, initialInterval time.Duration) *RetryingWriteBack {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryingWriteBack{
		target:          target,
		maxAttempts:     maxAttempts,
		initialInterval: initialInterval,
		queued:          make(map[string][]entry),
	}
}

// Queue records a shipment result for the end-of-batch flush.
func (w *RetryingWriteBack) Queue(jobID string, rowNumber int, trackingNumber, labelPath string, costCents int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queued[jobID] = append(w.queued[jobID], entry{
		RowNumber:      rowNumber,
		TrackingNumber: trackingNumber,
		LabelPath:      labelPath,
		CostCents:      costCents,
	})
}

// Pending returns how many results are queued for a job.
func (w *RetryingWriteBack) Pending(jobID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queued[jobID])
}

// Flush attempts to record every queued result for a job. Entries that
// succeed are dropped from the queue; entries that exhaust their attempts
// stay queued and their errors are aggregated in the returned error.
func (w *RetryingWriteBack) Flush(ctx context.Context, jobID string) error {
	w.mu.Lock()
	entries := w.queued[jobID]
	delete(w.queued, jobID)
	w.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	var merr *multierror.Error
	var remaining []entry
	for _, en := range entries {
		if err := w.flushOne(ctx, jobID, en); err != nil {
			merr = multierror.Append(merr, err)
			remaining = append(remaining, en)
		}
	}

	if len(remaining) > 0 {
		w.mu.Lock()
		w.queued[jobID] = append(w.queued[jobID], remaining...)
		w.mu.Unlock()
	}
	return merr.ErrorOrNil()
}

// flushOne records one entry, retrying with linear backoff.
func (w *RetryingWriteBack) flushOne(ctx context.Context, jobID string, en entry) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		lastErr = w.target.Record(ctx, jobID, en.RowNumber, en.TrackingNumber, en.LabelPath, en.CostCents)
		if lastErr == nil {
			return nil
		}
		logger.Debugf("Write-back attempt %d/%d failed for job %s row %d: %v",
			attempt, w.maxAttempts, jobID, en.RowNumber, lastErr)
		if attempt < w.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.initialInterval * time.Duration(attempt)):
			}
		}
	}
	return exception.NewBatchError(moduleName, "write-back exhausted retries", lastErr, true)
}

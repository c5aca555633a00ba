// Package notification delivers end-of-batch summaries.
package notification

import (
	"context"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

// LogNotifier is a Notifier implementation that logs the summary. It stands
// in for an external channel (mail, chat webhook) in deployments that have
// none configured.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	logger.Infof("Notification: using log notifier.")
	return &LogNotifier{}
}

var _ port.Notifier = (*LogNotifier)(nil)

// NotifyBatchFinished logs the batch outcome.
func (n *LogNotifier) NotifyBatchFinished(ctx context.Context, result *model.BatchResult) error {
	if result.Status == model.JobStatusCompleted {
		logger.Infof("Notification: batch %s finished: %d/%d shipped, total cost %s",
			result.JobID, result.SuccessfulRows, result.TotalRows, model.FormatMoneyCents(result.TotalCostCents))
		return nil
	}
	logger.Warnf("Notification: batch %s finished with status %s after %d/%d rows [%s] %s",
		result.JobID, result.Status, result.SuccessfulRows, result.TotalRows, result.ErrorCode, result.ErrorMessage)
	return nil
}

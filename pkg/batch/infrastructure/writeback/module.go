package writeback

import (
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// NewRetryingWriteBackProvider builds the write-back retrier from the
// configured retry policy.
func NewRetryingWriteBackProvider(cfg *config.Config, target port.WriteBackTarget) *RetryingWriteBack {
	retry := cfg.Shipbatch.Batch.WriteBackRetry
	return NewRetryingWriteBack(target, retry.MaxAttempts, time.Duration(retry.InitialInterval)*time.Millisecond)
}

// Module provides the write-back retrier to Fx.
var Module = fx.Options(
	fx.Provide(NewRetryingWriteBackProvider),
)

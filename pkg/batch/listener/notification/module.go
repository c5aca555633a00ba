package notification

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// Module provides the notifier to Fx. When end-of-batch notification is
// disabled, the provided notifier is nil and the executor skips it.
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config) port.Notifier {
		if !cfg.Shipbatch.Batch.NotifyOnCompletion {
			return nil
		}
		return NewLogNotifier()
	}),
)

package mode

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
)

// NewSessionModeManagerProvider builds the session mode manager from the
// configured default mode.
func NewSessionModeManagerProvider(cfg *config.Config) *SessionModeManager {
	return NewSessionModeManager(model.ExecutionMode(cfg.Shipbatch.Batch.DefaultMode))
}

// Module provides the session mode manager to Fx.
var Module = fx.Options(
	fx.Provide(NewSessionModeManagerProvider),
)

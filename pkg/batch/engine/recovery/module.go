package recovery

import (
	"go.uber.org/fx"
)

// Module provides the recovery manager to Fx.
var Module = fx.Options(
	fx.Provide(NewManager),
)

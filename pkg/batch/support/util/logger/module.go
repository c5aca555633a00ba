package logger

import "go.uber.org/fx"

// Module is an Fx module that routes Fx lifecycle logging through the engine logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)

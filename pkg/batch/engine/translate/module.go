package translate

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// Module provides the error translator to Fx.
var Module = fx.Options(
	fx.Provide(func() port.ErrorTranslator {
		return NewDefaultErrorTranslator()
	}),
)

package source

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// Module provides the file source resolver to Fx.
var Module = fx.Options(
	fx.Provide(func() port.SourceResolver {
		return NewFileSourceResolver()
	}),
)

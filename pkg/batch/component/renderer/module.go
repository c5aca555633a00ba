package renderer

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// Module provides the template renderer to Fx.
var Module = fx.Options(
	fx.Provide(func() port.TemplateRenderer {
		return NewTemplateRenderer()
	}),
)

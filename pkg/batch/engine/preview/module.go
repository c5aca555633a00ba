package preview

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// NewGeneratorProvider builds the preview generator from configuration.
func NewGeneratorProvider(cfg *config.Config, renderer port.TemplateRenderer, carrier port.CarrierGateway) *Generator {
	return NewGenerator(renderer, carrier, cfg.Shipbatch.Batch.PreviewSampleRows)
}

// Module provides the preview generator to Fx.
var Module = fx.Options(
	fx.Provide(NewGeneratorProvider),
)

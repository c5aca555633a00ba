package carrier

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// Module provides the carrier gateway to Fx.
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config) port.CarrierGateway {
		return NewClient(cfg)
	}),
)

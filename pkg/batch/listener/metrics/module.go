package metrics

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// Module provides the Prometheus observer to the batch observer group and
// exposes the concrete type so an HTTP metrics endpoint can reach the
// registry.
var Module = fx.Options(
	fx.Provide(NewPrometheusObserver),
	fx.Provide(fx.Annotate(
		func(o *PrometheusObserver) port.BatchObserver { return o },
		fx.ResultTags(`group:"batchObservers"`),
	)),
)

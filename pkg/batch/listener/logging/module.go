package logging

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// Module provides the logging observer to the batch observer group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		func() port.BatchObserver { return NewObserver() },
		fx.ResultTags(`group:"batchObservers"`),
	)),
)

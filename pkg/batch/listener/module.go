package listener

import (
	"github.com/tigerroll/shipbatch/pkg/batch/listener/logging"
	"github.com/tigerroll/shipbatch/pkg/batch/listener/metrics"
	"github.com/tigerroll/shipbatch/pkg/batch/listener/notification"
	"github.com/tigerroll/shipbatch/pkg/batch/listener/tracing"

	"go.uber.org/fx"
)

// Module aggregates all listener modules of the batch engine.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	tracing.Module,
	notification.Module,
)

package executor

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/events"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/mode"
	"github.com/tigerroll/shipbatch/pkg/batch/infrastructure/writeback"
)

// ExecutorParams defines the dependencies for NewBatchExecutorProvider.
type ExecutorParams struct {
	fx.In
	JobRepo     repository.JobRepository
	AuditRepo   repository.AuditRepository
	Resolver    port.SourceResolver
	Renderer    port.TemplateRenderer
	Carrier     port.CarrierGateway
	Translator  port.ErrorTranslator
	Emitter     *events.Emitter
	ModeManager *mode.SessionModeManager
	WriteBack   *writeback.RetryingWriteBack
	Notifier    port.Notifier `optional:"true"`
}

// NewBatchExecutorProvider builds the batch executor.
func NewBatchExecutorProvider(params ExecutorParams) *BatchExecutor {
	return NewBatchExecutor(
		params.JobRepo,
		params.AuditRepo,
		params.Resolver,
		params.Renderer,
		params.Carrier,
		params.Translator,
		params.Emitter,
		params.ModeManager,
		params.WriteBack,
		params.Notifier,
	)
}

// Module provides the batch executor to Fx.
var Module = fx.Options(
	fx.Provide(NewBatchExecutorProvider),
)

package events

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

// EmitterParams collects all observers contributed by listener modules via
// the "batchObservers" group.
type EmitterParams struct {
	fx.In
	Observers []port.BatchObserver `group:"batchObservers"`
}

// NewEmitterProvider builds the emitter and registers every grouped observer.
func NewEmitterProvider(params EmitterParams) *Emitter {
	e := NewEmitter()
	for _, obs := range params.Observers {
		e.AddObserver(obs)
	}
	return e
}

// Module provides the event emitter to Fx.
var Module = fx.Options(
	fx.Provide(NewEmitterProvider),
)

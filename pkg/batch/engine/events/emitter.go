// Package events fans execution lifecycle events out to registered
// observers, isolating the engine from observer failures.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

// Emitter delivers lifecycle events to registered observers in registration
// order, synchronously. A panicking observer is logged and skipped; it never
// propagates into the execution path.
type Emitter struct {
	mu        sync.Mutex
	observers []port.BatchObserver
}

// NewEmitter creates an Emitter with no observers.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// AddObserver registers an observer. Observers are notified in the order
// they were added.
func (e *Emitter) AddObserver(obs port.BatchObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, obs)
}

// RemoveObserver deregisters an observer. Returns an error if the observer
// was never registered.
func (e *Emitter) RemoveObserver(obs port.BatchObserver) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, o := range e.observers {
		if o == obs {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("observer not registered")
}

// snapshot copies the observer list so a dispatch is unaffected by
// concurrent Add/Remove calls.
func (e *Emitter) snapshot() []port.BatchObserver {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]port.BatchObserver, len(e.observers))
	copy(out, e.observers)
	return out
}

// dispatch invokes fn for each observer, recovering panics per observer.
func (e *Emitter) dispatch(event string, fn func(port.BatchObserver)) {
	for _, obs := range e.snapshot() {
		func(obs port.BatchObserver) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Observer %T panicked during %s: %v", obs, event, r)
				}
			}()
			fn(obs)
		}(obs)
	}
}

// BatchStarted notifies observers that a job began executing.
func (e *Emitter) BatchStarted(ctx context.Context, job *model.Job) {
	e.dispatch("BatchStarted", func(o port.BatchObserver) { o.OnBatchStarted(ctx, job) })
}

// RowStarted notifies observers that a row entered processing.
func (e *Emitter) RowStarted(ctx context.Context, job *model.Job, row *model.JobRow) {
	e.dispatch("RowStarted", func(o port.BatchObserver) { o.OnRowStarted(ctx, job, row) })
}

// RowCompleted notifies observers that a row shipped successfully.
func (e *Emitter) RowCompleted(ctx context.Context, job *model.Job, row *model.JobRow) {
	e.dispatch("RowCompleted", func(o port.BatchObserver) { o.OnRowCompleted(ctx, job, row) })
}

// RowFailed notifies observers that a row failed.
func (e *Emitter) RowFailed(ctx context.Context, job *model.Job, row *model.JobRow, terr port.TranslatedError) {
	e.dispatch("RowFailed", func(o port.BatchObserver) { o.OnRowFailed(ctx, job, row, terr) })
}

// BatchCompleted notifies observers that a job finished with all rows
// processed.
func (e *Emitter) BatchCompleted(ctx context.Context, job *model.Job, result *model.BatchResult) {
	e.dispatch("BatchCompleted", func(o port.BatchObserver) { o.OnBatchCompleted(ctx, job, result) })
}

// BatchFailed notifies observers that a job halted on an error.
func (e *Emitter) BatchFailed(ctx context.Context, job *model.Job, result *model.BatchResult, terr port.TranslatedError) {
	e.dispatch("BatchFailed", func(o port.BatchObserver) { o.OnBatchFailed(ctx, job, result, terr) })
}

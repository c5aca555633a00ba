// Package mode manages the session execution mode: whether batches preview
// and wait for confirmation, or execute immediately.
package mode

import (
	"fmt"
	"sync"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

// ErrModeLocked is returned when the mode cannot be changed because a batch
// is executing.
type ErrModeLocked struct {
	JobID string
}

func (e *ErrModeLocked) Error() string {
	return fmt.Sprintf("execution mode is locked by running job %s", e.JobID)
}

// SessionModeManager holds the current execution mode for one operator
// session. While a batch executes, the mode is locked so a mode change
// cannot alter the semantics of an in-flight run.
type SessionModeManager struct {
	mu          sync.Mutex
	mode        model.ExecutionMode
	lockedBy    string
	confirmOnce bool
}

// NewSessionModeManager creates a manager starting in the given mode.
func NewSessionModeManager(defaultMode model.ExecutionMode) *SessionModeManager {
	return &SessionModeManager{mode: defaultMode}
}

// Mode returns the current execution mode.
func (m *SessionModeManager) Mode() model.ExecutionMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode changes the session mode. Returns *ErrModeLocked while a batch
// holds the lock.
func (m *SessionModeManager) SetMode(mode model.ExecutionMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockedBy != "" {
		return &ErrModeLocked{JobID: m.lockedBy}
	}
	if mode != model.ModeConfirm && mode != model.ModeAuto {
		return fmt.Errorf("unknown execution mode: %s", mode)
	}
	logger.Debugf("Session execution mode changed: %s -> %s", m.mode, mode)
	m.mode = mode
	return nil
}

// ConfirmNext arms a one-shot confirmation: the next batch previews and
// waits for approval regardless of the session mode, then the flag clears.
func (m *SessionModeManager) ConfirmNext() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockedBy != "" {
		return &ErrModeLocked{JobID: m.lockedBy}
	}
	m.confirmOnce = true
	return nil
}

// EffectiveMode resolves the mode the next batch should run under,
// consuming the one-shot confirmation flag if armed.
func (m *SessionModeManager) EffectiveMode() model.ExecutionMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmOnce {
		m.confirmOnce = false
		return model.ModeConfirm
	}
	return m.mode
}

// Lock marks the mode as held by a running job. Returns *ErrModeLocked if
// another job already holds it.
func (m *SessionModeManager) Lock(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockedBy != "" && m.lockedBy != jobID {
		return &ErrModeLocked{JobID: m.lockedBy}
	}
	m.lockedBy = jobID
	return nil
}

// Unlock releases the mode lock. Releasing an unheld lock is a no-op, so
// callers can defer Unlock unconditionally.
func (m *SessionModeManager) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockedBy = ""
}

// IsLocked reports whether a running job currently holds the mode lock.
func (m *SessionModeManager) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockedBy != ""
}

// Reset returns the manager to the given mode, releasing the lock and
// disarming any one-shot confirmation. Intended for session teardown.
func (m *SessionModeManager) Reset(defaultMode model.ExecutionMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = defaultMode
	m.lockedBy = ""
	m.confirmOnce = false
}

package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
)

func TestSetModeAndMode(t *testing.T) {
	m := NewSessionModeManager(model.ModeConfirm)
	assert.Equal(t, model.ModeConfirm, m.Mode())

	assert.NoError(t, m.SetMode(model.ModeAuto))
	assert.Equal(t, model.ModeAuto, m.Mode())

	assert.Error(t, m.SetMode("yolo"))
	assert.Equal(t, model.ModeAuto, m.Mode())
}

func TestSetModeWhileLocked(t *testing.T) {
	m := NewSessionModeManager(model.ModeConfirm)
	assert.NoError(t, m.Lock("job-1"))

	err := m.SetMode(model.ModeAuto)
	var locked *ErrModeLocked
	assert.ErrorAs(t, err, &locked)
	assert.Equal(t, "job-1", locked.JobID)
	assert.Equal(t, model.ModeConfirm, m.Mode())

	assert.ErrorAs(t, m.ConfirmNext(), &locked)

	m.Unlock()
	assert.NoError(t, m.SetMode(model.ModeAuto))
}

func TestLockIsExclusive(t *testing.T) {
	m := NewSessionModeManager(model.ModeAuto)

	assert.NoError(t, m.Lock("job-1"))
	assert.True(t, m.IsLocked())

	// Re-locking by the same job is fine, another job is rejected.
	assert.NoError(t, m.Lock("job-1"))
	assert.Error(t, m.Lock("job-2"))

	m.Unlock()
	assert.False(t, m.IsLocked())
	assert.NoError(t, m.Lock("job-2"))
}

func TestUnlockWithoutLockIsNoop(t *testing.T) {
	m := NewSessionModeManager(model.ModeAuto)
	m.Unlock()
	assert.False(t, m.IsLocked())
}

func TestConfirmNextIsOneShot(t *testing.T) {
	m := NewSessionModeManager(model.ModeAuto)
	assert.NoError(t, m.ConfirmNext())

	// First resolution consumes the flag, the second falls back to the
	// session mode.
	assert.Equal(t, model.ModeConfirm, m.EffectiveMode())
	assert.Equal(t, model.ModeAuto, m.EffectiveMode())
}

func TestResetClearsLockAndConfirmFlag(t *testing.T) {
	m := NewSessionModeManager(model.ModeAuto)
	assert.NoError(t, m.ConfirmNext())
	assert.NoError(t, m.Lock("job-1"))

	m.Reset(model.ModeConfirm)

	assert.False(t, m.IsLocked())
	assert.Equal(t, model.ModeConfirm, m.Mode())
	assert.Equal(t, model.ModeConfirm, m.EffectiveMode())
	assert.Equal(t, model.ModeConfirm, m.EffectiveMode())
}

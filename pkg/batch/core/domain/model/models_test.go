package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobTransitions(t *testing.T) {
	cases := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobStatusPending, JobStatusRunning, true},
		{JobStatusPending, JobStatusCancelled, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusRunning, JobStatusPaused, true},
		{JobStatusRunning, JobStatusCompleted, true},
		{JobStatusRunning, JobStatusFailed, true},
		{JobStatusRunning, JobStatusCancelled, true},
		{JobStatusRunning, JobStatusPending, false},
		{JobStatusPaused, JobStatusRunning, true},
		{JobStatusPaused, JobStatusCancelled, true},
		{JobStatusPaused, JobStatusCompleted, false},
		{JobStatusCompleted, JobStatusRunning, false},
		{JobStatusFailed, JobStatusRunning, false},
		{JobStatusCancelled, JobStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalJobStatesHaveNoTransitions(t *testing.T) {
	for _, status := range []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled} {
		assert.True(t, status.IsTerminal())
		assert.Empty(t, AllowedTransitions(status))
	}
}

func TestRowTransitions(t *testing.T) {
	assert.True(t, CanTransitionRow(RowStatusPending, RowStatusProcessing))
	assert.True(t, CanTransitionRow(RowStatusProcessing, RowStatusCompleted))
	assert.True(t, CanTransitionRow(RowStatusProcessing, RowStatusFailed))
	assert.True(t, CanTransitionRow(RowStatusProcessing, RowStatusSkipped))

	assert.False(t, CanTransitionRow(RowStatusPending, RowStatusCompleted))
	assert.False(t, CanTransitionRow(RowStatusPending, RowStatusSkipped))
	assert.False(t, CanTransitionRow(RowStatusCompleted, RowStatusProcessing))
	assert.False(t, CanTransitionRow(RowStatusFailed, RowStatusPending))
	assert.False(t, CanTransitionRow(RowStatusSkipped, RowStatusProcessing))
}

func TestNewJobDefaults(t *testing.T) {
	job := NewJob("march-orders", "ship all March orders via UPS Ground", "100 rows", ModeConfirm)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, ModeConfirm, job.Mode)
	assert.Equal(t, "ship all March orders via UPS Ground", job.OriginalCommand)
	assert.NotEmpty(t, job.CreatedAt)
	assert.Equal(t, job.CreatedAt, job.UpdatedAt)
}

func TestRowChecksumIsStableAcrossKeyOrder(t *testing.T) {
	a := map[string]interface{}{
		"name":    "Alice",
		"city":    "Springfield",
		"weight":  "2.5",
		"details": map[string]interface{}{"zip": "12345", "state": "IL"},
	}
	b := map[string]interface{}{
		"details": map[string]interface{}{"state": "IL", "zip": "12345"},
		"weight":  "2.5",
		"city":    "Springfield",
		"name":    "Alice",
	}

	sumA, err := RowChecksum(a)
	assert.NoError(t, err)
	sumB, err := RowChecksum(b)
	assert.NoError(t, err)
	assert.Equal(t, sumA, sumB)
	assert.Len(t, sumA, 64)
}

func TestRowChecksumDiffersOnContent(t *testing.T) {
	a := map[string]interface{}{"name": "Alice"}
	b := map[string]interface{}{"name": "Bob"}

	sumA, _ := RowChecksum(a)
	sumB, _ := RowChecksum(b)
	assert.NotEqual(t, sumA, sumB)
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a batch shipment job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal checks if the JobStatus represents a terminal state.
// Terminal jobs are immutable except for audit appends.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// jobTransitions is the allowed-transition table for the job state machine.
//
//	pending --> running --> completed   (terminal)
//	                    --> failed      (terminal)
//	                    --> cancelled   (terminal)
//	        running --> paused --> running
//	                           --> cancelled (terminal)
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:   {JobStatusRunning, JobStatusCancelled, JobStatusFailed},
	JobStatusRunning:   {JobStatusPaused, JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
	JobStatusPaused:    {JobStatusRunning, JobStatusCancelled},
	JobStatusCompleted: {},
	JobStatusFailed:    {},
	JobStatusCancelled: {},
}

// CanTransition reports whether a job may move from current to next.
func CanTransition(current, next JobStatus) bool {
	for _, allowed := range jobTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the valid transition targets from the given status.
// Terminal states return an empty set.
func AllowedTransitions(current JobStatus) []JobStatus {
	allowed := jobTransitions[current]
	out := make([]JobStatus, len(allowed))
	copy(out, allowed)
	return out
}

// RowStatus represents the lifecycle state of a single row within a job.
type RowStatus string

const (
	RowStatusPending    RowStatus = "pending"
	RowStatusProcessing RowStatus = "processing"
	RowStatusCompleted  RowStatus = "completed"
	RowStatusFailed     RowStatus = "failed"
	RowStatusSkipped    RowStatus = "skipped"
)

// String returns the string representation of the RowStatus.
func (s RowStatus) String() string {
	return string(s)
}

// IsTerminal checks if the RowStatus represents a terminal state.
func (s RowStatus) IsTerminal() bool {
	switch s {
	case RowStatusCompleted, RowStatusFailed, RowStatusSkipped:
		return true
	default:
		return false
	}
}

// rowTransitions is the allowed-transition table for the row state machine.
//
//	pending --> processing --> completed (terminal)
//	                       --> failed    (terminal)
//	                       --> skipped   (terminal)
var rowTransitions = map[RowStatus][]RowStatus{
	RowStatusPending:    {RowStatusProcessing},
	RowStatusProcessing: {RowStatusCompleted, RowStatusFailed, RowStatusSkipped},
	RowStatusCompleted:  {},
	RowStatusFailed:     {},
	RowStatusSkipped:    {},
}

// CanTransitionRow reports whether a row may move from current to next.
func CanTransitionRow(current, next RowStatus) bool {
	for _, allowed := range rowTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedRowTransitions returns the valid transition targets from the given
// row status. Terminal states return an empty set.
func AllowedRowTransitions(current RowStatus) []RowStatus {
	allowed := rowTransitions[current]
	out := make([]RowStatus, len(allowed))
	copy(out, allowed)
	return out
}

// ExecutionMode selects batch behavior before execution.
// Confirm requires a preview and explicit approval; Auto executes immediately.
type ExecutionMode string

const (
	ModeConfirm ExecutionMode = "confirm"
	ModeAuto    ExecutionMode = "auto"
)

// String returns the string representation of the ExecutionMode.
func (m ExecutionMode) String() string {
	return string(m)
}

// Job is one batch shipment operation: the natural-language command it came
// from, its lifecycle status, and aggregate row counts.
//
// Invariant: ProcessedRows == SuccessfulRows + FailedRows <= TotalRows.
type Job struct {
	ID              string
	Name            string
	Description     string
	OriginalCommand string
	Status          JobStatus
	Mode            ExecutionMode
	TotalRows       int
	ProcessedRows   int
	SuccessfulRows  int
	FailedRows      int
	ErrorCode       string
	ErrorMessage    string
	CreatedAt       string
	UpdatedAt       string
	StartedAt       string
	CompletedAt     string
}

// JobRow is one source data row's shipment lifecycle within a Job.
// RowNumber is 1-based and matches the user-facing row numbering of the
// source; RowChecksum is a content hash for integrity auditing, not identity.
//
// Invariant: TrackingNumber is set if and only if Status is completed.
type JobRow struct {
	ID             string
	JobID          string
	RowNumber      int
	RowChecksum    string
	Status         RowStatus
	TrackingNumber string
	LabelPath      string
	CostCents      int64
	ErrorCode      string
	ErrorMessage   string
	CreatedAt      string
	ProcessedAt    string
}

// RowSeed describes one row to materialize when a job's row set is created
// from the filtered source.
type RowSeed struct {
	RowNumber int
	Checksum  string
}

// ShipperInfo holds the shipper address and account data merged into every
// rendered carrier payload.
type ShipperInfo struct {
	Name          string `yaml:"name"`
	AttentionName string `yaml:"attention_name"`
	AccountNumber string `yaml:"account_number"`
	AddressLine   string `yaml:"address_line"`
	City          string `yaml:"city"`
	StateProvince string `yaml:"state_province"`
	PostalCode    string `yaml:"postal_code"`
	CountryCode   string `yaml:"country_code"`
	Phone         string `yaml:"phone"`
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// NowISO returns the current UTC time as an ISO-8601 string.
// All persisted job/row timestamps use this representation.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewJob creates a Job in the pending state.
func NewJob(name, originalCommand, description string, mode ExecutionMode) *Job {
	now := NowISO()
	return &Job{
		ID:              NewID(),
		Name:            name,
		Description:     description,
		OriginalCommand: originalCommand,
		Status:          JobStatusPending,
		Mode:            mode,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// RowChecksum calculates the content checksum of a source row. The row map
// is converted to a canonical JSON string with sorted keys before hashing,
// so the checksum is stable regardless of map iteration order.
func RowChecksum(data map[string]interface{}) (string, error) {
	canonical, err := marshalCanonical(data)
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	hasher.Write(canonical)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// marshalCanonical renders a value as JSON with map keys in sorted order,
// recursing into nested maps.
func marshalCanonical(val interface{}) ([]byte, error) {
	m, ok := val.(map[string]interface{})
	if !ok {
		return json.Marshal(val)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valBytes, err := marshalCanonical(m[k])
		if err != nil {
			return nil, err
		}
		sb.Write(keyBytes)
		sb.WriteString(":")
		sb.Write(valBytes)
		if i < len(keys)-1 {
			sb.WriteString(",")
		}
	}
	sb.WriteString("}")
	return []byte(sb.String()), nil
}

package repository

import "context"

// AuditEntry is one append-only record of a notable execution event.
type AuditEntry struct {
	ID        string
	JobID     string
	RowID     string
	Event     string
	Detail    string
	CreatedAt string
}

// AuditRepository appends and reads execution audit records. Appends are
// allowed even after the parent job reaches a terminal state.
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByJob(ctx context.Context, jobID string) ([]*AuditEntry, error)
}

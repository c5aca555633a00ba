package model

// PreviewRow is one sample line of a batch preview. Warnings carries any
// carrier-surfaced issues with the quote, such as a suggested address
// correction.
type PreviewRow struct {
	RowNumber     int
	Recipient     string
	Address       string
	ServiceLevel  string
	EstimatedCost int64
	Warnings      []string
}

// BatchPreview summarizes what a batch would do before execution. When the
// source holds more rows than the preview sample, Truncated is true and the
// aggregate estimate is extrapolated from the sampled rows.
type BatchPreview struct {
	JobName            string
	TotalRows          int
	SampleRows         []PreviewRow
	RowsWithWarnings   int
	Truncated          bool
	EstimatedCostCents int64
	CostExtrapolated   bool
}

// BatchResult is the aggregate outcome of a batch execution.
type BatchResult struct {
	JobID           string
	Status          JobStatus
	TotalRows       int
	SuccessfulRows  int
	FailedRows      int
	TotalCostCents  int64
	TrackingNumbers []string
	LabelPaths      []string
	ErrorCode       string
	ErrorMessage    string
	DurationSeconds float64
}

// JobSummary aggregates a job's persisted outcome for display and auditing.
type JobSummary struct {
	JobID           string
	Name            string
	Status          JobStatus
	TotalRows       int
	SuccessfulRows  int
	FailedRows      int
	PendingRows     int
	TotalCostCents  int64
	TrackingNumbers []string
}

// InterruptedJobInfo describes a job found in a non-terminal state at
// startup, eligible for recovery. LastRowNumber and LastTrackingNumber
// identify the highest-numbered completed row, so the operator can see
// exactly where the previous run got to; both are zero-valued when no row
// completed. ErrorCode and ErrorMessage carry the job's stored error when
// the interruption was error-driven.
type InterruptedJobInfo struct {
	JobID              string
	Name               string
	Status             JobStatus
	TotalRows          int
	ProcessedRows      int
	SuccessfulRows     int
	FailedRows         int
	RemainingRows      int
	LastRowNumber      int
	LastTrackingNumber string
	ErrorCode          string
	ErrorMessage       string
	StartedAt          string
}

// ShipmentConfirmation is the carrier's response to a successful shipment
// creation: one tracking number and label per package, plus the total charge
// as a decimal string in the carrier's currency.
type ShipmentConfirmation struct {
	TrackingNumbers []string
	LabelPaths      []string
	TotalCharges    string
	Currency        string
}

// RatingQuote is the carrier's cost estimate for a prospective shipment.
// Warnings collects carrier-surfaced issues such as a suggested address
// correction; a quote with warnings is still usable.
type RatingQuote struct {
	TotalCharges string
	Currency     string
	ServiceCode  string
	Warnings     []string
}

// Package port declares the outbound interfaces of the batch engine: the
// data source, the carrier, the payload renderer, write-back, and
// observation. Implementations live under infrastructure and listener.
package port

import (
	"context"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
)

// SourceRow is one filtered row of shipment source data. Number is the
// 1-based position in the original source; Data holds the mapped columns.
type SourceRow struct {
	Number int
	Data   map[string]interface{}
}

// DataSource supplies the filtered, ordered rows of a shipment source and
// accepts per-row result write-back.
type DataSource interface {
	// Name identifies the source for display and logging.
	Name() string
	// Rows returns the filtered rows in source order.
	Rows(ctx context.Context) ([]SourceRow, error)
	// Row returns the current data of a single row by its 1-based number.
	// The executor fetches each pending row through this just before
	// shipping it, so it never holds the whole source in memory.
	Row(ctx context.Context, rowNumber int) (SourceRow, error)
	// WriteBack records a row's shipment outcome into the source. A failed
	// write-back must not fail the shipment.
	WriteBack(ctx context.Context, rowNumber int, trackingNumber, labelPath string, costCents int64) error
}

// SourceResolver opens a DataSource by name.
type SourceResolver interface {
	Resolve(ctx context.Context, name string) (DataSource, error)
}

// CarrierGateway talks to the shipping carrier API.
type CarrierGateway interface {
	// Rate returns a cost quote for a rendered shipment payload without
	// creating a shipment.
	Rate(ctx context.Context, payload map[string]interface{}) (*model.RatingQuote, error)
	// CreateShipment creates a shipment from a rendered payload.
	CreateShipment(ctx context.Context, payload map[string]interface{}) (*model.ShipmentConfirmation, error)
}

// TemplateRenderer renders a mapping template against one source row,
// producing the carrier request payload.
type TemplateRenderer interface {
	Render(ctx context.Context, template string, row SourceRow, shipper model.ShipperInfo) (map[string]interface{}, error)
}

// WriteBackTarget receives successful shipment results for durable recording
// outside the job store, for example back into the originating spreadsheet.
type WriteBackTarget interface {
	Record(ctx context.Context, jobID string, rowNumber int, trackingNumber, labelPath string, costCents int64) error
}

// TranslatedError is a user-facing rendering of a raw failure: a stable
// error code, a category, a readable message, and a remediation hint.
type TranslatedError struct {
	Code    string
	Kind    string
	Message string
	Hint    string
}

// ErrorTranslator maps raw errors from any layer to the stable error
// taxonomy surfaced to users and persisted on jobs and rows.
type ErrorTranslator interface {
	Translate(err error) TranslatedError
}

// Notifier delivers end-of-batch summaries to an external channel.
type Notifier interface {
	NotifyBatchFinished(ctx context.Context, result *model.BatchResult) error
}

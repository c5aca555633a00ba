// Package preview renders a bounded sample of a prospective batch so an
// operator can approve or reject it before any shipment is created.
package preview

import (
	"context"
	"fmt"
	"strings"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

const moduleName = "preview"

// recipientDisplayWidth caps the recipient name shown per preview line.
const recipientDisplayWidth = 20

// Generator produces batch previews. Rendering and rating stop at the
// first failing row; a preview that cannot be fully produced is rejected
// outright rather than shown partially.
type Generator struct {
	renderer   port.TemplateRenderer
	carrier    port.CarrierGateway
	sampleRows int
}

// NewGenerator creates a preview generator sampling at most sampleRows rows.
func NewGenerator(renderer port.TemplateRenderer, carrier port.CarrierGateway, sampleRows int) *Generator {
	return &Generator{
		renderer:   renderer,
		carrier:    carrier,
		sampleRows: sampleRows,
	}
}

// Generate renders a preview of jobName over the given source rows. When the
// source exceeds the sample cap, the aggregate cost estimate is extrapolated
// from the sampled rows' average and marked as such.
func (g *Generator) Generate(ctx context.Context, jobName, mappingTemplate string, rows []port.SourceRow, shipper model.ShipperInfo) (*model.BatchPreview, error) {
	preview := &model.BatchPreview{
		JobName:   jobName,
		TotalRows: len(rows),
	}
	if len(rows) == 0 {
		return preview, nil
	}

	sampleCount := len(rows)
	if sampleCount > g.sampleRows {
		sampleCount = g.sampleRows
		preview.Truncated = true
	}

	var sampledCost int64
	for _, row := range rows[:sampleCount] {
		payload, err := g.renderer.Render(ctx, mappingTemplate, row, shipper)
		if err != nil {
			return nil, exception.NewBatchError(moduleName,
				fmt.Sprintf("failed to render row %d for preview", row.Number), err, false)
		}

		quote, err := g.carrier.Rate(ctx, payload)
		if err != nil {
			return nil, exception.NewBatchError(moduleName,
				fmt.Sprintf("failed to rate row %d for preview", row.Number), err, true)
		}

		costCents, err := model.ParseMoneyCents(quote.TotalCharges)
		if err != nil {
			return nil, exception.NewBatchError(moduleName,
				fmt.Sprintf("carrier returned unparseable charge for row %d", row.Number), err, false)
		}
		sampledCost += costCents
		if len(quote.Warnings) > 0 {
			preview.RowsWithWarnings++
		}

		preview.SampleRows = append(preview.SampleRows, model.PreviewRow{
			RowNumber:     row.Number,
			Recipient:     TruncateAtWord(stringField(row.Data, "recipient_name", "name", "ship_to_name"), recipientDisplayWidth),
			Address:       addressLine(row.Data),
			ServiceLevel:  quote.ServiceCode,
			EstimatedCost: costCents,
			Warnings:      quote.Warnings,
		})
	}

	preview.EstimatedCostCents = sampledCost
	if preview.Truncated {
		// Extrapolate the unsampled remainder from the sampled average.
		avg := sampledCost / int64(sampleCount)
		preview.EstimatedCostCents = sampledCost + avg*int64(len(rows)-sampleCount)
		preview.CostExtrapolated = true
	}

	logger.Debugf("Preview generated for '%s': %d rows sampled of %d, estimated cost %s",
		jobName, sampleCount, len(rows), model.FormatMoneyCents(preview.EstimatedCostCents))
	return preview, nil
}

// TruncateAtWord shortens s to at most width runes, cutting at the last
// word boundary that fits and appending an ellipsis. A single word longer
// than width is cut mid-word.
func TruncateAtWord(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}

	cut := string(runes[:width])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "..."
}

// stringField returns the first non-empty string value among the candidate
// keys of a row map.
func stringField(data map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// addressLine builds a compact one-line destination from common address keys.
func addressLine(data map[string]interface{}) string {
	parts := []string{
		stringField(data, "address", "address_line", "street"),
		stringField(data, "city"),
		stringField(data, "state", "state_province"),
		stringField(data, "postal_code", "zip"),
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

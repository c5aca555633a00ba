// Package renderer renders JSON mapping templates against source rows,
// producing carrier request payloads.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"text/template"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

const moduleName = "renderer"

// TemplateRenderer renders a mapping template with Go template syntax. The
// template receives the row's columns under .Row and the shipper under
// .Shipper, and must produce a JSON object.
type TemplateRenderer struct{}

// NewTemplateRenderer creates a renderer.
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

var _ port.TemplateRenderer = (*TemplateRenderer)(nil)

// templateData is the root object a mapping template is executed against.
type templateData struct {
	Row     map[string]interface{}
	Shipper model.ShipperInfo
}

// Render executes the mapping template for one row and parses the result
// as a JSON payload. Missing template keys are an error rather than a
// silently empty field.
func (r *TemplateRenderer) Render(ctx context.Context, mappingTemplate string, row port.SourceRow, shipper model.ShipperInfo) (map[string]interface{}, error) {
	tmpl, err := template.New("mapping").Option("missingkey=error").Funcs(template.FuncMap{
		"jsonEscape": jsonEscape,
	}).Parse(mappingTemplate)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to parse mapping template", err, false)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Row: row.Data, Shipper: shipper}); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to execute mapping template", err, false)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		return nil, exception.NewBatchError(moduleName, "mapping template did not produce valid JSON", err, false)
	}
	return payload, nil
}

// jsonEscape makes a string safe for embedding inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

package renderer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
)

func testRow() port.SourceRow {
	return port.SourceRow{
		Number: 1,
		Data: map[string]interface{}{
			"recipient_name": "Alice Smith",
			"city":           "Springfield",
			"weight":         "2.5",
		},
	}
}

func TestRenderProducesPayload(t *testing.T) {
	r := NewTemplateRenderer()
	tmpl := `{
		"ship_to": {"name": "{{.Row.recipient_name}}", "city": "{{.Row.city}}"},
		"ship_from": {"name": "{{.Shipper.Name}}"},
		"weight": "{{.Row.weight}}"
	}`

	payload, err := r.Render(context.Background(), tmpl, testRow(), model.ShipperInfo{Name: "Acme Corp"})
	assert.NoError(t, err)

	shipTo, ok := payload["ship_to"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "Alice Smith", shipTo["name"])
	assert.Equal(t, "Springfield", shipTo["city"])

	shipFrom, ok := payload["ship_from"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "Acme Corp", shipFrom["name"])
	assert.Equal(t, "2.5", payload["weight"])
}

func TestRenderFailsOnMissingColumn(t *testing.T) {
	r := NewTemplateRenderer()
	tmpl := `{"name": "{{.Row.no_such_column}}"}`

	_, err := r.Render(context.Background(), tmpl, testRow(), model.ShipperInfo{})
	assert.Error(t, err)
}

func TestRenderFailsOnParseError(t *testing.T) {
	r := NewTemplateRenderer()
	_, err := r.Render(context.Background(), `{{.Row.name`, testRow(), model.ShipperInfo{})
	assert.Error(t, err)
}

func TestRenderFailsOnInvalidJSONOutput(t *testing.T) {
	r := NewTemplateRenderer()
	_, err := r.Render(context.Background(), `not a json object`, testRow(), model.ShipperInfo{})
	assert.Error(t, err)
}

func TestJSONEscapeFunc(t *testing.T) {
	r := NewTemplateRenderer()
	row := port.SourceRow{
		Number: 1,
		Data:   map[string]interface{}{"note": `He said "hi"` + "\nnext line"},
	}
	tmpl := `{"note": "{{jsonEscape .Row.note}}"}`

	payload, err := r.Render(context.Background(), tmpl, row, model.ShipperInfo{})
	assert.NoError(t, err)
	assert.Equal(t, `He said "hi"`+"\nnext line", payload["note"])
}

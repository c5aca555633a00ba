// Package carrier implements the carrier gateway over the carrier's JSON
// HTTP API.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

const moduleName = "carrier"

// Client talks to the carrier's rating and shipping endpoints.
type Client struct {
	endpoint      string
	apiKey        string
	accountNumber string
	httpClient    *http.Client
}

// NewClient creates a carrier client from configuration.
func NewClient(cfg *config.Config) *Client {
	carrierCfg := cfg.Shipbatch.Carrier
	return &Client{
		endpoint:      carrierCfg.Endpoint,
		apiKey:        carrierCfg.APIKey,
		accountNumber: carrierCfg.AccountNumber,
		httpClient: &http.Client{
			Timeout: time.Duration(carrierCfg.TimeoutSeconds) * time.Second,
		},
	}
}

var _ port.CarrierGateway = (*Client)(nil)

// rateResponse is the carrier's rating payload. Warnings entries are either
// plain strings or objects carrying a "message" field, depending on the
// carrier endpoint version.
type rateResponse struct {
	TotalCharges      string        `json:"total_charges"`
	Currency          string        `json:"currency"`
	ServiceCode       string        `json:"service_code"`
	AddressCorrection bool          `json:"addressCorrection"`
	Warnings          []interface{} `json:"warnings"`
}

// quoteWarnings flattens the rating response's warning signals into
// messages.
func (r *rateResponse) quoteWarnings() []string {
	var warnings []string
	if r.AddressCorrection {
		warnings = append(warnings, "Address correction suggested")
	}
	for _, w := range r.Warnings {
		switch v := w.(type) {
		case string:
			warnings = append(warnings, v)
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok {
				warnings = append(warnings, msg)
			}
		}
	}
	return warnings
}

// shipmentResponse is the carrier's shipment creation payload.
type shipmentResponse struct {
	Packages []struct {
		TrackingNumber string `json:"tracking_number"`
		LabelPath      string `json:"label_path"`
	} `json:"packages"`
	TotalCharges string `json:"total_charges"`
	Currency     string `json:"currency"`
}

// Rate returns a cost quote for a rendered shipment payload.
func (c *Client) Rate(ctx context.Context, payload map[string]interface{}) (*model.RatingQuote, error) {
	var resp rateResponse
	if err := c.post(ctx, "/rate", payload, &resp); err != nil {
		return nil, err
	}
	return &model.RatingQuote{
		TotalCharges: resp.TotalCharges,
		Currency:     resp.Currency,
		ServiceCode:  resp.ServiceCode,
		Warnings:     resp.quoteWarnings(),
	}, nil
}

// CreateShipment creates a shipment from a rendered payload.
func (c *Client) CreateShipment(ctx context.Context, payload map[string]interface{}) (*model.ShipmentConfirmation, error) {
	var resp shipmentResponse
	if err := c.post(ctx, "/shipments", payload, &resp); err != nil {
		return nil, err
	}

	confirmation := &model.ShipmentConfirmation{
		TotalCharges: resp.TotalCharges,
		Currency:     resp.Currency,
	}
	for _, pkg := range resp.Packages {
		confirmation.TrackingNumbers = append(confirmation.TrackingNumbers, pkg.TrackingNumber)
		confirmation.LabelPaths = append(confirmation.LabelPaths, pkg.LabelPath)
	}
	return confirmation, nil
}

// post sends a JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to encode carrier request", err, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to build carrier request", err, false)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.accountNumber != "" {
		req.Header.Set("X-Account-Number", c.accountNumber)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return exception.NewBatchError(moduleName, "carrier request failed", err, true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to read carrier response", err, true)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.statusError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return exception.NewBatchError(moduleName, "failed to decode carrier response", err, false)
	}
	return nil
}

// apiError is the carrier's error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusError maps a non-success HTTP status to a classified error.
func (c *Client) statusError(status int, body []byte) error {
	var apiErr apiError
	message := ""
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
	} else {
		message = string(body)
	}
	logger.Debugf("Carrier API returned %d: %s", status, message)

	switch status {
	case http.StatusTooManyRequests:
		return exception.NewBatchError(moduleName, fmt.Sprintf("rate limit exceeded (429): %s", message), nil, true)
	case http.StatusUnauthorized, http.StatusForbidden:
		return exception.NewBatchError(moduleName, fmt.Sprintf("unauthorized (%d): %s", status, message), nil, false)
	default:
		retryable := status >= 500
		return exception.NewBatchError(moduleName, fmt.Sprintf("carrier API error (%d): %s", status, message), nil, retryable)
	}
}

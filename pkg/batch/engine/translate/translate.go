// Package translate maps raw errors from any layer onto the stable error
// code taxonomy surfaced to operators and persisted on jobs and rows.
package translate

import (
	"context"
	"errors"
	"strings"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

// Stable error codes. Codes are part of the persisted contract: they appear
// on failed jobs and rows and must not be renumbered.
const (
	CodeDataValidation = "E-1001"
	CodeRateLimit      = "E-3002"
	CodeAddress        = "E-3003"
	CodeCarrier        = "E-3005"
	CodeSystem         = "E-4001"
	CodeFile           = "E-4002"
	CodeTemplate       = "E-4003"
	CodeAuth           = "E-5001"
)

// Error kinds group codes into broad categories for display.
const (
	KindData      = "data"
	KindCarrier   = "carrier"
	KindSystem    = "system"
	KindAuth      = "auth"
	KindTransient = "transient"
)

// DefaultErrorTranslator classifies errors by inspecting wrapped error
// types, the originating module of a BatchError, and well-known message
// fragments from the carrier API.
type DefaultErrorTranslator struct{}

// NewDefaultErrorTranslator creates a translator.
func NewDefaultErrorTranslator() *DefaultErrorTranslator {
	return &DefaultErrorTranslator{}
}

var _ port.ErrorTranslator = (*DefaultErrorTranslator)(nil)

// Translate maps err to a TranslatedError. A nil error translates to the
// zero value.
func (t *DefaultErrorTranslator) Translate(err error) port.TranslatedError {
	if err == nil {
		return port.TranslatedError{}
	}

	msg := exception.ExtractErrorMessage(err)
	lower := strings.ToLower(msg)

	var transition *repository.InvalidTransitionError
	if errors.As(err, &transition) {
		return port.TranslatedError{
			Code:    CodeSystem,
			Kind:    KindSystem,
			Message: msg,
			Hint:    "The job is in a state that does not allow this operation. Check the job status before retrying.",
		}
	}

	if errors.Is(err, repository.ErrJobNotFound) || errors.Is(err, repository.ErrRowNotFound) {
		return port.TranslatedError{
			Code:    CodeSystem,
			Kind:    KindSystem,
			Message: msg,
			Hint:    "The referenced job or row no longer exists.",
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return port.TranslatedError{
			Code:    CodeCarrier,
			Kind:    KindTransient,
			Message: msg,
			Hint:    "The operation timed out or was cancelled. The batch can be resumed.",
		}
	}

	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "429"):
		return port.TranslatedError{
			Code:    CodeRateLimit,
			Kind:    KindTransient,
			Message: msg,
			Hint:    "The carrier is rate limiting requests. Wait a moment and resume the batch.",
		}
	case strings.Contains(lower, "address") && (strings.Contains(lower, "invalid") || strings.Contains(lower, "not found") || strings.Contains(lower, "validation")):
		return port.TranslatedError{
			Code:    CodeAddress,
			Kind:    KindData,
			Message: msg,
			Hint:    "The carrier rejected the destination address. Correct the address in the source data.",
		}
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "authentication") || strings.Contains(lower, "invalid credentials") || strings.Contains(lower, "401"):
		return port.TranslatedError{
			Code:    CodeAuth,
			Kind:    KindAuth,
			Message: msg,
			Hint:    "Carrier authentication failed. Check the configured API credentials.",
		}
	}

	var batchErr *exception.BatchError
	if errors.As(err, &batchErr) {
		return t.translateByModule(batchErr, msg)
	}

	return port.TranslatedError{
		Code:    CodeSystem,
		Kind:    KindSystem,
		Message: msg,
		Hint:    "An unexpected internal error occurred. The job state is preserved and can be recovered.",
	}
}

// translateByModule classifies a BatchError by the module that raised it.
func (t *DefaultErrorTranslator) translateByModule(batchErr *exception.BatchError, msg string) port.TranslatedError {
	switch batchErr.Module {
	case "renderer", "template":
		return port.TranslatedError{
			Code:    CodeTemplate,
			Kind:    KindData,
			Message: msg,
			Hint:    "The mapping template could not be rendered. Check the template against the source columns.",
		}
	case "source", "file":
		return port.TranslatedError{
			Code:    CodeFile,
			Kind:    KindData,
			Message: msg,
			Hint:    "The source data could not be read. Verify the file exists and is not open elsewhere.",
		}
	case "carrier":
		kind := KindCarrier
		if batchErr.IsRetryable() {
			kind = KindTransient
		}
		return port.TranslatedError{
			Code:    CodeCarrier,
			Kind:    kind,
			Message: msg,
			Hint:    "The carrier rejected the shipment request.",
		}
	case "validation":
		return port.TranslatedError{
			Code:    CodeDataValidation,
			Kind:    KindData,
			Message: msg,
			Hint:    "A source row failed validation. Fix the row and restart or resume the batch.",
		}
	default:
		return port.TranslatedError{
			Code:    CodeSystem,
			Kind:    KindSystem,
			Message: msg,
			Hint:    "An unexpected internal error occurred. The job state is preserved and can be recovered.",
		}
	}
}

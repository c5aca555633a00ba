package translate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

func TestTranslateNilError(t *testing.T) {
	tr := NewDefaultErrorTranslator()
	assert.Equal(t, "", tr.Translate(nil).Code)
}

func TestTranslateInvalidTransition(t *testing.T) {
	tr := NewDefaultErrorTranslator()
	err := fmt.Errorf("wrapped: %w", &repository.InvalidTransitionError{
		Entity:    "job",
		ID:        "j1",
		Current:   "completed",
		Attempted: "running",
	})

	got := tr.Translate(err)
	assert.Equal(t, CodeSystem, got.Code)
	assert.Equal(t, KindSystem, got.Kind)
	assert.NotEmpty(t, got.Hint)
}

func TestTranslateNotFound(t *testing.T) {
	tr := NewDefaultErrorTranslator()
	assert.Equal(t, CodeSystem, tr.Translate(repository.ErrJobNotFound).Code)
	assert.Equal(t, CodeSystem, tr.Translate(repository.ErrRowNotFound).Code)
}

func TestTranslateContextErrors(t *testing.T) {
	tr := NewDefaultErrorTranslator()

	got := tr.Translate(context.Canceled)
	assert.Equal(t, CodeCarrier, got.Code)
	assert.Equal(t, KindTransient, got.Kind)

	got = tr.Translate(fmt.Errorf("call failed: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTransient, got.Kind)
}

func TestTranslateCarrierMessages(t *testing.T) {
	tr := NewDefaultErrorTranslator()

	cases := []struct {
		err      error
		wantCode string
		wantKind string
	}{
		{errors.New("carrier API rate limit exceeded (429)"), CodeRateLimit, KindTransient},
		{errors.New("destination address not found"), CodeAddress, KindData},
		{errors.New("address validation failed"), CodeAddress, KindData},
		{errors.New("carrier API unauthorized (401)"), CodeAuth, KindAuth},
		{errors.New("authentication token expired"), CodeAuth, KindAuth},
	}
	for _, tc := range cases {
		got := tr.Translate(tc.err)
		assert.Equal(t, tc.wantCode, got.Code, "error %q", tc.err)
		assert.Equal(t, tc.wantKind, got.Kind, "error %q", tc.err)
	}
}

func TestTranslateByModule(t *testing.T) {
	tr := NewDefaultErrorTranslator()

	cases := []struct {
		module    string
		retryable bool
		wantCode  string
		wantKind  string
	}{
		{"renderer", false, CodeTemplate, KindData},
		{"template", false, CodeTemplate, KindData},
		{"source", false, CodeFile, KindData},
		{"file", false, CodeFile, KindData},
		{"carrier", false, CodeCarrier, KindCarrier},
		{"carrier", true, CodeCarrier, KindTransient},
		{"validation", false, CodeDataValidation, KindData},
		{"somewhere-else", false, CodeSystem, KindSystem},
	}
	for _, tc := range cases {
		err := exception.NewBatchError(tc.module, "boom", errors.New("cause"), tc.retryable)
		got := tr.Translate(err)
		assert.Equal(t, tc.wantCode, got.Code, "module %s", tc.module)
		assert.Equal(t, tc.wantKind, got.Kind, "module %s", tc.module)
	}
}

func TestTranslateUnknownError(t *testing.T) {
	tr := NewDefaultErrorTranslator()
	got := tr.Translate(errors.New("something odd"))
	assert.Equal(t, CodeSystem, got.Code)
	assert.Equal(t, KindSystem, got.Kind)
	assert.Equal(t, "something odd", got.Message)
}

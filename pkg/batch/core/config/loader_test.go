package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testYAML = `
shipbatch:
  batch:
    default_mode: auto
    preview_sample_rows: 5
  carrier:
    endpoint: https://api.example.com
    api_key: ${TEST_CARRIER_API_KEY}
  shipper:
    name: Acme Corp
    city: Springfield
  database:
    metadata:
      type: sqlite
      database: shipbatch.db
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", EmbeddedConfig("shipbatch: {}"))
	assert.NoError(t, err)

	assert.Equal(t, "confirm", cfg.Shipbatch.Batch.DefaultMode)
	assert.Equal(t, 20, cfg.Shipbatch.Batch.PreviewSampleRows)
	assert.Equal(t, 3, cfg.Shipbatch.Batch.WriteBackRetry.MaxAttempts)
	assert.Equal(t, "UTC", cfg.Shipbatch.System.Timezone)
	assert.Equal(t, "INFO", cfg.Shipbatch.System.Logging.Level)
	assert.Equal(t, "metadata", cfg.Shipbatch.Infrastructure.JobRepositoryDBRef)
}

func TestLoadConfigMergesYAML(t *testing.T) {
	t.Setenv("TEST_CARRIER_API_KEY", "secret-key")

	cfg, err := LoadConfig("", EmbeddedConfig(testYAML))
	assert.NoError(t, err)

	assert.Equal(t, "auto", cfg.Shipbatch.Batch.DefaultMode)
	assert.Equal(t, 5, cfg.Shipbatch.Batch.PreviewSampleRows)
	assert.Equal(t, "https://api.example.com", cfg.Shipbatch.Carrier.Endpoint)
	// Placeholders are expanded from the environment before unmarshalling.
	assert.Equal(t, "secret-key", cfg.Shipbatch.Carrier.APIKey)

	// YAML values that were not set keep their defaults.
	assert.Equal(t, "UTC", cfg.Shipbatch.System.Timezone)
	assert.Equal(t, 3, cfg.Shipbatch.Batch.WriteBackRetry.MaxAttempts)

	assert.Equal(t, "Acme Corp", cfg.Shipbatch.Shipper["name"])
	assert.Contains(t, cfg.Shipbatch.AdaptorConfigs, "metadata")
}

func TestLoadConfigEnvOverridesYAML(t *testing.T) {
	t.Setenv("TEST_CARRIER_API_KEY", "secret-key")
	t.Setenv("SHIPBATCH_BATCH_DEFAULT_MODE", "confirm")
	t.Setenv("SHIPBATCH_CARRIER_TIMEOUT_SECONDS", "60")

	cfg, err := LoadConfig("", EmbeddedConfig(testYAML))
	assert.NoError(t, err)

	assert.Equal(t, "confirm", cfg.Shipbatch.Batch.DefaultMode)
	assert.Equal(t, 60, cfg.Shipbatch.Carrier.TimeoutSeconds)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cfg := NewConfig()
	cfg.Shipbatch.Batch.DefaultMode = "yolo"
	assert.Error(t, validateConfig(cfg))

	cfg = NewConfig()
	cfg.Shipbatch.Batch.PreviewSampleRows = 0
	assert.Error(t, validateConfig(cfg))

	assert.NoError(t, validateConfig(NewConfig()))
}

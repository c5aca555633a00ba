package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// RetryConfig holds configuration for retry mechanisms such as the write-back flush.
type RetryConfig struct {
	MaxAttempts     int `yaml:"max_attempts"`     // MaxAttempts is the maximum number of retry attempts.
	InitialInterval int `yaml:"initial_interval"` // InitialInterval is the initial backoff interval in milliseconds.
}

// BatchConfig holds configuration specific to the batch execution engine.
type BatchConfig struct {
	// DefaultMode is the execution mode used when the operator does not choose one ("confirm" or "auto").
	DefaultMode string `yaml:"default_mode"`
	// PreviewSampleRows caps how many rows a preview renders before extrapolating.
	PreviewSampleRows int `yaml:"preview_sample_rows"`
	// NotifyOnCompletion enables end-of-batch notifications.
	NotifyOnCompletion bool `yaml:"notify_on_completion"`
	// WriteBackRetry is the retry configuration for the end-of-batch write-back flush.
	WriteBackRetry RetryConfig `yaml:"write_back_retry"`
}

// CarrierConfig holds carrier API connection settings.
type CarrierConfig struct {
	// Endpoint is the carrier API base URL.
	Endpoint string `yaml:"endpoint"`
	// APIKey authenticates requests to the carrier.
	APIKey string `yaml:"api_key"`
	// AccountNumber is the shipper account billed for created shipments.
	AccountNumber string `yaml:"account_number"`
	// TimeoutSeconds is the per-request timeout for carrier calls.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// JobRepositoryDBRef is the name of the DBConnection used by JobRepository (e.g., "metadata").
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
}

// ShipbatchConfig holds all configuration under the "shipbatch" top-level key.
type ShipbatchConfig struct {
	// Batch contains batch execution specific configurations.
	Batch BatchConfig `yaml:"batch"`
	// Carrier contains carrier API connection settings.
	Carrier CarrierConfig `yaml:"carrier"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Infrastructure contains infrastructure-related configurations.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// Shipper holds the raw shipper address and account properties. It is
	// bound into model.ShipperInfo by NewShipperInfoProvider.
	Shipper map[string]interface{} `yaml:"shipper"`
	// AdaptorConfigs holds configurations for database connections, keyed by logical name.
	AdaptorConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Shipbatch contains the top-level configuration for the batch engine.
	Shipbatch ShipbatchConfig `yaml:"shipbatch"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	cfg := &Config{
		Shipbatch: ShipbatchConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Batch: BatchConfig{
				DefaultMode:        "confirm", // Confirm-before-execute unless overridden.
				PreviewSampleRows:  20,
				NotifyOnCompletion: false,
				WriteBackRetry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 1000,
				},
			},
			Carrier: CarrierConfig{
				TimeoutSeconds: 30,
			},
			Infrastructure: InfrastructureConfig{
				JobRepositoryDBRef: "metadata",
			},
		},
	}

	// Initialize maps as empty, to be populated by YAML or by mergeConfig.
	cfg.Shipbatch.Shipper = map[string]interface{}{}
	cfg.Shipbatch.AdaptorConfigs = map[string]interface{}{}
	return cfg
}

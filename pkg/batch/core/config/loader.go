package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading and managing application configuration
// from various sources, including YAML files and environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from a file and environment variables.
// This function is intended to be called only once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// 1. Defaults come from NewConfig().

	// 2. Expand environment variable placeholders, then load the embedded
	// YAML into a temporary Config struct.
	expander := NewOsEnvironmentExpander()
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment variables in config", err, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false)
	}

	// 3. Merge YAML configuration into the default configuration.
	mergeConfig(cfg, &yamlConfig)

	// 4. Override with environment variables.
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It initializes the application configuration by loading defaults,
// merging from embedded YAML, and overriding with environment variables.
// It also sets the global logger level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Shipbatch.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Shipbatch.System.Logging.Level)

	if err := validateConfig(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "configuration validation failed", err, false)
	}

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
// This function is expected to be called only once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// validateConfig checks settings that would otherwise fail deep inside a batch.
func validateConfig(cfg *Config) error {
	switch cfg.Shipbatch.Batch.DefaultMode {
	case "confirm", "auto":
	default:
		return fmt.Errorf("unknown default execution mode: '%s' (expected 'confirm' or 'auto')", cfg.Shipbatch.Batch.DefaultMode)
	}
	if cfg.Shipbatch.Batch.PreviewSampleRows <= 0 {
		return fmt.Errorf("preview_sample_rows must be positive, got %d", cfg.Shipbatch.Batch.PreviewSampleRows)
	}
	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig will overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeShipbatchConfig(&destConfig.Shipbatch, &sourceConfig.Shipbatch)
}

// mergeShipbatchConfig merges source into dest.
func mergeShipbatchConfig(dest, source *ShipbatchConfig) {
	// Merge BatchConfig
	if source.Batch.DefaultMode != "" {
		dest.Batch.DefaultMode = source.Batch.DefaultMode
	}
	if source.Batch.PreviewSampleRows != 0 {
		dest.Batch.PreviewSampleRows = source.Batch.PreviewSampleRows
	}
	if source.Batch.NotifyOnCompletion {
		dest.Batch.NotifyOnCompletion = true
	}
	mergeRetryConfig(&dest.Batch.WriteBackRetry, &source.Batch.WriteBackRetry)

	// Merge CarrierConfig
	if source.Carrier.Endpoint != "" {
		dest.Carrier.Endpoint = source.Carrier.Endpoint
	}
	if source.Carrier.APIKey != "" {
		dest.Carrier.APIKey = source.Carrier.APIKey
	}
	if source.Carrier.AccountNumber != "" {
		dest.Carrier.AccountNumber = source.Carrier.AccountNumber
	}
	if source.Carrier.TimeoutSeconds != 0 {
		dest.Carrier.TimeoutSeconds = source.Carrier.TimeoutSeconds
	}

	// Merge SystemConfig
	mergeSystemConfig(&dest.System, &source.System)

	// Merge InfrastructureConfig
	if source.Infrastructure.JobRepositoryDBRef != "" {
		dest.Infrastructure.JobRepositoryDBRef = source.Infrastructure.JobRepositoryDBRef
	}

	// Merge Shipper properties
	if source.Shipper != nil {
		if dest.Shipper == nil {
			dest.Shipper = make(map[string]interface{})
		}
		for key, value := range source.Shipper {
			dest.Shipper[key] = value
		}
	}

	// Merge AdaptorConfigs (this is the critical part for database configs)
	if source.AdaptorConfigs != nil {
		if dest.AdaptorConfigs == nil {
			dest.AdaptorConfigs = make(map[string]interface{})
		}
		for key, value := range source.AdaptorConfigs {
			dest.AdaptorConfigs[key] = value
		}
	}
}

// mergeRetryConfig merges source into dest.
func mergeRetryConfig(dest, source *RetryConfig) {
	if source.MaxAttempts != 0 {
		dest.MaxAttempts = source.MaxAttempts
	}
	if source.InitialInterval != 0 {
		dest.InitialInterval = source.InitialInterval
	}
}

// mergeSystemConfig merges source into dest.
func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, and bool types.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}

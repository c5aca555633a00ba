// Package config provides core configuration structures and utilities for the batch engine.
// This module defines Fx providers for configuration-related components.
package config

import (
	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
)

// NewLoggingConfigProvider extracts and provides *LoggingConfig from *Config.
// This allows other Fx components to depend only on the logging configuration.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Shipbatch.System.Logging
}

// NewShipperInfoProvider binds the raw shipper properties from configuration
// into a typed model.ShipperInfo.
func NewShipperInfoProvider(cfg *Config) (model.ShipperInfo, error) {
	var shipper model.ShipperInfo
	if err := configbinder.BindProperties(cfg.Shipbatch.Shipper, &shipper); err != nil {
		return model.ShipperInfo{}, exception.NewBatchError(moduleName, "failed to bind shipper properties", err, false)
	}
	return shipper, nil
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewShipperInfoProvider),
)

// Package database opens GORM connections from the named adaptor
// configurations, supporting SQLite, PostgreSQL and MySQL.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

const moduleName = "database"

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// ConnectionConfig describes one named database connection.
type ConnectionConfig struct {
	Type     string     `yaml:"type"`
	Host     string     `yaml:"host"`
	Port     int        `yaml:"port"`
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	Database string     `yaml:"database"`
	Sslmode  string     `yaml:"sslmode"`
	Pool     PoolConfig `yaml:"pool"`
}

// dialectorFor builds the GORM dialector for a connection configuration.
func dialectorFor(c ConnectionConfig) (gorm.Dialector, error) {
	switch c.Type {
	case "sqlite":
		if c.Database == "" {
			return nil, fmt.Errorf("sqlite database path cannot be empty")
		}
		return sqlite.Open(c.Database), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.Sslmode)
		return postgres.Open(dsn), nil
	case "mysql":
		authPart := ""
		if c.User != "" {
			authPart = c.User
			if c.Password != "" {
				authPart = fmt.Sprintf("%s:%s", c.User, c.Password)
			}
			authPart += "@"
		}
		dsn := fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			authPart, c.Host, c.Port, c.Database)
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.Type)
	}
}

// Connection is an opened GORM connection together with its dialect type.
type Connection struct {
	DB   *gorm.DB
	Type string
	Name string
}

// Close closes the underlying sql.DB.
func (c *Connection) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Open establishes the named GORM connection from the adaptor configs.
func Open(cfg *config.Config, name string) (*Connection, error) {
	rawConfig, ok := cfg.Shipbatch.AdaptorConfigs[name]
	if !ok {
		return nil, exception.NewBatchError(moduleName,
			fmt.Sprintf("database configuration '%s' not found", name), nil, false)
	}

	var connConfig ConnectionConfig
	props, ok := rawConfig.(map[string]interface{})
	if !ok {
		return nil, exception.NewBatchError(moduleName,
			fmt.Sprintf("database configuration '%s' is not a mapping", name), nil, false)
	}
	if err := configbinder.BindProperties(props, &connConfig); err != nil {
		return nil, exception.NewBatchError(moduleName,
			fmt.Sprintf("failed to decode database config '%s'", name), err, false)
	}

	dialector, err := dialectorFor(connConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName,
			fmt.Sprintf("failed to create dialector for '%s'", name), err, false)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger("SILENT")})
	if err != nil {
		return nil, exception.NewBatchError(moduleName,
			fmt.Sprintf("failed to open connection '%s'", name), err, false)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to get underlying sql.DB", err, false)
	}
	if connConfig.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(connConfig.Pool.MaxOpenConns)
	}
	if connConfig.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(connConfig.Pool.MaxIdleConns)
	}
	if connConfig.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(connConfig.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}

	logger.Infof("Established DB connection: %s (%s)", name, connConfig.Type)
	return &Connection{DB: db, Type: connConfig.Type, Name: name}, nil
}

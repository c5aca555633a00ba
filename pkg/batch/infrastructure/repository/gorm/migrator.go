package gorm

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	gormdb "gorm.io/gorm"

	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsTable = "shipbatch_schema_migrations"

// Migrate applies all pending schema migrations for the job store. dbType
// must match the dialect the connection was opened with.
func Migrate(ctx context.Context, db *gormdb.DB, dbType string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to get underlying sql.DB for migration", err, false)
	}

	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to create migration source", err, false)
	}

	dbDriver, err := migrateDriver(sqlDB, dbType)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to create migration driver", err, false)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbType, dbDriver)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to create migrate instance", err, false)
	}
	// No m.Close() here: the sqlite database driver would close the
	// caller-owned pool along with it.

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return exception.NewBatchError(moduleName, fmt.Sprintf("migration failed (db: %s)", dbType), err, false)
	}

	logger.Infof("Job store schema is up to date (db: %s)", dbType)
	return nil
}

// migrateDriver builds a migrate/v4 database driver for the given dialect.
func migrateDriver(sqlDB *sql.DB, dbType string) (migratedb.Driver, error) {
	switch dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: migrationsTable})
	case "sqlite":
		return sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
	}
}

package gorm

import (
	"context"

	"go.uber.org/fx"
	gormdb "gorm.io/gorm"

	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/infrastructure/database"
)

// NewJobStoreConnection opens the job store connection named by the
// infrastructure configuration and migrates its schema. The connection is
// closed when the application stops.
func NewJobStoreConnection(lc fx.Lifecycle, cfg *config.Config) (*database.Connection, error) {
	conn, err := database.Open(cfg, cfg.Shipbatch.Infrastructure.JobRepositoryDBRef)
	if err != nil {
		return nil, err
	}
	if err := Migrate(context.Background(), conn.DB, conn.Type); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return conn.Close()
		},
	})
	return conn, nil
}

// Module provides the job store connection and the GORM-backed repositories.
var Module = fx.Options(
	fx.Provide(NewJobStoreConnection),
	fx.Provide(func(conn *database.Connection) *gormdb.DB {
		return conn.DB
	}),
	fx.Provide(func(db *gormdb.DB) repository.JobRepository {
		return NewJobRepository(db)
	}),
	fx.Provide(func(db *gormdb.DB) repository.AuditRepository {
		return NewAuditRepository(db)
	}),
	fx.Provide(func(db *gormdb.DB) port.WriteBackTarget {
		return NewWriteBackTarget(db)
	}),
)

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	sqlite_driver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/shipbatch/pkg/batch/component/renderer"
	"github.com/tigerroll/shipbatch/pkg/batch/component/source"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/events"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/executor"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/mode"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/preview"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/recovery"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/translate"
	gormrepo "github.com/tigerroll/shipbatch/pkg/batch/infrastructure/repository/gorm"
	"github.com/tigerroll/shipbatch/pkg/batch/infrastructure/writeback"
)

var (
	globalDB *gorm.DB
	once     sync.Once
)

func setupDB(t *testing.T) *gorm.DB {
	once.Do(func() {
		db, err := gorm.Open(sqlite_driver.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		assert.NoError(t, err)

		sqlDB, err := db.DB()
		assert.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)

		for _, stmt := range []string{
			`CREATE TABLE IF NOT EXISTS shipment_jobs (
				id TEXT PRIMARY KEY, name TEXT DEFAULT '', description TEXT DEFAULT '',
				original_command TEXT DEFAULT '', status TEXT NOT NULL, mode TEXT DEFAULT '',
				total_rows INTEGER DEFAULT 0, processed_rows INTEGER DEFAULT 0,
				successful_rows INTEGER DEFAULT 0, failed_rows INTEGER DEFAULT 0,
				error_code TEXT DEFAULT '', error_message TEXT DEFAULT '',
				created_at TEXT DEFAULT '', updated_at TEXT DEFAULT '',
				started_at TEXT DEFAULT '', completed_at TEXT DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS shipment_job_rows (
				id TEXT PRIMARY KEY, job_id TEXT NOT NULL, row_number INTEGER NOT NULL,
				row_checksum TEXT DEFAULT '', status TEXT NOT NULL,
				tracking_number TEXT DEFAULT '', label_path TEXT DEFAULT '',
				cost_cents BIGINT DEFAULT 0, error_code TEXT DEFAULT '',
				error_message TEXT DEFAULT '', created_at TEXT DEFAULT '', processed_at TEXT DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS shipment_audit_log (
				id TEXT PRIMARY KEY, job_id TEXT NOT NULL, row_id TEXT DEFAULT '',
				event TEXT NOT NULL, detail TEXT DEFAULT '', created_at TEXT DEFAULT ''
			)`,
		} {
			assert.NoError(t, db.Exec(stmt).Error)
		}
		globalDB = db
	})
	return globalDB
}

// stubCarrier creates shipments with sequential tracking numbers.
type stubCarrier struct {
	mu      sync.Mutex
	created int
}

func (c *stubCarrier) Rate(ctx context.Context, payload map[string]interface{}) (*model.RatingQuote, error) {
	return &model.RatingQuote{TotalCharges: "1.00", Currency: "USD", ServiceCode: "GND"}, nil
}

func (c *stubCarrier) CreateShipment(ctx context.Context, payload map[string]interface{}) (*model.ShipmentConfirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created++
	return &model.ShipmentConfirmation{
		TrackingNumbers: []string{fmt.Sprintf("1ZNEW%03d", c.created)},
		TotalCharges:    "1.00",
		Currency:        "USD",
	}, nil
}

func (c *stubCarrier) createdShipments() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

// noopTarget discards durable write-back records.
type noopTarget struct{}

func (noopTarget) Record(ctx context.Context, jobID string, rowNumber int, trackingNumber, labelPath string, costCents int64) error {
	return nil
}

func writeFile(t *testing.T, path, content string) {
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestDeps(t *testing.T, db *gorm.DB, carrier *stubCarrier, opts RunOptions) RunnerDeps {
	jobRepo := gormrepo.NewJobRepository(db)
	auditRepo := gormrepo.NewAuditRepository(db)
	rend := renderer.NewTemplateRenderer()

	return RunnerDeps{
		Executor: executor.NewBatchExecutor(
			jobRepo, auditRepo,
			source.NewFileSourceResolver(),
			rend, carrier,
			translate.NewDefaultErrorTranslator(),
			events.NewEmitter(),
			mode.NewSessionModeManager(model.ModeAuto),
			writeback.NewRetryingWriteBack(noopTarget{}, 2, time.Millisecond),
			nil,
		),
		Recovery:    recovery.NewManager(jobRepo, auditRepo),
		Preview:     preview.NewGenerator(rend, carrier, 20),
		ModeManager: mode.NewSessionModeManager(model.ModeAuto),
		Resolver:    source.NewFileSourceResolver(),
		Shipper:     model.ShipperInfo{},
		Opts:        opts,
		AppCtx:      context.Background(),
	}
}

func TestRunBatchResumesInterruptedJobWithoutReshipping(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "orders.csv")
	writeFile(t, csvPath, "recipient_name,weight\nAlice,1\nBob,2\nCara,3\n")
	tmplPath := filepath.Join(dir, "mapping.json.tmpl")
	writeFile(t, tmplPath, `{"recipient": "{{jsonEscape .Row.recipient_name}}", "weight": "{{jsonEscape .Row.weight}}"}`)

	carrier := &stubCarrier{}
	deps := newTestDeps(t, db, carrier, RunOptions{
		SourcePath:     csvPath,
		TemplatePath:   tmplPath,
		RecoveryChoice: "resume",
	})
	jobRepo := gormrepo.NewJobRepository(db)

	// Simulate a crash: a running job whose first row already shipped.
	job, err := deps.Executor.Prepare(ctx, "orders", "ship march orders", csvPath)
	assert.NoError(t, err)
	assert.NoError(t, jobRepo.UpdateStatus(ctx, job.ID, model.JobStatusRunning))
	rows, err := jobRepo.GetRows(ctx, job.ID)
	assert.NoError(t, err)
	assert.NoError(t, jobRepo.StartRow(ctx, rows[0].ID))
	assert.NoError(t, jobRepo.CompleteRow(ctx, rows[0].ID, "1ZOLD", "", 100))

	assert.NoError(t, runBatch(ctx, deps))

	// The interrupted job itself ran to completion over its pending rows.
	loaded, err := jobRepo.GetJob(ctx, job.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, loaded.Status)
	assert.Equal(t, 3, loaded.SuccessfulRows)

	// Only the two pending rows went to the carrier; row 1 kept its shipment.
	assert.Equal(t, 2, carrier.createdShipments())
	rows, err = jobRepo.GetRows(ctx, job.ID)
	assert.NoError(t, err)
	assert.Equal(t, "1ZOLD", rows[0].TrackingNumber)
	assert.Equal(t, "1ZNEW001", rows[1].TrackingNumber)
	assert.Equal(t, "1ZNEW002", rows[2].TrackingNumber)

	// No second job was prepared over the same source.
	jobs, err := jobRepo.ListJobs(ctx, "", 0)
	assert.NoError(t, err)
	assert.Len(t, jobs, 1)
}

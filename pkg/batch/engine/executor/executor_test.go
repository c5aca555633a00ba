package executor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	sqlite_driver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/events"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/executor"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/mode"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/translate"
	gormrepo "github.com/tigerroll/shipbatch/pkg/batch/infrastructure/repository/gorm"
	"github.com/tigerroll/shipbatch/pkg/batch/infrastructure/writeback"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/exception"
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

// fakeSource serves fixed rows and records write-backs in memory.
type fakeSource struct {
	rows        []port.SourceRow
	writeBacks  map[int]string
	wbErr       error
	onWriteBack func(rowNumber int)
}

func newFakeSource(rowCount int) *fakeSource {
	s := &fakeSource{writeBacks: make(map[int]string)}
	for i := 1; i <= rowCount; i++ {
		s.rows = append(s.rows, port.SourceRow{
			Number: i,
			Data: map[string]interface{}{
				"recipient_name": fmt.Sprintf("Recipient %d", i),
				"address":        "123 Main St",
				"weight":         "2.0",
			},
		})
	}
	return s
}

func (s *fakeSource) Name() string                                       { return "fake.csv" }
func (s *fakeSource) Rows(ctx context.Context) ([]port.SourceRow, error) { return s.rows, nil }

func (s *fakeSource) Row(ctx context.Context, rowNumber int) (port.SourceRow, error) {
	for _, row := range s.rows {
		if row.Number == rowNumber {
			return row, nil
		}
	}
	return port.SourceRow{}, fmt.Errorf("row %d not found", rowNumber)
}
func (s *fakeSource) WriteBack(ctx context.Context, rowNumber int, trackingNumber, labelPath string, costCents int64) error {
	if s.onWriteBack != nil {
		s.onWriteBack(rowNumber)
	}
	if s.wbErr != nil {
		return s.wbErr
	}
	s.writeBacks[rowNumber] = trackingNumber
	return nil
}

type fakeResolver struct {
	source port.DataSource
}

func (r *fakeResolver) Resolve(ctx context.Context, name string) (port.DataSource, error) {
	return r.source, nil
}

// echoRenderer returns the row data as the payload.
type echoRenderer struct{}

func (echoRenderer) Render(ctx context.Context, template string, row port.SourceRow, shipper model.ShipperInfo) (map[string]interface{}, error) {
	return row.Data, nil
}

// fakeCarrier ships every request for a fixed charge, optionally failing a
// specific call or running a hook per call.
type fakeCarrier struct {
	charge     string
	failOnCall int
	failErr    error
	onCall     func(call int)
	calls      int
}

func (c *fakeCarrier) Rate(ctx context.Context, payload map[string]interface{}) (*model.RatingQuote, error) {
	return &model.RatingQuote{TotalCharges: c.charge, Currency: "USD", ServiceCode: "GND"}, nil
}

func (c *fakeCarrier) CreateShipment(ctx context.Context, payload map[string]interface{}) (*model.ShipmentConfirmation, error) {
	c.calls++
	if c.onCall != nil {
		c.onCall(c.calls)
	}
	if c.failOnCall != 0 && c.calls == c.failOnCall {
		return nil, c.failErr
	}
	return &model.ShipmentConfirmation{
		TrackingNumbers: []string{fmt.Sprintf("1Z%03d", c.calls)},
		LabelPaths:      []string{fmt.Sprintf("/labels/%d.pdf", c.calls)},
		TotalCharges:    c.charge,
		Currency:        "USD",
	}, nil
}

// memoryTarget records write-back flushes in memory.
type memoryTarget struct {
	records []string
}

func (m *memoryTarget) Record(ctx context.Context, jobID string, rowNumber int, trackingNumber, labelPath string, costCents int64) error {
	m.records = append(m.records, trackingNumber)
	return nil
}

// eventLog records which lifecycle events fired.
type eventLog struct {
	events []string
}

func (l *eventLog) OnBatchStarted(ctx context.Context, job *model.Job) { l.events = append(l.events, "batchStarted") }
func (l *eventLog) OnRowStarted(ctx context.Context, job *model.Job, row *model.JobRow) {
	l.events = append(l.events, fmt.Sprintf("rowStarted:%d", row.RowNumber))
}
func (l *eventLog) OnRowCompleted(ctx context.Context, job *model.Job, row *model.JobRow) {
	l.events = append(l.events, fmt.Sprintf("rowCompleted:%d", row.RowNumber))
}
func (l *eventLog) OnRowFailed(ctx context.Context, job *model.Job, row *model.JobRow, terr port.TranslatedError) {
	l.events = append(l.events, fmt.Sprintf("rowFailed:%d:%s", row.RowNumber, terr.Code))
}
func (l *eventLog) OnBatchCompleted(ctx context.Context, job *model.Job, result *model.BatchResult) {
	l.events = append(l.events, "batchCompleted")
}
func (l *eventLog) OnBatchFailed(ctx context.Context, job *model.Job, result *model.BatchResult, terr port.TranslatedError) {
	l.events = append(l.events, "batchFailed:"+terr.Code)
}

type fixture struct {
	exec     *executor.BatchExecutor
	jobRepo  *gormrepo.JobRepository
	source   *fakeSource
	carrier  *fakeCarrier
	modeMan  *mode.SessionModeManager
	log      *eventLog
	retrier  *writeback.RetryingWriteBack
	target   *memoryTarget
}

func newFixture(t *testing.T, rowCount int) *fixture {
	db := setupDB(t)

	f := &fixture{
		jobRepo: gormrepo.NewJobRepository(db),
		source:  newFakeSource(rowCount),
		carrier: &fakeCarrier{charge: "5.00"},
		modeMan: mode.NewSessionModeManager(model.ModeAuto),
		log:     &eventLog{},
		target:  &memoryTarget{},
	}
	f.retrier = writeback.NewRetryingWriteBack(f.target, 2, time.Millisecond)

	emitter := events.NewEmitter()
	emitter.AddObserver(f.log)

	f.exec = executor.NewBatchExecutor(
		f.jobRepo,
		gormrepo.NewAuditRepository(db),
		&fakeResolver{source: f.source},
		echoRenderer{},
		f.carrier,
		translate.NewDefaultErrorTranslator(),
		emitter,
		f.modeMan,
		f.retrier,
		nil,
	)
	return f
}

func TestExecuteHappyPath(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	job, err := f.exec.Prepare(ctx, "march-orders", "ship march orders", "fake.csv")
	assert.NoError(t, err)
	assert.Equal(t, 3, job.TotalRows)

	result, err := f.exec.Execute(ctx, job.ID, "{}", model.ShipperInfo{}, "fake.csv")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, result.Status)
	assert.Equal(t, 3, result.SuccessfulRows)
	assert.Equal(t, 0, result.FailedRows)
	assert.Equal(t, int64(1500), result.TotalCostCents)
	assert.Len(t, result.TrackingNumbers, 3)

	// Every row was written back to the source immediately.
	assert.Len(t, f.source.writeBacks, 3)
	assert.False(t, f.modeMan.IsLocked())

	assert.Equal(t, []string{
		"batchStarted",
		"rowStarted:1", "rowCompleted:1",
		"rowStarted:2", "rowCompleted:2",
		"rowStarted:3", "rowCompleted:3",
		"batchCompleted",
	}, f.log.events)
}

func TestExecuteFailsFastOnRowError(t *testing.T) {
	f := newFixture(t, 3)
	f.carrier.failOnCall = 2
	f.carrier.failErr = errors.New("destination address not found")
	ctx := context.Background()

	job, err := f.exec.Prepare(ctx, "march-orders", "ship march orders", "fake.csv")
	assert.NoError(t, err)

	result, err := f.exec.Execute(ctx, job.ID, "{}", model.ShipperInfo{}, "fake.csv")
	assert.Error(t, err)
	assert.Equal(t, model.JobStatusFailed, result.Status)
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Equal(t, 1, result.FailedRows)
	assert.Equal(t, "E-3003", result.ErrorCode)

	// The third row is never attempted.
	assert.Equal(t, 2, f.carrier.calls)

	// Completed work survives the failure.
	rows, err := f.jobRepo.GetRows(ctx, job.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.RowStatusCompleted, rows[0].Status)
	assert.Equal(t, model.RowStatusFailed, rows[1].Status)
	assert.Equal(t, "E-3003", rows[1].ErrorCode)
	assert.Equal(t, model.RowStatusPending, rows[2].Status)

	loaded, err := f.jobRepo.GetJob(ctx, job.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, loaded.Status)
	assert.Equal(t, "E-3003", loaded.ErrorCode)

	assert.False(t, f.modeMan.IsLocked())
	assert.Contains(t, f.log.events, "rowFailed:2:E-3003")
	assert.Contains(t, f.log.events, "batchFailed:E-3003")
}

func TestExecuteEmptyBatchCompletes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	job, err := f.exec.Prepare(ctx, "empty", "ship nothing", "fake.csv")
	assert.NoError(t, err)
	assert.Equal(t, 0, job.TotalRows)

	result, err := f.exec.Execute(ctx, job.ID, "{}", model.ShipperInfo{}, "fake.csv")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, result.Status)
	assert.Zero(t, result.TotalRows)
	assert.Zero(t, f.carrier.calls)
}

func TestExecuteResumesOnlyPendingRows(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	job, err := f.exec.Prepare(ctx, "resume-me", "ship it", "fake.csv")
	assert.NoError(t, err)

	// Row 1 already completed in an earlier, interrupted run.
	rows, err := f.jobRepo.GetRows(ctx, job.ID)
	assert.NoError(t, err)
	assert.NoError(t, f.jobRepo.StartRow(ctx, rows[0].ID))
	assert.NoError(t, f.jobRepo.CompleteRow(ctx, rows[0].ID, "1ZOLD", "", 500))

	result, err := f.exec.Execute(ctx, job.ID, "{}", model.ShipperInfo{}, "fake.csv")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, result.Status)
	assert.Equal(t, 3, result.SuccessfulRows)

	// Only the two still-pending rows hit the carrier.
	assert.Equal(t, 2, f.carrier.calls)
	// The earlier result is never overwritten.
	assert.Equal(t, "1ZOLD", result.TrackingNumbers[0])
}

func TestExecutePausesOnCancellation(t *testing.T) {
	f := newFixture(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancellation arrives right after the first row's result is persisted.
	f.source.onWriteBack = func(rowNumber int) {
		if rowNumber == 1 {
			cancel()
		}
	}

	job, err := f.exec.Prepare(ctx, "interrupted", "ship it", "fake.csv")
	assert.NoError(t, err)

	result, err := f.exec.Execute(ctx, job.ID, "{}", model.ShipperInfo{}, "fake.csv")
	assert.Error(t, err)
	assert.True(t, exception.IsTemporary(err))
	assert.Equal(t, model.JobStatusPaused, result.Status)
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Equal(t, 1, f.carrier.calls)

	// The pause is persisted despite the cancelled context.
	loaded, err := f.jobRepo.GetJob(context.Background(), job.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusPaused, loaded.Status)
	assert.False(t, f.modeMan.IsLocked())
}

func TestExecuteQueuesFailedWriteBackAndFlushes(t *testing.T) {
	f := newFixture(t, 2)
	f.source.wbErr = errors.New("file is locked")
	ctx := context.Background()

	job, err := f.exec.Prepare(ctx, "locked-source", "ship it", "fake.csv")
	assert.NoError(t, err)

	result, err := f.exec.Execute(ctx, job.ID, "{}", model.ShipperInfo{}, "fake.csv")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, result.Status)

	// Both results went to the durable target through the flush.
	assert.Len(t, f.target.records, 2)
	assert.Zero(t, f.retrier.Pending(job.ID))
}

func TestExecuteRejectsSecondConcurrentBatch(t *testing.T) {
	f := newFixture(t, 1)
	assert.NoError(t, f.modeMan.Lock("other-job"))
	defer f.modeMan.Unlock()

	_, err := f.exec.Execute(context.Background(), "some-job", "{}", model.ShipperInfo{}, "fake.csv")
	assert.Error(t, err)

	var locked *mode.ErrModeLocked
	assert.ErrorAs(t, err, &locked)
	assert.Equal(t, "other-job", locked.JobID)
}

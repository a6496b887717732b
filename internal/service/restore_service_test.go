package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/utils"
	"hiring-gateway/internal/warehouse"
)

// capturingWarehouse records the ordered rows handed to LoadRows
type capturingWarehouse struct {
	*warehouse.Memory
	loaded [][]model.OrderedRecord
}

func (w *capturingWarehouse) LoadRows(ctx context.Context, table string, rows []model.OrderedRecord) error {
	w.loaded = append(w.loaded, rows)
	return w.Memory.LoadRows(ctx, table, rows)
}

func TestRestoreSelectsLatestRegardlessOfListingOrder(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)

	f.putBackup(t, "Backup/jobs_backup_20240302_101500.avro", jobColumns, []model.Record{job(2, "newer")})
	f.putBackup(t, "Backup/jobs_backup_20240301_235959.avro", jobColumns, []model.Record{job(1, "older")})
	f.putBackup(t, "Backup/jobs_backup_latest.avro", jobColumns, []model.Record{job(3, "not a backup name")})
	f.putBackup(t, "Backup/archive/jobs_backup_20250101_000000.avro", jobColumns, []model.Record{job(4, "nested")})

	summary, err := f.restores.Restore(context.Background(), schema.TableJobs)
	require.NoError(t, err)
	assert.Equal(t, "jobs_backup_20240302_101500.avro", summary.Artifact)
	assert.Equal(t, "Backup/jobs_backup_20240302_101500.avro", summary.Path)
	assert.Equal(t, []model.Record{job(2, "newer")}, f.wh.Rows(schema.TableJobs))
}

func TestRestoreReordersFieldsByName(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)

	// the artifact stores job before id
	reversed := []model.LiveColumn{{Name: "job", DataType: "STRING"}, {Name: "id", DataType: "INT64"}}
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", reversed, []model.Record{job(1, "Analyst"), job(2, "Manager")})

	wh := &capturingWarehouse{Memory: f.wh}
	summary, err := f.restoreService(RestoreOptions{}, wh).Restore(context.Background(), schema.TableJobs)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "job"}, summary.ColumnOrder)
	require.Len(t, wh.loaded, 1)
	assert.Equal(t, model.OrderedRecord{
		{Name: "id", Value: model.Int(1)},
		{Name: "job", Value: model.String("Analyst")},
	}, wh.loaded[0][0])
	assert.ElementsMatch(t, []model.Record{job(1, "Analyst"), job(2, "Manager")}, f.wh.Rows(schema.TableJobs))
}

func TestRestoreIntersectsDecodedAndLiveColumns(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)

	wider := append([]model.LiveColumn{{Name: "retired", DataType: "BOOL"}}, jobColumns...)
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", wider, []model.Record{
		{"id": model.Int(1), "job": model.String("Analyst"), "retired": model.Bool(true)},
		{"id": model.Int(2)},
	})

	wh := &capturingWarehouse{Memory: f.wh}
	_, err := f.restoreService(RestoreOptions{}, wh).Restore(context.Background(), schema.TableJobs)
	require.NoError(t, err)

	require.Len(t, wh.loaded[0], 2)
	assert.Equal(t, []string{"id", "job"}, wh.loaded[0][0].Names())
	// missing fields decode as null and stay in place
	assert.Equal(t, []string{"id", "job"}, wh.loaded[0][1].Names())
}

func TestRestoreLegacyDescendingOrder(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", jobColumns, []model.Record{job(1, "Analyst")})

	wh := &capturingWarehouse{Memory: f.wh}
	summary, err := f.restoreService(RestoreOptions{ColumnOrdering: warehouse.OrdinalDescending}, wh).Restore(context.Background(), schema.TableJobs)
	require.NoError(t, err)
	assert.Equal(t, []string{"job", "id"}, summary.ColumnOrder)
	assert.Equal(t, []string{"job", "id"}, wh.loaded[0][0].Names())
}

func TestRestoreFallsBackToRebuildOnStreamingBuffer(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, []model.Record{job(7, "Buffered")})
	f.wh.SetBuffered(schema.TableJobs)
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", jobColumns, []model.Record{job(1, "Analyst")})

	summary, err := f.restores.Restore(context.Background(), schema.TableJobs)
	require.NoError(t, err)
	assert.True(t, summary.Rebuilt)
	assert.Equal(t, 1, summary.RowsLoaded)

	assert.Equal(t, []string{
		"ColumnOrder", "DeleteAllRows", "ColumnTypes", "DropTable", "CreateTableFromColumns", "LoadRows",
	}, f.wh.Calls())
	assert.Equal(t, jobColumns, f.wh.Columns(schema.TableJobs))
	assert.Equal(t, []model.Record{job(1, "Analyst")}, f.wh.Rows(schema.TableJobs))
}

func TestRestoreClearFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, []model.Record{job(7, "Kept")})
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", jobColumns, []model.Record{job(1, "Analyst")})
	f.wh.FailNext("DeleteAllRows", errors.New("access denied"))

	_, err := f.restores.Restore(context.Background(), schema.TableJobs)
	appErr := requireCode(t, err, utils.ErrCodeClearFailed)
	assert.Contains(t, appErr.Details, "access denied")

	calls := f.wh.Calls()
	assert.False(t, contains(calls, "DropTable"))
	assert.False(t, contains(calls, "LoadRows"))
	assert.Equal(t, []model.Record{job(7, "Kept")}, f.wh.Rows(schema.TableJobs))
}

func TestRestoreRebuildFailure(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)
	f.wh.SetBuffered(schema.TableJobs)
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", jobColumns, []model.Record{job(1, "Analyst")})
	f.wh.FailNext("DropTable", errors.New("table is locked"))

	_, err := f.restores.Restore(context.Background(), schema.TableJobs)
	appErr := requireCode(t, err, utils.ErrCodeRebuildFailed)
	assert.Equal(t, "Error rebuilding table 'jobs' (drop)", appErr.Message)
	assert.Equal(t, "table is locked", appErr.Details)
	assert.False(t, contains(f.wh.Calls(), "LoadRows"))
}

func TestRestoreReloadFailure(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", jobColumns, []model.Record{job(1, "Analyst")})
	f.wh.FailNext("LoadRows", errors.New("quota exceeded"))

	_, err := f.restores.Restore(context.Background(), schema.TableJobs)
	requireCode(t, err, utils.ErrCodeReloadFailed)
}

func TestRestoreNoBackupFound(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)
	f.putBackup(t, "Backup/departments_backup_20240101_000000.avro", jobColumns, nil)

	_, err := f.restores.Restore(context.Background(), schema.TableJobs)
	requireCode(t, err, utils.ErrCodeNoBackupFound)
	assert.Equal(t, 404, utils.GetErrorStatus(err))
	assert.Empty(t, f.wh.Calls())
}

func TestRestoreCorruptBackup(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)
	f.store.Put("Backup/jobs_backup_20240101_000000.avro", []byte("definitely not avro"))

	_, err := f.restores.Restore(context.Background(), schema.TableJobs)
	appErr := requireCode(t, err, utils.ErrCodeCorruptBackup)
	assert.NotNil(t, errors.Unwrap(appErr))
	assert.Empty(t, f.wh.Calls())
}

func TestRestoreUnknownSchema(t *testing.T) {
	f := newFixture(t)
	_, err := f.restores.Restore(context.Background(), "employees")
	requireCode(t, err, utils.ErrCodeUnknownSchema)
}

func TestRestoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, []model.Record{job(9, "Stale")})
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", jobColumns, []model.Record{job(1, "Analyst"), job(2, "Manager")})

	_, err := f.restores.Restore(ctx, schema.TableJobs)
	require.NoError(t, err)
	first := f.wh.Rows(schema.TableJobs)

	_, err = f.restores.Restore(ctx, schema.TableJobs)
	require.NoError(t, err)
	assert.Equal(t, first, f.wh.Rows(schema.TableJobs))
	assert.ElementsMatch(t, []model.Record{job(1, "Analyst"), job(2, "Manager")}, first)
}

func TestRestoreSettleStrategies(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", jobColumns, []model.Record{job(1, "Analyst")})

	t.Run("sleep", func(t *testing.T) {
		svc := f.restoreService(RestoreOptions{SettleStrategy: SettleSleep, SettleDelay: 3 * time.Second}, nil).(*restoreService)
		var slept time.Duration
		svc.sleep = func(_ context.Context, d time.Duration) error {
			slept = d
			return nil
		}

		_, err := svc.Restore(context.Background(), schema.TableJobs)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, slept)
	})

	t.Run("poll", func(t *testing.T) {
		svc := f.restoreService(RestoreOptions{SettleStrategy: SettlePoll, SettlePollInterval: time.Millisecond}, nil)
		before := len(f.wh.Calls())

		_, err := svc.Restore(context.Background(), schema.TableJobs)
		require.NoError(t, err)
		calls := f.wh.Calls()[before:]
		assert.Equal(t, []string{"ColumnOrder", "DeleteAllRows", "StreamingBufferEmpty", "LoadRows"}, calls)
	})

	t.Run("poll failure is not fatal", func(t *testing.T) {
		svc := f.restoreService(RestoreOptions{SettleStrategy: SettlePoll, SettlePollInterval: time.Millisecond}, nil)
		f.wh.FailNext("StreamingBufferEmpty", errors.New("metadata unavailable"))

		summary, err := svc.Restore(context.Background(), schema.TableJobs)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.RowsLoaded)
	})
}

func TestRestoreTimesOutWaitingForLock(t *testing.T) {
	f := newFixture(t)
	release, err := f.locks.Acquire(context.Background(), schema.TableJobs)
	require.NoError(t, err)
	defer release()

	svc := f.restoreService(RestoreOptions{Timeout: 20 * time.Millisecond}, nil)
	_, err = svc.Restore(context.Background(), schema.TableJobs)
	requireCode(t, err, utils.ErrCodeTimeout)
	assert.Equal(t, 504, utils.GetErrorStatus(err))
}

func TestRestoreReportsCancelledCallerWhileWaitingForLock(t *testing.T) {
	f := newFixture(t)
	release, err := f.locks.Acquire(context.Background(), schema.TableJobs)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.restores.Restore(ctx, schema.TableJobs)
	appErr := requireCode(t, err, utils.ErrCodeRequestCanceled)
	assert.Equal(t, utils.StatusClientClosedRequest, utils.GetErrorStatus(appErr))
}

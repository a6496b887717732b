package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/utils"
	"hiring-gateway/internal/warehouse"
)

func TestInsertUnknownSchemaNeverReachesWarehouse(t *testing.T) {
	f := newFixture(t)

	_, err := f.ingest.Insert(context.Background(), "employees", []model.Record{{"id": model.Int(1)}})
	requireCode(t, err, utils.ErrCodeUnknownSchema)
	assert.Empty(t, f.wh.Calls())
}

func TestInsertBatchTooLarge(t *testing.T) {
	f := newFixture(t)
	batch := make([]model.Record, DefaultMaxRecordsPerInsert+1)
	for i := range batch {
		batch[i] = job(int64(i), "Analyst")
	}

	_, err := f.ingest.Insert(context.Background(), schema.TableJobs, batch)
	requireCode(t, err, utils.ErrCodeBatchTooLarge)
	assert.Empty(t, f.wh.Calls())
}

func TestInsertAcceptsMaximumBatch(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, schema.TableJobs)
	batch := make([]model.Record, DefaultMaxRecordsPerInsert)
	for i := range batch {
		batch[i] = job(int64(i), "Analyst")
	}

	result, err := f.ingest.Insert(context.Background(), schema.TableJobs, batch)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRecordsPerInsert, result.Inserted)
}

func TestInsertDuplicatesFailWholeBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, []model.Record{job(2, "Manager"), job(5, "Clerk")})

	_, err := f.ingest.Insert(ctx, schema.TableJobs, []model.Record{job(1, "a"), job(2, "b"), job(3, "c"), job(5, "d")})
	appErr := requireCode(t, err, utils.ErrCodeDuplicateIDs)
	assert.Equal(t, 400, utils.GetErrorStatus(err))
	assert.Equal(t, map[string][]int64{"ids": {2, 5}}, appErr.Data)

	assert.Len(t, f.wh.Rows(schema.TableJobs), 2)
	entries := f.log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, job(2, "b"), entries[0].record)
	assert.Equal(t, job(5, "d"), entries[1].record)
}

func TestInsertMissingTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.ingest.Insert(context.Background(), schema.TableJobs, []model.Record{job(1, "Analyst")})
	requireCode(t, err, utils.ErrCodeTableNotFound)
	assert.Equal(t, 404, utils.GetErrorStatus(err))
}

func TestInsertVerifyFailure(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, schema.TableJobs)
	f.wh.FailNext("TableExists", errors.New("permission denied"))

	_, err := f.ingest.Insert(context.Background(), schema.TableJobs, []model.Record{job(1, "Analyst")})
	appErr := requireCode(t, err, utils.ErrCodeTableVerifyFailed)
	assert.Contains(t, appErr.Details, "permission denied")
}

func TestInsertRejectedCarriesRowDiagnostics(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, schema.TableJobs)

	extra := job(2, "Manager")
	extra["salary"] = model.Int(10)
	_, err := f.ingest.Insert(context.Background(), schema.TableJobs, []model.Record{job(1, "Analyst"), extra})

	appErr := requireCode(t, err, utils.ErrCodeInsertRejected)
	assert.Equal(t, 500, utils.GetErrorStatus(err))
	rowErrs, ok := appErr.Data.(warehouse.RowErrors)
	require.True(t, ok)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 1, rowErrs[0].Index)
}

func TestConcurrentInsertsOfSameIDAreSerialised(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createTable(t, schema.TableJobs)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ingest.Insert(ctx, schema.TableJobs, []model.Record{job(42, "Analyst")})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, utils.IsErrorType(err, utils.ErrCodeDuplicateIDs))
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.wh.Rows(schema.TableJobs), 1)
}

func TestInsertCancelledWhileWaitingForLock(t *testing.T) {
	f := newFixture(t)
	f.createTable(t, schema.TableHiredEmployees)
	release, err := f.locks.Acquire(context.Background(), schema.TableHiredEmployees)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.ingest.Insert(ctx, schema.TableHiredEmployees, []model.Record{hire(1, "Ada", "2021-01-10 09:00:00", 1, 1)})
	requireCode(t, err, utils.ErrCodeRequestCanceled)
	assert.Empty(t, f.wh.Rows(schema.TableHiredEmployees))
}

func TestInsertBackupRestoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createTable(t, schema.TableHiredEmployees)

	original := []model.Record{
		hire(1, "Ada", "2021-01-10 09:00:00", 1, 1),
		hire(2, "Bob", "2021-05-11 10:30:00", 2, 1),
		hire(3, "Cy", "2021-09-12 11:45:00", 1, 2),
	}
	result, err := f.ingest.Insert(ctx, schema.TableHiredEmployees, original)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)

	_, err = f.ingest.Insert(ctx, schema.TableHiredEmployees, []model.Record{hire(2, "Bob", "2021-05-11 10:30:00", 2, 1)})
	appErr := requireCode(t, err, utils.ErrCodeDuplicateIDs)
	assert.Equal(t, map[string][]int64{"ids": {2}}, appErr.Data)

	artifact, err := f.backups.Backup(ctx, schema.TableHiredEmployees)
	require.NoError(t, err)
	assert.Regexp(t, `^Backup/hired_employees_backup_\d{8}_\d{6}\.avro$`, artifact.Path)

	// the streamed rows are still buffered, so restore takes the rebuild path
	summary, err := f.restores.Restore(ctx, schema.TableHiredEmployees)
	require.NoError(t, err)
	assert.True(t, summary.Rebuilt)
	assert.Equal(t, 3, summary.RowsLoaded)
	assert.Equal(t, artifact.Name, summary.Artifact)
	assert.Equal(t, artifact.Path, summary.Path)
	assert.Equal(t, []string{"id", "name", "datetime", "department_id", "job_id"}, summary.ColumnOrder)

	assert.ElementsMatch(t, original, f.wh.Rows(schema.TableHiredEmployees))
}

func TestLoadTableCreatesMissingTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Put("departments.csv", []byte("1,Product Management\n2,Sales\n"))

	result, err := f.ingest.LoadTable(ctx, schema.TableDepartments)
	require.NoError(t, err)
	assert.Equal(t, "departments.csv", result.File)
	assert.Contains(t, result.Message, "mem://hiring/departments.csv")

	assert.Equal(t, []string{"TableExists", "CreateTable", "LoadCSV"}, f.wh.Calls())
	assert.Len(t, f.wh.Rows(schema.TableDepartments), 2)
}

func TestLoadTableErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ingest.LoadTable(ctx, "employees")
	requireCode(t, err, utils.ErrCodeUnknownSchema)

	_, err = f.ingest.LoadTable(ctx, schema.TableJobs)
	appErr := requireCode(t, err, utils.ErrCodeLoadFailed)
	assert.Contains(t, appErr.Details, "object not found")
}

func TestLoadAllContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Put("jobs.csv", []byte("1,Analyst\n"))
	f.store.Put("departments.csv", []byte("x,Sales\n"))
	f.store.Put("employees.csv", []byte("1,Ada\n"))
	f.store.Put("notes.txt", []byte("ignored"))
	f.store.Put("Backup/jobs.csv", []byte("ignored"))

	results, err := f.ingest.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "departments.csv", results[0].File)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, "employees", results[1].Table)
	assert.Contains(t, results[1].Error, "No schema")
	assert.Equal(t, "jobs.csv", results[2].File)
	assert.Empty(t, results[2].Error)
	assert.NotEmpty(t, results[2].Message)

	assert.Len(t, f.wh.Rows(schema.TableJobs), 1)
}

func TestLoadAllNoCSVFiles(t *testing.T) {
	f := newFixture(t)
	f.store.Put("readme.md", []byte("#"))

	_, err := f.ingest.LoadAll(context.Background())
	requireCode(t, err, utils.ErrCodeNoCSVFiles)
	assert.Equal(t, 404, utils.GetErrorStatus(err))
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-gateway/internal/backup"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/utils"
)

func fixedClock(f *fixture, at time.Time) {
	f.backups.(*backupService).now = func() time.Time { return at }
}

func TestBackupNamesArtifactInUTC(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, []model.Record{job(1, "Analyst")})
	fixedClock(f, time.Date(2024, 3, 9, 22, 15, 7, 0, time.FixedZone("EST", -5*3600)))

	artifact, err := f.backups.Backup(context.Background(), schema.TableJobs)
	require.NoError(t, err)
	assert.Equal(t, "jobs_backup_20240310_031507.avro", artifact.Name)
	assert.Equal(t, "Backup/jobs_backup_20240310_031507.avro", artifact.Path)
	assert.Equal(t, "mem://hiring/Backup/jobs_backup_20240310_031507.avro", artifact.URI)

	rc, err := f.store.Open(context.Background(), artifact.Path)
	require.NoError(t, err)
	defer rc.Close()
	records, err := backup.NewAvroDecoder().Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, []model.Record{job(1, "Analyst")}, records)
}

func TestBackupMissingTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.backups.Backup(context.Background(), schema.TableJobs)
	requireCode(t, err, utils.ErrCodeTableNotFound)
	assert.False(t, contains(f.wh.Calls(), "ExportTable"))
}

func TestBackupUnknownSchema(t *testing.T) {
	f := newFixture(t)

	_, err := f.backups.Backup(context.Background(), "salaries")
	requireCode(t, err, utils.ErrCodeUnknownSchema)
	assert.Empty(t, f.wh.Calls())
}

func TestBackupExportFailure(t *testing.T) {
	f := newFixture(t)
	f.wh.Seed(schema.TableJobs, jobColumns, nil)
	f.wh.FailNext("ExportTable", errors.New("bucket is read only"))

	_, err := f.backups.Backup(context.Background(), schema.TableJobs)
	appErr := requireCode(t, err, utils.ErrCodeExportFailed)
	assert.Contains(t, appErr.Details, "read only")
}

func TestListBackupsNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.putBackup(t, "Backup/jobs_backup_20240101_000000.avro", jobColumns, nil)
	f.putBackup(t, "Backup/jobs_backup_20240301_120000.avro", jobColumns, nil)
	f.putBackup(t, "Backup/jobs_backup_20240201_000000.avro", jobColumns, nil)
	f.putBackup(t, "Backup/jobs_backup_20240401.avro", jobColumns, nil)
	f.putBackup(t, "Backup/old/jobs_backup_20250101_000000.avro", jobColumns, nil)
	f.putBackup(t, "Backup/departments_backup_20250101_000000.avro", jobColumns, nil)

	artifacts, err := f.backups.ListBackups(context.Background(), schema.TableJobs)
	require.NoError(t, err)

	names := make([]string, len(artifacts))
	for i, a := range artifacts {
		names[i] = a.Name
	}
	assert.Equal(t, []string{
		"jobs_backup_20240301_120000.avro",
		"jobs_backup_20240201_000000.avro",
		"jobs_backup_20240101_000000.avro",
	}, names)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), artifacts[0].CreatedAt)
}

func TestListBackupsEmpty(t *testing.T) {
	f := newFixture(t)

	artifacts, err := f.backups.ListBackups(context.Background(), schema.TableDepartments)
	require.NoError(t, err)
	assert.NotNil(t, artifacts)
	assert.Empty(t, artifacts)
}

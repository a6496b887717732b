package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hiring-gateway/internal/backup"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/storage"
	"hiring-gateway/internal/utils"
	"hiring-gateway/internal/warehouse"
)

type logEntry struct {
	table  string
	reason string
	record model.Record
}

type recordingLog struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLog) Record(table, reason string, record model.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{table: table, reason: reason, record: record})
}

func (l *recordingLog) Entries() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.entries...)
}

type fixture struct {
	store    *storage.Memory
	wh       *warehouse.Memory
	log      *recordingLog
	locks    *TableLocks
	registry schema.Registry
	ingest   IngestService
	backups  BackupService
	restores RestoreService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemory("hiring")
	f := &fixture{
		store:    store,
		wh:       warehouse.NewMemory(store),
		log:      &recordingLog{},
		locks:    NewTableLocks(),
		registry: schema.Default(),
	}
	f.ingest = NewIngestService(IngestDeps{
		Registry:   f.registry,
		Warehouse:  f.wh,
		Store:      f.store,
		InvalidLog: f.log,
		Locks:      f.locks,
	}, IngestOptions{})
	f.backups = NewBackupService(BackupDeps{
		Registry:  f.registry,
		Warehouse: f.wh,
		Store:     f.store,
		Locks:     f.locks,
	}, BackupOptions{})
	f.restores = f.restoreService(RestoreOptions{SettleStrategy: SettleSleep}, nil)
	return f
}

// restoreService builds a coordinator over wh, or over the fixture's warehouse when wh is nil
func (f *fixture) restoreService(opts RestoreOptions, wh warehouse.Warehouse) RestoreService {
	if wh == nil {
		wh = f.wh
	}
	svc := NewRestoreService(RestoreDeps{
		Registry:  f.registry,
		Warehouse: wh,
		Store:     f.store,
		Locks:     f.locks,
	}, opts).(*restoreService)
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	return svc
}

func (f *fixture) createTable(t *testing.T, table string) {
	t.Helper()
	s, ok := f.registry.Lookup(table)
	require.True(t, ok)
	require.NoError(t, f.wh.CreateTable(context.Background(), s))
}

// putBackup writes an Avro artifact with the given columns and rows
func (f *fixture) putBackup(t *testing.T, name string, columns []model.LiveColumn, rows []model.Record) {
	t.Helper()
	var buf bytes.Buffer
	enc := &backup.Encoder{Table: "restore"}
	require.NoError(t, enc.Encode(&buf, columns, rows))
	f.store.Put(name, buf.Bytes())
}

func hire(id int64, name, at string, department, job int64) model.Record {
	return model.Record{
		"id":            model.Int(id),
		"name":          model.String(name),
		"datetime":      model.String(at),
		"department_id": model.Int(department),
		"job_id":        model.Int(job),
	}
}

func job(id int64, title string) model.Record {
	return model.Record{"id": model.Int(id), "job": model.String(title)}
}

var jobColumns = []model.LiveColumn{{Name: "id", DataType: "INT64"}, {Name: "job", DataType: "STRING"}}

func requireCode(t *testing.T, err error, code string) *utils.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := utils.AsAppError(err)
	require.Equal(t, code, appErr.Code, appErr.Error())
	return appErr
}

func contains(calls []string, method string) bool {
	for _, c := range calls {
		if c == method {
			return true
		}
	}
	return false
}

// Package app assembles the gateway's backends and services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"hiring-gateway/internal/audit"
	"hiring-gateway/internal/chart"
	"hiring-gateway/internal/config"
	"hiring-gateway/internal/repository"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/service"
	"hiring-gateway/internal/storage"
	"hiring-gateway/internal/warehouse"
)

// App holds the wired services and the resources they own
type App struct {
	DB        *gorm.DB
	Warehouse warehouse.Warehouse
	Store     storage.ObjectStore
	Recorder  *service.OperationRecorder

	Ingest  service.IngestService
	Backups service.BackupService
	Restore service.RestoreService
	Reports service.ReportService

	closers []func() error
}

// New connects every backend named by cfg and builds the services over them.
// observer may be nil.
func New(ctx context.Context, cfg *config.Config, observer service.OperationObserver) (*App, error) {
	a := &App{}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err := repository.Migrate(db); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to migrate metadata database: %w", err)
	}

	if a.Store, err = newStore(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	if a.Warehouse, err = newWarehouse(ctx, cfg, a.Store); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.Warehouse.Close)

	invalidLog, err := audit.OpenFile(cfg.Ingest.InvalidLogFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, invalidLog.Close)

	registry := schema.Default()
	locks := service.NewTableLocks()
	a.Recorder = service.NewOperationRecorder(repository.NewOperationRepository(db), observer)

	a.Ingest = service.NewIngestService(service.IngestDeps{
		Registry:   registry,
		Warehouse:  a.Warehouse,
		Store:      a.Store,
		InvalidLog: invalidLog,
		Locks:      locks,
		Recorder:   a.Recorder,
	}, service.IngestOptions{
		MaxRecordsPerInsert: cfg.Ingest.MaxRecordsPerInsert,
		CSVPrefix:           cfg.Storage.CSVPrefix,
		SkipLeadingRows:     cfg.Ingest.CSVSkipLeadingRows,
		CallTimeout:         cfg.Warehouse.CallTimeout,
	})

	a.Backups = service.NewBackupService(service.BackupDeps{
		Registry:  registry,
		Warehouse: a.Warehouse,
		Store:     a.Store,
		Locks:     locks,
		Recorder:  a.Recorder,
	}, service.BackupOptions{
		BackupPrefix: cfg.Storage.BackupPrefix,
		CallTimeout:  cfg.Warehouse.CallTimeout,
	})

	ordering := warehouse.OrdinalAscending
	if cfg.Restore.LegacyDescendingColumnOrder {
		ordering = warehouse.OrdinalDescending
	}
	a.Restore = service.NewRestoreService(service.RestoreDeps{
		Registry:  registry,
		Warehouse: a.Warehouse,
		Store:     a.Store,
		Locks:     locks,
		Recorder:  a.Recorder,
	}, service.RestoreOptions{
		BackupPrefix:       cfg.Storage.BackupPrefix,
		Timeout:            cfg.Restore.Timeout,
		CallTimeout:        cfg.Warehouse.CallTimeout,
		SettleStrategy:     cfg.Restore.SettleStrategy,
		SettleDelay:        cfg.Restore.SettleDelay,
		SettlePollInterval: cfg.Restore.SettlePollInterval,
		SettleTimeout:      cfg.Restore.SettleTimeout,
		ColumnOrdering:     ordering,
	})

	a.Reports = service.NewReportService(
		a.Warehouse,
		chart.NewPNGRenderer(cfg.Report.ChartWidth, cfg.Report.ChartHeight),
		cfg.Warehouse.CallTimeout,
	)

	log.Info().
		Str("warehouse", cfg.Warehouse.Provider).
		Str("storage", cfg.Storage.Provider).
		Str("metadata", cfg.Metadata.Driver).
		Msg("Gateway services initialized")
	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		return storage.NewGCS(ctx, &storage.GCSConfig{
			Bucket:          cfg.Storage.Bucket,
			CredentialsFile: cfg.GCP.CredentialsFile,
		})
	case "minio":
		return storage.NewMinIO(&storage.MinIOConfig{
			Endpoint:  cfg.Storage.MinIO.Endpoint,
			AccessKey: cfg.Storage.MinIO.AccessKey,
			SecretKey: cfg.Storage.MinIO.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.MinIO.Region,
			Secure:    cfg.Storage.MinIO.Secure,
		})
	case "s3":
		return storage.NewS3(ctx, &storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Bucket:       cfg.Storage.Bucket,
			AccessKey:    cfg.Storage.S3.AccessKey,
			SecretKey:    cfg.Storage.S3.SecretKey,
			SessionToken: cfg.Storage.S3.SessionToken,
			EndpointURL:  cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
	case "memory":
		bucket := cfg.Storage.Bucket
		if bucket == "" {
			bucket = "local"
		}
		return storage.NewMemory(bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func newWarehouse(ctx context.Context, cfg *config.Config, store storage.ObjectStore) (warehouse.Warehouse, error) {
	switch cfg.Warehouse.Provider {
	case "bigquery":
		return warehouse.NewBigQuery(ctx, &warehouse.BigQueryConfig{
			ProjectID:       cfg.GCP.ProjectID,
			DatasetID:       cfg.GCP.DatasetID,
			Location:        cfg.GCP.Location,
			CredentialsFile: cfg.GCP.CredentialsFile,
		})
	case "memory":
		return warehouse.NewMemory(store), nil
	default:
		return nil, fmt.Errorf("unknown warehouse provider %q", cfg.Warehouse.Provider)
	}
}

// Close releases every backend in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

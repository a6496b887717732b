package service

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hiring-gateway/internal/backup"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/storage"
	"hiring-gateway/internal/utils"
	"hiring-gateway/internal/warehouse"
)

// DefaultBackupPrefix is the bucket folder holding backup artifacts
const DefaultBackupPrefix = "Backup"

type BackupService interface {
	Backup(ctx context.Context, table string) (*model.BackupArtifact, error)
	ListBackups(ctx context.Context, table string) ([]model.BackupArtifact, error)
}

// BackupOptions tunes the backup service
type BackupOptions struct {
	BackupPrefix string
	CallTimeout  time.Duration
}

// BackupDeps are the collaborators of the backup service
type BackupDeps struct {
	Registry  schema.Registry
	Warehouse warehouse.Warehouse
	Store     storage.ObjectStore
	Locks     *TableLocks
	Recorder  *OperationRecorder
}

type backupService struct {
	registry  schema.Registry
	warehouse warehouse.Warehouse
	store     storage.ObjectStore
	locks     *TableLocks
	recorder  *OperationRecorder
	opts      BackupOptions
	now       func() time.Time
}

// NewBackupService creates a new instance of BackupService
func NewBackupService(deps BackupDeps, opts BackupOptions) BackupService {
	if opts.BackupPrefix == "" {
		opts.BackupPrefix = DefaultBackupPrefix
	}
	if deps.Locks == nil {
		deps.Locks = NewTableLocks()
	}
	return &backupService{
		registry:  deps.Registry,
		warehouse: deps.Warehouse,
		store:     deps.Store,
		locks:     deps.Locks,
		recorder:  deps.Recorder,
		opts:      opts,
		now:       time.Now,
	}
}

// Backup exports the table to {prefix}/{table}_backup_{UTC timestamp}.avro and
// waits for the export to finish
func (s *backupService) Backup(ctx context.Context, table string) (*model.BackupArtifact, error) {
	if _, ok := s.registry.Lookup(table); !ok {
		return nil, utils.NewUnknownSchemaError(table)
	}

	release, err := s.locks.Acquire(ctx, table)
	if err != nil {
		return nil, lockError(table, err)
	}
	defer release()

	op := s.recorder.Start(ctx, model.OperationBackup, table)
	artifact, err := s.export(ctx, table)
	if artifact != nil {
		op.Artifact = artifact.Path
	}
	s.recorder.Finish(ctx, op, err)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("table", table).Str("artifact", artifact.URI).Msg("Backup created")
	return artifact, nil
}

func (s *backupService) export(ctx context.Context, table string) (*model.BackupArtifact, error) {
	callCtx, cancel := callContext(ctx, s.opts.CallTimeout)
	defer cancel()

	exists, err := s.warehouse.TableExists(callCtx, table)
	if err != nil {
		return nil, utils.NewErrorBuilder(utils.ErrCodeTableVerifyFailed).
			WithMessagef("Error verifying table '%s'", table).
			WithCause(err).
			Build()
	}
	if !exists {
		return nil, utils.NewTableNotFoundError(table)
	}

	createdAt := s.now().UTC().Truncate(time.Second)
	name := backup.ArtifactName(table, createdAt)
	objectName := storage.Join(s.opts.BackupPrefix, name)
	artifact := &model.BackupArtifact{
		Table:     table,
		Name:      name,
		Path:      objectName,
		URI:       s.store.URI(objectName),
		CreatedAt: createdAt,
	}

	if err := s.warehouse.ExportTable(callCtx, table, artifact.URI); err != nil {
		if errors.Is(err, warehouse.ErrTableNotFound) {
			return nil, utils.NewTableNotFoundError(table)
		}
		return artifact, utils.NewErrorBuilder(utils.ErrCodeExportFailed).
			WithMessagef("Error exporting table '%s'", table).
			WithCause(err).
			Build()
	}
	return artifact, nil
}

// ListBackups returns the table's restore candidates, newest first
func (s *backupService) ListBackups(ctx context.Context, table string) ([]model.BackupArtifact, error) {
	if _, ok := s.registry.Lookup(table); !ok {
		return nil, utils.NewUnknownSchemaError(table)
	}
	return listArtifacts(ctx, s.store, s.opts.BackupPrefix, table)
}

func listArtifacts(ctx context.Context, store storage.ObjectStore, prefix, table string) ([]model.BackupArtifact, error) {
	objects, err := store.List(ctx, backup.ArtifactPrefix(prefix, table))
	if err != nil {
		return nil, utils.NewErrorBuilder(utils.ErrCodeBackendError).
			WithMessage("Failed to list backups").
			WithCause(err).
			Build()
	}

	dir := strings.Trim(prefix, "/")
	artifacts := make([]model.BackupArtifact, 0)
	for _, obj := range objects {
		if strings.Trim(path.Dir(obj.Name), "/.") != dir {
			continue
		}
		createdAt, ok := backup.ParseArtifactName(table, path.Base(obj.Name))
		if !ok {
			continue
		}
		artifacts = append(artifacts, model.BackupArtifact{
			Table:     table,
			Name:      path.Base(obj.Name),
			Path:      obj.Name,
			URI:       store.URI(obj.Name),
			CreatedAt: createdAt,
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name > artifacts[j].Name })
	return artifacts, nil
}

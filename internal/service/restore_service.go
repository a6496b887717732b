package service

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"hiring-gateway/internal/backup"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/storage"
	"hiring-gateway/internal/utils"
	"hiring-gateway/internal/warehouse"
)

// Settle strategies applied after a successful clear
const (
	SettlePoll  = "poll"
	SettleSleep = "sleep"
)

var errBufferNotEmpty = errors.New("streaming buffer not empty")

type RestoreService interface {
	Restore(ctx context.Context, table string) (*model.RestoreSummary, error)
}

// RestoreOptions tunes the restore coordinator
type RestoreOptions struct {
	BackupPrefix string
	// Timeout bounds the whole restore, lock wait included
	Timeout     time.Duration
	CallTimeout time.Duration

	SettleStrategy     string
	SettleDelay        time.Duration
	SettlePollInterval time.Duration
	SettleTimeout      time.Duration

	ColumnOrdering warehouse.ColumnOrdering
}

// RestoreDeps are the collaborators of the restore coordinator
type RestoreDeps struct {
	Registry  schema.Registry
	Warehouse warehouse.Warehouse
	Store     storage.ObjectStore
	Decoder   backup.Decoder
	Locks     *TableLocks
	Recorder  *OperationRecorder
}

type restoreService struct {
	registry  schema.Registry
	warehouse warehouse.Warehouse
	store     storage.ObjectStore
	decoder   backup.Decoder
	locks     *TableLocks
	recorder  *OperationRecorder
	opts      RestoreOptions
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRestoreService creates a new instance of RestoreService
func NewRestoreService(deps RestoreDeps, opts RestoreOptions) RestoreService {
	if opts.BackupPrefix == "" {
		opts.BackupPrefix = DefaultBackupPrefix
	}
	if opts.SettleStrategy == "" {
		opts.SettleStrategy = SettlePoll
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 5 * time.Second
	}
	if opts.SettlePollInterval <= 0 {
		opts.SettlePollInterval = time.Second
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = time.Minute
	}
	if deps.Decoder == nil {
		deps.Decoder = backup.NewAvroDecoder()
	}
	if deps.Locks == nil {
		deps.Locks = NewTableLocks()
	}

	return &restoreService{
		registry:  deps.Registry,
		warehouse: deps.Warehouse,
		store:     deps.Store,
		decoder:   deps.Decoder,
		locks:     deps.Locks,
		recorder:  deps.Recorder,
		opts:      opts,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restore reloads the table from its newest backup. The per-table lock is held
// from locate to reload and released on every exit path. Nothing is retried
// internally; callers retry the whole restore.
func (s *restoreService) Restore(ctx context.Context, table string) (*model.RestoreSummary, error) {
	if _, ok := s.registry.Lookup(table); !ok {
		return nil, utils.NewUnknownSchemaError(table)
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	release, err := s.locks.Acquire(ctx, table)
	if err != nil {
		return nil, lockError(table, err)
	}
	defer release()

	op := s.recorder.Start(ctx, model.OperationRestore, table)
	summary, err := s.restore(ctx, table, op)
	if summary != nil {
		op.Rows = int64(summary.RowsLoaded)
		op.Rebuilt = summary.Rebuilt
	}
	s.recorder.Finish(ctx, op, err)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("table", table).Str("artifact", op.Artifact).Msg("Restore failed")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("table", table).
		Str("artifact", summary.Artifact).
		Int("rows", summary.RowsLoaded).
		Bool("rebuilt", summary.Rebuilt).
		Msg("Table restored")
	return summary, nil
}

func (s *restoreService) restore(ctx context.Context, table string, op *model.Operation) (*model.RestoreSummary, error) {
	logger := zerolog.Ctx(ctx).With().Str("table", table).Logger()

	// Locate
	artifact, err := s.locate(ctx, table)
	if err != nil {
		return nil, err
	}
	op.Artifact = artifact.Name
	logger.Debug().Str("artifact", artifact.Name).Msg("Latest backup located")

	// Decode
	records, err := s.decode(ctx, artifact)
	if err != nil {
		return nil, err
	}

	// Resolve column order
	columns, err := s.columnOrder(ctx, table)
	if err != nil {
		return nil, err
	}
	rows := make([]model.OrderedRecord, len(records))
	for i, r := range records {
		rows[i] = model.Reorder(r, columns)
	}

	summary := &model.RestoreSummary{
		Table:       table,
		Artifact:    path.Base(artifact.Name),
		Path:        artifact.Name,
		ColumnOrder: columns,
	}

	// Clear, falling back to rebuild while rows sit in the streaming buffer
	clearErr := s.call(ctx, func(ctx context.Context) error {
		return s.warehouse.DeleteAllRows(ctx, table)
	})
	switch {
	case clearErr == nil:
		s.settle(ctx, table)
	case warehouse.IsStreamingBufferError(clearErr):
		logger.Warn().Err(clearErr).Msg("Clear blocked by streaming buffer, rebuilding table")
		if err := s.rebuild(ctx, table); err != nil {
			return nil, err
		}
		summary.Rebuilt = true
	default:
		return nil, utils.NewErrorBuilder(utils.ErrCodeClearFailed).
			WithMessagef("Error clearing table '%s'", table).
			WithCause(clearErr).
			Build()
	}

	// Reload
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.warehouse.LoadRows(ctx, table, rows)
	}); err != nil {
		return summary, utils.NewErrorBuilder(utils.ErrCodeReloadFailed).
			WithMessagef("Error reloading table '%s'", table).
			WithCause(err).
			Build()
	}

	summary.RowsLoaded = len(rows)
	return summary, nil
}

// call runs fn under the per-call deadline
func (s *restoreService) call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := callContext(ctx, s.opts.CallTimeout)
	defer cancel()
	return fn(callCtx)
}

func (s *restoreService) locate(ctx context.Context, table string) (storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		objects, err = s.store.List(ctx, backup.ArtifactPrefix(s.opts.BackupPrefix, table))
		return err
	})
	if err != nil {
		return storage.ObjectInfo{}, utils.NewErrorBuilder(utils.ErrCodeBackendError).
			WithMessage("Failed to list backups").
			WithCause(err).
			Build()
	}

	latest, _, ok := backup.Latest(s.opts.BackupPrefix, table, objects)
	if !ok {
		return storage.ObjectInfo{}, utils.NewErrorBuilder(utils.ErrCodeNoBackupFound).
			WithMessagef("No backup found for table '%s'", table).
			Build()
	}
	return latest, nil
}

func (s *restoreService) decode(ctx context.Context, artifact storage.ObjectInfo) ([]model.Record, error) {
	callCtx, cancel := callContext(ctx, s.opts.CallTimeout)
	defer cancel()

	rc, err := s.store.Open(callCtx, artifact.Name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, utils.NewErrorBuilder(utils.ErrCodeNoBackupFound).
				WithMessagef("Backup '%s' disappeared before it could be read", artifact.Name).
				WithCause(err).
				Build()
		}
		return nil, utils.NewErrorBuilder(utils.ErrCodeBackendError).
			WithMessagef("Failed to download backup '%s'", artifact.Name).
			WithCause(err).
			Build()
	}
	defer rc.Close()

	records, err := s.decoder.Decode(rc)
	if err != nil {
		return nil, utils.NewErrorBuilder(utils.ErrCodeCorruptBackup).
			WithMessagef("Backup '%s' could not be decoded", artifact.Name).
			WithCause(err).
			Build()
	}
	return records, nil
}

func (s *restoreService) columnOrder(ctx context.Context, table string) ([]string, error) {
	var columns []string
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		columns, err = s.warehouse.ColumnOrder(ctx, table, s.opts.ColumnOrdering)
		return err
	})
	if err != nil {
		if errors.Is(err, warehouse.ErrTableNotFound) {
			return nil, utils.NewTableNotFoundError(table)
		}
		return nil, utils.NewErrorBuilder(utils.ErrCodeBackendError).
			WithMessagef("Failed to read column order of table '%s'", table).
			WithCause(err).
			Build()
	}
	return columns, nil
}

// settle gives buffered writes time to land after a clear. It is best effort:
// running out of time is logged and the reload proceeds.
func (s *restoreService) settle(ctx context.Context, table string) {
	logger := zerolog.Ctx(ctx)

	if s.opts.SettleStrategy == SettleSleep {
		if err := s.sleep(ctx, s.opts.SettleDelay); err != nil {
			logger.Warn().Err(err).Str("table", table).Msg("Settle delay interrupted")
		}
		return
	}

	settleCtx, cancel := context.WithTimeout(ctx, s.opts.SettleTimeout)
	defer cancel()

	err := retry.Do(
		func() error {
			empty, err := s.warehouse.StreamingBufferEmpty(settleCtx, table)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !empty {
				return errBufferNotEmpty
			}
			return nil
		},
		retry.Context(settleCtx),
		retry.Attempts(0),
		retry.Delay(s.opts.SettlePollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		logger.Warn().Err(err).Str("table", table).Dur("timeout", s.opts.SettleTimeout).Msg("Streaming buffer did not settle, reloading anyway")
	}
}

// rebuild drops the table and recreates it from introspected name and type
// pairs. Table options beyond those are not carried over.
func (s *restoreService) rebuild(ctx context.Context, table string) error {
	var columns []model.LiveColumn
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		columns, err = s.warehouse.ColumnTypes(ctx, table)
		return err
	})
	if err != nil {
		return rebuildError(table, "introspect", err)
	}

	if err := s.call(ctx, func(ctx context.Context) error {
		return s.warehouse.DropTable(ctx, table)
	}); err != nil {
		return rebuildError(table, "drop", err)
	}

	if err := s.call(ctx, func(ctx context.Context) error {
		return s.warehouse.CreateTableFromColumns(ctx, table, columns)
	}); err != nil {
		return rebuildError(table, "recreate", err)
	}
	return nil
}

func rebuildError(table, step string, err error) error {
	return utils.NewErrorBuilder(utils.ErrCodeRebuildFailed).
		WithMessagef("Error rebuilding table '%s' (%s)", table, step).
		WithCause(err).
		Build()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hiring-gateway/internal/audit"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/storage"
	"hiring-gateway/internal/utils"
	"hiring-gateway/internal/warehouse"
)

// DefaultMaxRecordsPerInsert caps one insert request
const DefaultMaxRecordsPerInsert = 1000

type IngestService interface {
	Insert(ctx context.Context, table string, records []model.Record) (*InsertResult, error)
	LoadTable(ctx context.Context, table string) (*model.LoadResult, error)
	LoadAll(ctx context.Context) ([]model.LoadResult, error)
}

// IngestOptions tunes the ingest service
type IngestOptions struct {
	MaxRecordsPerInsert int
	// CSVPrefix is the bucket folder holding {table}.csv files
	CSVPrefix       string
	SkipLeadingRows int64
	// CallTimeout bounds each warehouse call. Zero means no extra deadline.
	CallTimeout time.Duration
}

// IngestDeps are the collaborators of the ingest service
type IngestDeps struct {
	Registry   schema.Registry
	Warehouse  warehouse.Warehouse
	Store      storage.ObjectStore
	InvalidLog audit.InvalidRecordLog
	Locks      *TableLocks
	Recorder   *OperationRecorder
}

type InsertResult struct {
	Table    string `json:"table"`
	Inserted int    `json:"inserted"`
}

type ingestService struct {
	registry   schema.Registry
	warehouse  warehouse.Warehouse
	store      storage.ObjectStore
	invalid    audit.InvalidRecordLog
	validator  *RecordValidator
	duplicates *DuplicateChecker
	locks      *TableLocks
	recorder   *OperationRecorder
	opts       IngestOptions
}

// NewIngestService creates a new instance of IngestService
func NewIngestService(deps IngestDeps, opts IngestOptions) IngestService {
	if opts.MaxRecordsPerInsert <= 0 {
		opts.MaxRecordsPerInsert = DefaultMaxRecordsPerInsert
	}
	if deps.InvalidLog == nil {
		deps.InvalidLog = audit.Discard{}
	}
	if deps.Locks == nil {
		deps.Locks = NewTableLocks()
	}

	return &ingestService{
		registry:   deps.Registry,
		warehouse:  deps.Warehouse,
		store:      deps.Store,
		invalid:    deps.InvalidLog,
		validator:  NewRecordValidator(deps.Registry, deps.InvalidLog),
		duplicates: NewDuplicateChecker(deps.Warehouse),
		locks:      deps.Locks,
		recorder:   deps.Recorder,
		opts:       opts,
	}
}

// callContext applies the per-call deadline
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// Insert validates, checks for duplicates and appends a batch. The first failing step wins.
func (s *ingestService) Insert(ctx context.Context, table string, records []model.Record) (*InsertResult, error) {
	if len(records) > s.opts.MaxRecordsPerInsert {
		return nil, utils.NewErrorBuilder(utils.ErrCodeBatchTooLarge).
			WithMessagef("Maximum %d records allowed per request", s.opts.MaxRecordsPerInsert).
			WithData(map[string]int{"max": s.opts.MaxRecordsPerInsert, "received": len(records)}).
			Build()
	}

	if err := s.validator.Validate(table, records); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, table)
	if err != nil {
		return nil, lockError(table, err)
	}
	defer release()

	if err := s.rejectDuplicates(ctx, table, records); err != nil {
		return nil, err
	}

	if err := s.verifyTable(ctx, table); err != nil {
		return nil, err
	}

	callCtx, cancel := callContext(ctx, s.opts.CallTimeout)
	defer cancel()

	if err := s.warehouse.InsertRows(callCtx, table, records); err != nil {
		var rowErrs warehouse.RowErrors
		if errors.As(err, &rowErrs) {
			return nil, utils.NewErrorBuilder(utils.ErrCodeInsertRejected).
				WithMessage("Error inserting data").
				WithDetails(rowErrs.Error()).
				WithData(rowErrs).
				WithCause(err).
				Build()
		}
		if errors.Is(err, warehouse.ErrTableNotFound) {
			return nil, utils.NewTableNotFoundError(table)
		}
		return nil, utils.NewErrorBuilder(utils.ErrCodeInsertRejected).
			WithMessage("Error inserting data").
			WithCause(err).
			Build()
	}

	zerolog.Ctx(ctx).Info().Str("table", table).Int("rows", len(records)).Msg("Records inserted")
	return &InsertResult{Table: table, Inserted: len(records)}, nil
}

func (s *ingestService) rejectDuplicates(ctx context.Context, table string, records []model.Record) error {
	callCtx, cancel := callContext(ctx, s.opts.CallTimeout)
	defer cancel()

	existing, err := s.duplicates.FindExistingIDs(callCtx, table, records)
	if err != nil {
		if errors.Is(err, warehouse.ErrTableNotFound) {
			return utils.NewTableNotFoundError(table)
		}
		return utils.NewErrorBuilder(utils.ErrCodeBackendError).
			WithMessage("Failed to check for duplicate ids").
			WithCause(err).
			Build()
	}
	if len(existing) == 0 {
		return nil
	}

	colliding := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		colliding[id] = struct{}{}
	}
	for _, r := range records {
		if id, ok := r.ID(); ok {
			if _, hit := colliding[id]; hit {
				s.invalid.Record(table, "id already exists in the table", r)
			}
		}
	}

	return utils.NewErrorBuilder(utils.ErrCodeDuplicateIDs).
		WithMessagef("%d id(s) already exist in table '%s'", len(existing), table).
		WithData(map[string][]int64{"ids": existing}).
		Build()
}

func (s *ingestService) verifyTable(ctx context.Context, table string) error {
	callCtx, cancel := callContext(ctx, s.opts.CallTimeout)
	defer cancel()

	exists, err := s.warehouse.TableExists(callCtx, table)
	if err != nil {
		return utils.NewErrorBuilder(utils.ErrCodeTableVerifyFailed).
			WithMessagef("Error verifying table '%s'", table).
			WithCause(err).
			Build()
	}
	if !exists {
		return utils.NewTableNotFoundError(table)
	}
	return nil
}

// LoadTable replaces table with {csv_prefix}/{table}.csv, creating the table when absent
func (s *ingestService) LoadTable(ctx context.Context, table string) (*model.LoadResult, error) {
	tableSchema, err := s.validator.Schema(table)
	if err != nil {
		return nil, err
	}

	file := storage.Join(s.opts.CSVPrefix, table+".csv")
	op := s.recorder.Start(ctx, model.OperationLoad, table)
	op.Artifact = file

	err = s.loadCSV(ctx, tableSchema, file)
	s.recorder.Finish(ctx, op, err)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("table", table).Str("file", file).Msg("Table loaded from CSV")
	return &model.LoadResult{
		File:    file,
		Table:   table,
		Message: fmt.Sprintf("Table '%s' loaded from %s", table, s.store.URI(file)),
	}, nil
}

func (s *ingestService) loadCSV(ctx context.Context, tableSchema model.TableSchema, file string) error {
	table := tableSchema.Table

	release, err := s.locks.Acquire(ctx, table)
	if err != nil {
		return lockError(table, err)
	}
	defer release()

	callCtx, cancel := callContext(ctx, s.opts.CallTimeout)
	defer cancel()

	exists, err := s.warehouse.TableExists(callCtx, table)
	if err != nil {
		return utils.NewErrorBuilder(utils.ErrCodeTableVerifyFailed).
			WithMessagef("Error verifying table '%s'", table).
			WithCause(err).
			Build()
	}
	if !exists {
		if err := s.warehouse.CreateTable(callCtx, tableSchema); err != nil {
			return utils.NewErrorBuilder(utils.ErrCodeLoadFailed).
				WithMessagef("Error creating table '%s'", table).
				WithCause(err).
				Build()
		}
		zerolog.Ctx(ctx).Info().Str("table", table).Msg("Table created from registered schema")
	}

	if err := s.warehouse.LoadCSV(callCtx, tableSchema, s.store.URI(file), s.opts.SkipLeadingRows); err != nil {
		return utils.NewErrorBuilder(utils.ErrCodeLoadFailed).
			WithMessagef("Error loading '%s' into table '%s'", file, table).
			WithCause(err).
			Build()
	}
	return nil
}

// LoadAll loads every .csv directly under the CSV prefix. A failing file is
// reported in its entry and does not stop the others.
func (s *ingestService) LoadAll(ctx context.Context) ([]model.LoadResult, error) {
	prefix := storage.Join(s.opts.CSVPrefix)
	listPrefix := prefix
	if listPrefix != "" {
		listPrefix += "/"
	}

	objects, err := s.store.List(ctx, listPrefix)
	if err != nil {
		return nil, utils.NewErrorBuilder(utils.ErrCodeBackendError).
			WithMessage("Failed to list bucket").
			WithCause(err).
			Build()
	}

	files := make([]string, 0)
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Name, ".csv") || strings.Trim(path.Dir(obj.Name), "/.") != prefix {
			continue
		}
		files = append(files, obj.Name)
	}
	if len(files) == 0 {
		return nil, utils.NewErrorBuilder(utils.ErrCodeNoCSVFiles).
			WithMessage("No csv files found in bucket").
			Build()
	}
	sort.Strings(files)

	results := make([]model.LoadResult, 0, len(files))
	for _, file := range files {
		table := strings.TrimSuffix(path.Base(file), ".csv")
		result := model.LoadResult{File: file, Table: table}

		loaded, err := s.LoadTable(ctx, table)
		if err != nil {
			result.Error = utils.AsAppError(err).Message
			if details := utils.AsAppError(err).Details; details != "" {
				result.Error += ": " + details
			}
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", file).Msg("CSV load failed")
		} else {
			result.Message = loaded.Message
		}
		results = append(results, result)
	}
	return results, nil
}

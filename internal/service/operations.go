package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"hiring-gateway/internal/model"
	"hiring-gateway/internal/repository"
	"hiring-gateway/internal/utils"
)

type actorKey struct{}

// WithActor attaches the authenticated caller to ctx for the operation journal
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// OperationObserver is told about every finished operation
type OperationObserver interface {
	ObserveOperation(op *model.Operation, elapsed time.Duration)
}

// OperationRecorder journals load, backup and restore runs. Journal failures
// are logged and never fail the operation itself.
type OperationRecorder struct {
	repo     repository.OperationRepository
	observer OperationObserver
}

// NewOperationRecorder creates a recorder. Both arguments may be nil.
func NewOperationRecorder(repo repository.OperationRepository, observer OperationObserver) *OperationRecorder {
	return &OperationRecorder{repo: repo, observer: observer}
}

// Start records a running operation
func (r *OperationRecorder) Start(ctx context.Context, kind model.OperationKind, table string) *model.Operation {
	op := &model.Operation{
		Kind:      kind,
		Table:     table,
		Status:    model.OperationRunning,
		Actor:     actorFrom(ctx),
		StartedAt: time.Now().UTC(),
	}
	if r == nil || r.repo == nil {
		return op
	}
	if err := r.repo.Create(context.WithoutCancel(ctx), op); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("kind", string(kind)).Str("table", table).Msg("Failed to journal operation start")
	}
	return op
}

// Finish stamps the outcome and persists it
func (r *OperationRecorder) Finish(ctx context.Context, op *model.Operation, err error) {
	op.Finish(err)
	if r == nil {
		return
	}
	if r.observer != nil {
		r.observer.ObserveOperation(op, op.FinishedAt.Sub(op.StartedAt))
	}
	if r.repo == nil || op.ID == "" {
		return
	}
	if uerr := r.repo.Update(context.WithoutCancel(ctx), op); uerr != nil {
		zerolog.Ctx(ctx).Warn().Err(uerr).Str("operation_id", op.ID).Msg("Failed to journal operation result")
	}
}

// List returns journal entries, newest first
func (r *OperationRecorder) List(ctx context.Context, filter repository.OperationFilter) ([]*model.Operation, int64, error) {
	if r == nil || r.repo == nil {
		return []*model.Operation{}, 0, nil
	}
	return r.repo.List(ctx, filter)
}

// Get returns one journal entry
func (r *OperationRecorder) Get(ctx context.Context, id string) (*model.Operation, error) {
	if r == nil || r.repo == nil {
		return nil, utils.NewErrorBuilder(utils.ErrCodeNotFound).WithMessage("Operation journal is disabled").Build()
	}

	op, err := r.repo.GetByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrInvalidUUID):
		return nil, utils.NewValidationError("Invalid operation id", id)
	case errors.Is(err, repository.ErrOperationNotFound):
		return nil, utils.NewErrorBuilder(utils.ErrCodeNotFound).WithMessagef("Operation '%s' not found", id).Build()
	case err != nil:
		return nil, utils.NewErrorBuilder(utils.ErrCodeBackendError).WithMessage("Failed to read operation").WithCause(err).Build()
	}
	return op, nil
}

// Stats counts journal entries by status
func (r *OperationRecorder) Stats(ctx context.Context) (map[model.OperationStatus]int64, error) {
	if r == nil || r.repo == nil {
		return map[model.OperationStatus]int64{}, nil
	}
	return r.repo.CountByStatus(ctx)
}

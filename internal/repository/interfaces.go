package repository

import (
	"context"

	"hiring-gateway/internal/model"
)

// OperationFilter narrows a journal listing. Zero values match everything.
type OperationFilter struct {
	Table  string
	Kind   model.OperationKind
	Status model.OperationStatus
	Limit  int
	Offset int
}

// OperationRepository defines the interface for the operation journal
type OperationRepository interface {
	// Create records a new operation
	Create(ctx context.Context, op *model.Operation) error

	// Update saves the operation's current state
	Update(ctx context.Context, op *model.Operation) error

	// GetByID retrieves an operation by its UUID
	GetByID(ctx context.Context, id string) (*model.Operation, error)

	// List returns matching operations, newest first, and the total match count
	List(ctx context.Context, filter OperationFilter) ([]*model.Operation, int64, error)

	// CountByStatus returns the count of operations by status
	CountByStatus(ctx context.Context) (map[model.OperationStatus]int64, error)
}

package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hiring-gateway/internal/model"
)

const defaultListLimit = 50

type operationRepository struct {
	db *gorm.DB
}

// NewOperationRepository creates a new instance of OperationRepository
func NewOperationRepository(db *gorm.DB) OperationRepository {
	return &operationRepository{db: db}
}

// Migrate creates or updates the journal table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Operation{})
}

// Create records a new operation
func (r *operationRepository) Create(ctx context.Context, op *model.Operation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

// Update saves the operation's current state
func (r *operationRepository) Update(ctx context.Context, op *model.Operation) error {
	return r.db.WithContext(ctx).Save(op).Error
}

// GetByID retrieves an operation by its UUID
func (r *operationRepository) GetByID(ctx context.Context, id string) (*model.Operation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidUUID
	}

	var op model.Operation
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&op)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOperationNotFound
		}
		return nil, result.Error
	}
	return &op, nil
}

// List returns matching operations, newest first
func (r *operationRepository) List(ctx context.Context, filter OperationFilter) ([]*model.Operation, int64, error) {
	var ops []*model.Operation
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Operation{})

	if filter.Table != "" {
		query = query.Where("table_name = ?", filter.Table)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	// Get total count
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	result := query.Limit(limit).Offset(filter.Offset).Order("started_at DESC").Find(&ops)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return ops, total, nil
}

// CountByStatus returns the count of operations by status
func (r *operationRepository) CountByStatus(ctx context.Context) (map[model.OperationStatus]int64, error) {
	var results []struct {
		Status model.OperationStatus
		Count  int64
	}

	err := r.db.WithContext(ctx).Model(&model.Operation{}).Select("status, COUNT(*) as count").Group("status").Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.OperationStatus]int64)
	for _, result := range results {
		counts[result.Status] = result.Count
	}

	return counts, nil
}

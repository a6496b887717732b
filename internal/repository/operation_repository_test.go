package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hiring-gateway/internal/model"
)

func newTestRepository(t *testing.T) OperationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))

	return NewOperationRepository(db)
}

func TestCreateAndFinishOperation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	op := &model.Operation{
		Kind:      model.OperationRestore,
		Table:     "jobs",
		Status:    model.OperationRunning,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, op))
	require.NotEmpty(t, op.ID)

	op.Rows = 183
	op.Rebuilt = true
	op.Finish(errors.New("reload failed"))
	require.NoError(t, repo.Update(ctx, op))

	got, err := repo.GetByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OperationFailed, got.Status)
	assert.Equal(t, "reload failed", got.Error)
	assert.Equal(t, int64(183), got.Rows)
	assert.True(t, got.Rebuilt)
	assert.NotNil(t, got.FinishedAt)
}

func TestGetByIDErrors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.GetByID(ctx, "not-a-uuid")
	assert.Equal(t, ErrInvalidUUID, err)

	_, err = repo.GetByID(ctx, "4a8e0c4e-8f0b-4f6e-9d43-0c1f2f7d2b11")
	assert.Equal(t, ErrOperationNotFound, err)
}

func TestListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		kind  model.OperationKind
		table string
	}{
		{model.OperationLoad, "jobs"},
		{model.OperationBackup, "jobs"},
		{model.OperationBackup, "departments"},
		{model.OperationRestore, "jobs"},
	}
	for i, s := range seed {
		op := &model.Operation{Kind: s.kind, Table: s.table, Status: model.OperationSucceeded, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.Create(ctx, op))
	}

	ops, total, err := repo.List(ctx, OperationFilter{Table: "jobs"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, ops, 3)
	assert.Equal(t, model.OperationRestore, ops[0].Kind)
	assert.Equal(t, model.OperationLoad, ops[2].Kind)

	ops, total, err = repo.List(ctx, OperationFilter{Kind: model.OperationBackup, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, ops, 1)
	assert.Equal(t, "departments", ops[0].Table)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[model.OperationSucceeded])
}

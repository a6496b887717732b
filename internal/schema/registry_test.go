package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-gateway/internal/model"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()

	assert.Equal(t, []string{TableDepartments, TableHiredEmployees, TableJobs}, reg.Tables())

	hired, ok := reg.Lookup(TableHiredEmployees)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "datetime", "department_id", "job_id"}, hired.ColumnNames())
	assert.Equal(t, model.TypeInteger, hired.Columns[0].Type)
	assert.False(t, hired.Columns[0].Nullable)
	assert.True(t, hired.Columns[1].Nullable)

	_, ok = reg.Lookup("employees")
	assert.False(t, ok)
}

func TestLookupReturnsCopy(t *testing.T) {
	reg := Default()

	jobs, ok := reg.Lookup(TableJobs)
	require.True(t, ok)
	jobs.Columns[0].Name = "mutated"

	again, _ := reg.Lookup(TableJobs)
	assert.Equal(t, "id", again.Columns[0].Name)
}

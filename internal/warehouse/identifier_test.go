package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualifiedTable(t *testing.T) {
	q, err := QualifiedTable("my-project-1", "hiring", "hired_employees")
	require.NoError(t, err)
	assert.Equal(t, "`my-project-1.hiring.hired_employees`", q)

	for _, table := range []string{"jobs`; DROP TABLE x; --", "jobs.other", "", "1jobs", "jobs name"} {
		_, err := QualifiedTable("my-project-1", "hiring", table)
		assert.Error(t, err, table)
	}

	_, err = QualifiedTable("My Project", "hiring", "jobs")
	assert.Error(t, err)
}

func TestColumnDDL(t *testing.T) {
	ddl, err := ColumnDDL([]string{"id", "department"}, []string{"INT64", "string"})
	require.NoError(t, err)
	assert.Equal(t, "`id` INT64, `department` STRING", ddl)

	ddl, err = ColumnDDL([]string{"price"}, []string{"NUMERIC(10, 2)"})
	require.NoError(t, err)
	assert.Equal(t, "`price` NUMERIC(10, 2)", ddl)

	_, err = ColumnDDL([]string{"id"}, []string{"INT64) AS SELECT 1; --"})
	assert.Error(t, err)

	_, err = ColumnDDL(nil, nil)
	assert.Error(t, err)
}

func TestIsStreamingBufferError(t *testing.T) {
	assert.True(t, IsStreamingBufferError(ErrStreamingBuffer))
	assert.False(t, IsStreamingBufferError(assert.AnError))
	raw := rawError("UPDATE or DELETE statement over table p.d.t would affect rows in the streaming buffer, which is not supported")
	assert.True(t, IsStreamingBufferError(raw))
}

type rawError string

func (e rawError) Error() string { return string(e) }

package backup

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-gateway/internal/model"
)

func TestEncodeDecodeKeepsValuesByName(t *testing.T) {
	columns := []model.LiveColumn{
		{Name: "id", DataType: "INT64"},
		{Name: "name", DataType: "STRING"},
		{Name: "datetime", DataType: "STRING"},
		{Name: "department_id", DataType: "INT64"},
	}
	rows := []model.Record{
		{"id": model.Int(1), "name": model.String("Ada"), "datetime": model.String("2021-01-02 03:04:05"), "department_id": model.Int(7)},
		{"id": model.Int(2), "name": model.Null(), "datetime": model.String("2021-06-01 00:00:00")},
	}

	var buf bytes.Buffer
	enc := &Encoder{Table: "hired_employees"}
	require.NoError(t, enc.Encode(&buf, columns, rows))

	decoded, err := NewAvroDecoder().Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.Equal(t, model.Int(1), decoded[0]["id"])
	assert.Equal(t, model.String("Ada"), decoded[0]["name"])
	assert.Equal(t, model.Int(7), decoded[0]["department_id"])

	assert.True(t, decoded[1]["name"].IsNull())
	assert.True(t, decoded[1]["department_id"].IsNull())
	assert.Equal(t, model.String("2021-06-01 00:00:00"), decoded[1]["datetime"])
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := NewAvroDecoder().Decode(strings.NewReader("id,name\n1,Ada\n"))
	assert.Error(t, err)
}

func TestDecodeTruncatedContainer(t *testing.T) {
	var buf bytes.Buffer
	enc := &Encoder{Table: "jobs"}
	cols := []model.LiveColumn{{Name: "id", DataType: "INT64"}, {Name: "job", DataType: "STRING"}}
	rows := make([]model.Record, 0, 50)
	for i := 0; i < 50; i++ {
		rows = append(rows, model.Record{"id": model.Int(int64(i)), "job": model.String(strings.Repeat("x", 40))})
	}
	require.NoError(t, enc.Encode(&buf, cols, rows))

	truncated := buf.Bytes()[:buf.Len()-20]
	_, err := NewAvroDecoder().Decode(bytes.NewReader(truncated))
	assert.Error(t, err)
}

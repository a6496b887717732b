// Package warehouse defines the columnar warehouse the gateway loads into,
// queries and restores, with a BigQuery implementation and an in-memory one.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hiring-gateway/internal/model"
)

var (
	// ErrTableNotFound is returned when the target table does not exist
	ErrTableNotFound = errors.New("table not found")
	// ErrStreamingBuffer is returned when a DML statement would touch rows that
	// are still in the streaming write buffer
	ErrStreamingBuffer = errors.New("table has rows in the streaming buffer")
)

// streamingBufferMessage is the fragment BigQuery puts in DML errors that hit buffered rows
const streamingBufferMessage = "would affect rows in the streaming buffer"

// ColumnOrdering selects how live columns are ordered by ordinal position
type ColumnOrdering int

const (
	OrdinalAscending ColumnOrdering = iota
	// OrdinalDescending reproduces the historical restore behaviour and reverses table order
	OrdinalDescending
)

// Warehouse is everything the gateway needs from the columnar backend
type Warehouse interface {
	TableExists(ctx context.Context, table string) (bool, error)
	// CreateTable creates a table from a registered schema
	CreateTable(ctx context.Context, schema model.TableSchema) error
	// LoadCSV replaces the table's contents with the CSV object at uri
	LoadCSV(ctx context.Context, schema model.TableSchema, uri string, skipLeadingRows int64) error

	// ExistingIDs returns the subset of ids already present in table
	ExistingIDs(ctx context.Context, table string, ids []int64) ([]int64, error)
	// InsertRows streams rows into table. Row-level rejections come back as RowErrors.
	InsertRows(ctx context.Context, table string, rows []model.Record) error

	// ExportTable writes the full table as an Avro container to uri and waits for completion
	ExportTable(ctx context.Context, table string, uri string) error

	ColumnOrder(ctx context.Context, table string, ordering ColumnOrdering) ([]string, error)
	// ColumnTypes returns name/type pairs in ascending ordinal order
	ColumnTypes(ctx context.Context, table string) ([]model.LiveColumn, error)
	// DeleteAllRows fails with ErrStreamingBuffer while buffered rows exist
	DeleteAllRows(ctx context.Context, table string) error
	DropTable(ctx context.Context, table string) error
	CreateTableFromColumns(ctx context.Context, table string, columns []model.LiveColumn) error
	// LoadRows replaces the table's contents with rows (truncate on write)
	LoadRows(ctx context.Context, table string, rows []model.OrderedRecord) error
	// StreamingBufferEmpty reports whether the table has no buffered streaming rows
	StreamingBufferEmpty(ctx context.Context, table string) (bool, error)

	QuarterlyHires(ctx context.Context, year int, limit int) ([]model.QuarterlyHires, error)
	DepartmentsAboveMean(ctx context.Context, year int, limit int) ([]model.DepartmentHires, error)

	Ping(ctx context.Context) error
	Close() error
}

// RowError is the warehouse's diagnostic for one rejected row
type RowError struct {
	Index    int      `json:"index"`
	InsertID string   `json:"insertId,omitempty"`
	Errors   []string `json:"errors"`
}

// RowErrors is returned by InsertRows when the warehouse rejects rows.
// It does not say which of the other rows landed.
type RowErrors []RowError

func (e RowErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, r := range e {
		parts = append(parts, fmt.Sprintf("row %d: %s", r.Index, strings.Join(r.Errors, "; ")))
	}
	return fmt.Sprintf("%d row(s) rejected: %s", len(e), strings.Join(parts, ", "))
}

// IsStreamingBufferError matches both the sentinel and raw backend messages
func IsStreamingBufferError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrStreamingBuffer) || strings.Contains(err.Error(), streamingBufferMessage)
}

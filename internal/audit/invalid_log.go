// Package audit records ingest requests that were rejected, one JSON line per record.
package audit

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"hiring-gateway/internal/model"
)

// InvalidRecordLog receives every record that fails validation
type InvalidRecordLog interface {
	Record(table, reason string, record model.Record)
}

// Log writes invalid records as JSON lines with time, table, reason and record fields
type Log struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

// NewLog writes entries to w
func NewLog(w io.Writer) *Log {
	return &Log{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// OpenFile appends entries to the file at path, creating it when absent
func OpenFile(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open invalid transaction log: %w", err)
	}
	l := NewLog(f)
	l.closer = f
	return l, nil
}

func (l *Log) Record(table, reason string, record model.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Log().
		Str("table", table).
		Str("reason", reason).
		Interface("record", record).
		Msg("")
}

func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Discard drops every entry
type Discard struct{}

func (Discard) Record(string, string, model.Record) {}

package service

import (
	"context"
	"sync"

	"hiring-gateway/internal/utils"
)

// TableLocks serialises mutating work per table. Inserts and restores of the
// same table take the same lock, so a duplicate check and its insert cannot
// interleave with another insert or a restore inside this process.
type TableLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// lockError reports a failed Acquire. A deadline maps to TIMEOUT and a
// cancelled request to REQUEST_CANCELED.
func lockError(table string, err error) error {
	return utils.NewErrorBuilder(utils.ErrCodeTimeout).
		WithMessagef("Timed out waiting for table '%s'", table).
		WithCause(err).
		Build()
}

// NewTableLocks creates an empty lock set
func NewTableLocks() *TableLocks {
	return &TableLocks{locks: make(map[string]chan struct{})}
}

func (l *TableLocks) slot(table string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[table]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[table] = ch
	}
	return ch
}

// Acquire blocks until table's lock is held or ctx is done. The returned
// release func must be called exactly once.
func (l *TableLocks) Acquire(ctx context.Context, table string) (func(), error) {
	ch := l.slot(table)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

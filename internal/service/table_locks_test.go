package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableLocksSerialisePerTable(t *testing.T) {
	locks := NewTableLocks()
	ctx := context.Background()

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, "jobs")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func TestTableLocksIndependentTables(t *testing.T) {
	locks := NewTableLocks()
	ctx := context.Background()

	releaseJobs, err := locks.Acquire(ctx, "jobs")
	require.NoError(t, err)
	defer releaseJobs()

	releaseDepartments, err := locks.Acquire(ctx, "departments")
	require.NoError(t, err)
	releaseDepartments()
}

func TestTableLocksHonourContext(t *testing.T) {
	locks := NewTableLocks()

	release, err := locks.Acquire(context.Background(), "jobs")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.Acquire(ctx, "jobs")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()

	again, err := locks.Acquire(context.Background(), "jobs")
	require.NoError(t, err)
	again()
}

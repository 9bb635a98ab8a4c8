package chunkuploader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_BoundedParallelism(t *testing.T) {
	const size = 3
	pool := newWorkerPool(size, nil)

	var running, peak int32
	for i := 1; i <= 12; i++ {
		partNumber := i
		err := pool.Submit(context.Background(), func() (PartResult, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return PartResult{PartNumber: partNumber, ETag: "x"}, nil
		})
		require.NoError(t, err)
	}

	results, err := pool.Wait()
	require.NoError(t, err)
	assert.Len(t, results, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(size))
}

func TestWorkerPool_FirstFailureWins(t *testing.T) {
	var failures int32
	pool := newWorkerPool(2, func() { atomic.AddInt32(&failures, 1) })

	first := errors.New("first")
	second := errors.New("second")

	require.NoError(t, pool.Submit(context.Background(), func() (PartResult, error) {
		return PartResult{}, first
	}))
	_, err := pool.Wait()
	require.Equal(t, first, err)

	pool.fail(second)
	_, err = pool.Wait()
	assert.Equal(t, first, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&failures))
}

func TestWorkerPool_SubmitAfterCancel(t *testing.T) {
	pool := newWorkerPool(1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := pool.Submit(ctx, func() (PartResult, error) {
		called = true
		return PartResult{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	results, err := pool.Wait()
	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
}

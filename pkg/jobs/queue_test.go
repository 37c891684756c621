package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Offer(Job{ID: "j", Kind: "audit"}))
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&handled) == 5 }, time.Second, 10*time.Millisecond)
}

func TestQueueRetriesUntilLimit(t *testing.T) {
	var attempts int32
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Offer(Job{ID: "r"}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestOfferRejectsWhenNotRunning(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Offer(Job{ID: "x"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestOfferRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1, DrainTimeout: 10 * time.Millisecond})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.Offer(Job{ID: "1"}))
	assert.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Offer(Job{ID: "2"}))
	assert.ErrorIs(t, q.Offer(Job{ID: "3"}), ErrQueueFull)
}

func TestStopWaitsForRunningJob(t *testing.T) {
	started := make(chan struct{})
	var finished, cancelled int32
	q := NewQueue("drain", func(ctx context.Context, job Job) error {
		close(started)
		select {
		case <-time.After(50 * time.Millisecond):
			atomic.StoreInt32(&finished, 1)
		case <-ctx.Done():
			atomic.StoreInt32(&cancelled, 1)
		}
		return nil
	}, QueueConfig{Workers: 1, DrainTimeout: time.Second})
	q.Start(context.Background())

	require.NoError(t, q.Offer(Job{ID: "last"}))
	<-started
	require.Equal(t, 0, q.Len())

	q.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
	assert.Equal(t, int32(0), atomic.LoadInt32(&cancelled))
}

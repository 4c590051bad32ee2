package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int64
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})

	q.Start(context.Background())
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(Job{ID: fmt.Sprintf("job-%d", i), Type: "noop"}))
	}
	q.Stop()

	assert.Equal(t, int64(4), atomic.LoadInt64(&processed))
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	var processed int64
	block := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-block
		atomic.AddInt64(&processed, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})

	q.Start(context.Background())
	// One job occupies the worker, the rest sit in the buffer.
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: fmt.Sprintf("job-%d", i), Type: "noop"}))
	}
	close(block)
	q.Stop()

	assert.Equal(t, int64(5), atomic.LoadInt64(&processed))
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		return nil
	}, QueueConfig{Workers: 1})

	q.Start(context.Background())
	q.Stop()

	err := q.Enqueue(Job{ID: "late", Type: "noop"})
	require.Error(t, err)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		return nil
	}, QueueConfig{Workers: 1})

	err := q.Enqueue(Job{ID: "early", Type: "noop"})
	require.Error(t, err)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int64
	done := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt64(&attempts, 1) < 2 {
			return fmt.Errorf("transient failure")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "flaky", Type: "noop"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	q.Stop()
	assert.GreaterOrEqual(t, atomic.LoadInt64(&attempts), int64(2))
}

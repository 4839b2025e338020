package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessQueue_RunsEnqueuedTasks(t *testing.T) {
	q := NewInProcessQueue(2, 8)

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	var ran int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(func(ctx context.Context) {
			atomic.AddInt32(&ran, 1)
			done <- struct{}{}
		}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for task to run")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
	cancel()
}

func TestInProcessQueue_PanicInTaskDoesNotKillWorker(t *testing.T) {
	q := NewInProcessQueue(1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.NoError(t, q.Enqueue(func(ctx context.Context) { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, q.Enqueue(func(ctx context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not recover from a panicking task")
	}
}

func TestInProcessQueue_DefaultsWorkersAndBacklog(t *testing.T) {
	q := NewInProcessQueue(0, 0)
	assert.Greater(t, q.workers, 0)
	assert.Equal(t, 256, cap(q.tasks))
}

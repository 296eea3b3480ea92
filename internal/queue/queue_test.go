package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/trendpress/internal/logger"
	"github.com/deusflow/trendpress/internal/metrics"
)

type taskCounter struct {
	mu       sync.Mutex
	outcomes map[string]int
	depth    int
}

func (c *taskCounter) RecordTask(_, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[outcome]++
}

func (c *taskCounter) SetQueueDepth(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.depth = n
}

func (c *taskCounter) count(outcome string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[outcome]
}

func newTestQueue(opts Options, rec Recorder) *Queue {
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return New(opts, rec, logger.Discard())
}

func TestQueue_RunsAllTasks(t *testing.T) {
	rec := &taskCounter{}
	q := newTestQueue(Options{Workers: 2, Size: 8}, rec)
	q.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Task{Kind: "generate", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, 5, rec.count(metrics.OutcomeOK))
}

func TestQueue_RetriesFailingTask(t *testing.T) {
	rec := &taskCounter{}
	q := newTestQueue(Options{Workers: 1, Attempts: 3}, rec)
	q.Start(context.Background())

	var calls atomic.Int32
	require.NoError(t, q.Enqueue(Task{Kind: "crawl", Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}}))

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, rec.count(metrics.OutcomeOK))
}

func TestQueue_PanicIsIsolated(t *testing.T) {
	rec := &taskCounter{}
	q := newTestQueue(Options{Workers: 1, Attempts: 3}, rec)
	q.Start(context.Background())

	var panics, after atomic.Int32
	require.NoError(t, q.Enqueue(Task{Kind: "generate", Run: func(context.Context) error {
		panics.Add(1)
		panic("boom")
	}}))
	require.NoError(t, q.Enqueue(Task{Kind: "generate", Run: func(context.Context) error {
		after.Add(1)
		return nil
	}}))

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, int32(1), panics.Load(), "panics are not retried")
	assert.Equal(t, int32(1), after.Load(), "worker survives a panic")
	assert.Equal(t, 1, rec.count(metrics.OutcomeFailed))
}

func TestQueue_TaskTimeout(t *testing.T) {
	q := newTestQueue(Options{Workers: 1, Timeout: 20 * time.Millisecond}, nil)
	q.Start(context.Background())

	errCh := make(chan error, 1)
	require.NoError(t, q.Enqueue(Task{Kind: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	}}))

	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, <-errCh, context.DeadlineExceeded)
}

func TestQueue_Full(t *testing.T) {
	q := newTestQueue(Options{Workers: 1, Size: 1}, nil)

	noop := Task{Run: func(context.Context) error { return nil }}
	require.NoError(t, q.Enqueue(noop))
	assert.ErrorIs(t, q.Enqueue(noop), ErrQueueFull)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Closed(t *testing.T) {
	q := newTestQueue(Options{}, nil)
	q.Start(context.Background())
	require.NoError(t, q.Shutdown(context.Background()))

	err := q.Enqueue(Task{Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, q.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestQueue_ShutdownGraceCancelsInFlight(t *testing.T) {
	q := newTestQueue(Options{Workers: 1, Grace: 20 * time.Millisecond, Timeout: time.Minute}, nil)
	q.Start(context.Background())

	started := make(chan struct{})
	require.NoError(t, q.Enqueue(Task{Kind: "stuck", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}))
	<-started

	err := q.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_StartContextCancelDrainsOnShutdown(t *testing.T) {
	rec := &taskCounter{}
	q := newTestQueue(Options{Workers: 1, Size: 8, Grace: 5 * time.Second, Timeout: time.Minute}, rec)
	startCtx, cancel := context.WithCancel(context.Background())
	q.Start(startCtx)

	started := make(chan struct{})
	release := make(chan struct{})
	var inFlightErr error
	require.NoError(t, q.Enqueue(Task{Kind: "generate", Run: func(ctx context.Context) error {
		close(started)
		<-release
		inFlightErr = ctx.Err()
		return nil
	}}))
	<-started

	var buffered atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Task{Kind: "generate", Run: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			buffered.Add(1)
			return nil
		}}))
	}

	// The signal context ends before Shutdown runs, as it does on SIGTERM.
	cancel()
	time.Sleep(10 * time.Millisecond)
	close(release)

	require.NoError(t, q.Shutdown(context.Background()))
	assert.NoError(t, inFlightErr)
	assert.Equal(t, int32(3), buffered.Load())
	assert.Equal(t, 4, rec.count(metrics.OutcomeOK))
	assert.Zero(t, rec.count(metrics.OutcomeSkipped))
}

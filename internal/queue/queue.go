// Package queue runs background tasks on a bounded worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/trendpress/internal/metrics"
	"github.com/deusflow/trendpress/internal/retry"
)

var (
	ErrQueueFull = errors.New("task queue is full")
	ErrClosed    = errors.New("task queue is closed")
)

// Task is one unit of background work. Run must be safe to call more than once.
type Task struct {
	Kind string
	Name string
	Run  func(ctx context.Context) error
}

type Recorder interface {
	RecordTask(kind, outcome string)
	SetQueueDepth(n int)
}

type Options struct {
	Workers    int
	Size       int
	Attempts   int
	RetryDelay time.Duration
	Timeout    time.Duration // per attempt
	Grace      time.Duration
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Size <= 0 {
		o.Size = 64
	}
	if o.Attempts <= 0 {
		o.Attempts = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Minute
	}
	if o.Grace <= 0 {
		o.Grace = 30 * time.Second
	}
}

type Queue struct {
	opts    Options
	tasks   chan Task
	metrics Recorder
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	group   *errgroup.Group
	cancel  context.CancelFunc
}

func New(opts Options, rec Recorder, logger *slog.Logger) *Queue {
	opts.defaults()
	return &Queue{
		opts:    opts,
		tasks:   make(chan Task, opts.Size),
		metrics: rec,
		logger:  logger,
	}
}

// Start launches the workers. Tasks enqueued before Start wait in the buffer.
// Workers keep the values of ctx but not its cancellation: only Shutdown stops
// them, so buffered work still drains after the caller's context is done.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.group = &errgroup.Group{}
	for i := 0; i < q.opts.Workers; i++ {
		id := i + 1
		q.group.Go(func() error {
			q.worker(ctx, id)
			return nil
		})
	}
	q.logger.Info("task queue started", "workers", q.opts.Workers, "size", q.opts.Size)
}

// Enqueue never blocks.
func (q *Queue) Enqueue(t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.tasks <- t:
		q.setDepth()
		q.logger.Debug("task enqueued", "kind", t.Kind, "name", t.Name)
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) Len() int {
	return len(q.tasks)
}

// Shutdown stops accepting tasks and drains the buffer. When ctx ends before the
// grace period is over, in-flight tasks are cancelled.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()

	timer := time.NewTimer(q.opts.Grace)
	defer timer.Stop()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("task queue drained")
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	q.logger.Warn("task queue grace period over, cancelling in-flight tasks", "pending", len(q.tasks))
	q.cancel()
	<-done
	return fmt.Errorf("task queue shutdown: %w", context.DeadlineExceeded)
}

func (q *Queue) worker(ctx context.Context, id int) {
	for t := range q.tasks {
		q.setDepth()
		if ctx.Err() != nil {
			q.record(t.Kind, metrics.OutcomeSkipped)
			continue
		}

		start := time.Now()
		err := q.execute(ctx, t)
		if err != nil {
			q.record(t.Kind, metrics.OutcomeFailed)
			q.logger.Error("task failed", "worker", id, "kind", t.Kind, "name", t.Name, "error", err)
			continue
		}
		q.record(t.Kind, metrics.OutcomeOK)
		q.logger.Info("task finished", "worker", id, "kind", t.Kind, "name", t.Name, "took", time.Since(start))
	}
}

func (q *Queue) execute(ctx context.Context, t Task) error {
	cfg := retry.RetryConfig{
		MaxAttempts: q.opts.Attempts,
		Delay:       q.opts.RetryDelay,
		Backoff:     true,
	}
	return retry.WithRetry(ctx, cfg, func() error {
		return q.attempt(ctx, t)
	})
}

// attempt runs a single try under its own deadline. A panic fails the task without retry.
func (q *Queue) attempt(ctx context.Context, t Task) (err error) {
	ctx, cancel := context.WithTimeout(ctx, q.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = retry.Permanent(fmt.Errorf("task panicked: %v", r))
		}
	}()
	return t.Run(ctx)
}

func (q *Queue) record(kind, outcome string) {
	if q.metrics != nil {
		q.metrics.RecordTask(kind, outcome)
	}
}

func (q *Queue) setDepth() {
	if q.metrics != nil {
		q.metrics.SetQueueDepth(len(q.tasks))
	}
}

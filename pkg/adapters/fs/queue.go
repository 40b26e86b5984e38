package fs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/tally/pkg/core"
)

type writeJob struct {
	fn   func() error
	done chan error
}

// writeQueue runs every mutation of the data file on a single goroutine, one
// at a time, in the order the jobs were handed over. Blocked senders on an
// unbuffered channel are served first-in first-out, which gives the total
// order.
type writeQueue struct {
	jobs    chan writeJob
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	logger  *slog.Logger

	mu      sync.Mutex
	applied int
	failed  int
}

func newWriteQueue(logger *slog.Logger) *writeQueue {
	q := &writeQueue{
		jobs:    make(chan writeJob),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	lifecycle.Go(context.Background(), q.run, lifecycle.WithErrorHandler(func(err error) {
		q.logger.Error("write queue stopped unexpectedly", "error", err)
	}))
	return q
}

func (q *writeQueue) run(ctx context.Context) error {
	defer close(q.stopped)
	for {
		select {
		case <-ctx.Done():
			q.once.Do(func() { close(q.stop) })
			return nil
		case <-q.stop:
			return nil
		case job := <-q.jobs:
			// Once accepted, a job always runs to completion.
			job.done <- q.exec(job.fn)
		}
	}
}

func (q *writeQueue) exec(fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: write panic: %v", core.ErrWrite, recovered)
			if q.logger.Enabled(context.Background(), slog.LevelDebug) {
				q.logger.Error("write panic", "error", err, "stack", string(debug.Stack()))
			} else {
				q.logger.Error("write panic", "error", err)
			}
		}
		q.mu.Lock()
		if err != nil {
			q.failed++
		} else {
			q.applied++
		}
		q.mu.Unlock()
	}()
	return fn()
}

// Enqueue hands fn to the writer goroutine and waits for its result. ctx only
// bounds the wait for the job to be accepted; an accepted job cannot be
// cancelled and its result is always returned.
func (q *writeQueue) Enqueue(ctx context.Context, fn func() error) error {
	job := writeJob{fn: fn, done: make(chan error, 1)}
	select {
	case q.jobs <- job:
	case <-q.stop:
		return core.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-job.done
}

// Close stops accepting jobs and waits until the job in flight, if any, has
// finished.
func (q *writeQueue) Close(ctx context.Context) error {
	q.once.Do(func() { close(q.stop) })
	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *writeQueue) isClosed() bool {
	select {
	case <-q.stop:
		return true
	default:
		return false
	}
}

func (q *writeQueue) stats() (applied, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.applied, q.failed
}

// Package queue serializes accepted runs. The browser session is
// single-tab-state, so runs execute one at a time; submissions arriving
// while one is in flight wait here in FIFO order.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/sells-group/xray-ledger/internal/models"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

type RunQueue struct {
	runs    []*models.RunRequest
	mu      sync.Mutex
	cond    *sync.Cond
	closed  bool
	running bool
}

func NewRunQueue() *RunQueue {
	q := &RunQueue{
		runs: make([]*models.RunRequest, 0),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a run in submission order.
func (q *RunQueue) Push(run *models.RunRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.runs = append(q.runs, run)
	q.cond.Signal()

	return nil
}

// Pop blocks until a run is available or the context ends. The waiter
// holds the lock through cond.Wait; context cancellation wakes it via a
// broadcast so no goroutine touches the mutex it does not own.
func (q *RunQueue) Pop(ctx context.Context) (*models.RunRequest, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.runs) == 0 && !q.closed {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		q.cond.Wait()
	}

	if q.closed && len(q.runs) == 0 {
		return nil, ErrQueueClosed
	}

	run := q.runs[0]
	q.runs = q.runs[1:]

	return run, nil
}

// Size reports how many runs are waiting.
func (q *RunQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.runs)
}

// SetRunning flips the in-flight flag the status endpoint reports.
func (q *RunQueue) SetRunning(running bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = running
}

// IsRunning reports whether a run is currently executing.
func (q *RunQueue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Close wakes all waiters; pending runs drain before ErrQueueClosed.
func (q *RunQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()

	return nil
}

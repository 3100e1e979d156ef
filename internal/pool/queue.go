// Package pool implements the bounded task queue and the fixed-size worker
// pool that drive connection handling. The queue is the single admission
// point for accepted connections: the acceptor blocks on Enqueue when all
// slots are taken, which throttles intake instead of letting connections
// pile up unbounded.
package pool

import (
	"errors"
	"net"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Enqueue once shutdown has begun.
var ErrQueueClosed = errors.New("task queue closed")

// Task wraps one accepted connection awaiting handling. It carries no
// identity beyond the connection itself and the time it was accepted.
type Task struct {
	Conn       net.Conn
	AcceptedAt time.Time
}

// Queue is a fixed-capacity FIFO of pending tasks, shared between a single
// producer (the acceptor) and the pool's workers. The buffered channel is
// the queue; the done channel unblocks producers and consumers on close.
type Queue struct {
	tasks chan Task
	done  chan struct{}
	once  sync.Once
}

// NewQueue returns a queue holding at most capacity tasks. A capacity
// below one is raised to one.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		tasks: make(chan Task, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue appends task, blocking while the queue is at capacity. After
// Close it fails fast with ErrQueueClosed instead of blocking forever.
// A task admitted concurrently with Close is not lost; it is drained by
// the workers before they exit.
func (q *Queue) Enqueue(task Task) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.tasks <- task:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Dequeue removes the oldest task, blocking while the queue is empty.
// The boolean is false once the queue is closed and fully drained.
func (q *Queue) Dequeue() (Task, bool) {
	select {
	case task := <-q.tasks:
		return task, true
	case <-q.done:
		// Closed: hand out whatever is still buffered, then report done.
		select {
		case task := <-q.tasks:
			return task, true
		default:
			return Task{}, false
		}
	}
}

// Close marks the queue closed. Blocked Enqueue calls return
// ErrQueueClosed; blocked Dequeue calls drain remaining tasks and then
// observe the close. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Depth reports how many tasks are currently waiting, in [0, Capacity].
func (q *Queue) Depth() int { return len(q.tasks) }

// Capacity reports the fixed maximum queue length.
func (q *Queue) Capacity() int { return cap(q.tasks) }

package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShutdownTimeout is wrapped by Shutdown when workers are still busy
// after the grace period. The condition is degraded but not fatal: queued
// work was stopped and the stragglers are reported to the caller.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// Pool owns a fixed set of long-lived workers that pull tasks from a
// shared queue and invoke the handler on each. Workers live until the
// queue is closed and drained.
type Pool struct {
	size   int
	queue  *Queue
	handle func(Task)

	started atomic.Bool
	wg      sync.WaitGroup
	busy    []atomic.Bool
}

// New builds a pool of size workers feeding from queue. A size below one
// is raised to one. The handler must not be nil.
func New(size int, queue *Queue, handle func(Task)) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:   size,
		queue:  queue,
		handle: handle,
		busy:   make([]atomic.Bool, size),
	}
}

// Size reports the configured number of workers.
func (p *Pool) Size() int { return p.size }

// Start spawns all workers. Calling Start again is a no-op.
func (p *Pool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.worker(i)
	}
}

// Busy reports how many workers are currently executing a task.
func (p *Pool) Busy() int {
	n := 0
	for i := range p.busy {
		if p.busy[i].Load() {
			n++
		}
	}
	return n
}

// Shutdown closes the queue so no further tasks are admitted, then waits
// up to timeout for the workers to finish in-flight and queued work. When
// the timeout expires first, it returns an error wrapping
// ErrShutdownTimeout that names the still-busy worker IDs; the caller
// decides whether to treat that as anything worse than a warning.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.queue.Close()
	if !p.started.Load() {
		return nil
	}

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-time.After(timeout):
		var stuck []int
		for i := range p.busy {
			if p.busy[i].Load() {
				stuck = append(stuck, i)
			}
		}
		return fmt.Errorf("%w after %s: workers still busy %v", ErrShutdownTimeout, timeout, stuck)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		task, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		p.busy[id].Store(true)
		p.handle(task)
		p.busy[id].Store(false)
	}
}

package pool_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/pool"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	q := pool.NewQueue(4)

	if err := q.Enqueue(pool.Task{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if got := q.Depth(); got != 1 {
		t.Fatalf("expected depth 1, got %d", got)
	}

	if _, ok := q.Dequeue(); !ok {
		t.Fatal("expected a task from dequeue")
	}
	if got := q.Depth(); got != 0 {
		t.Fatalf("expected depth 0 after dequeue, got %d", got)
	}
}

func TestQueueCapacityFloor(t *testing.T) {
	if got := pool.NewQueue(0).Capacity(); got != 1 {
		t.Fatalf("expected capacity floor of 1, got %d", got)
	}
	if got := pool.NewQueue(3).Capacity(); got != 3 {
		t.Fatalf("expected capacity 3, got %d", got)
	}
}

func TestQueueEnqueueBlocksAtCapacity(t *testing.T) {
	q := pool.NewQueue(2)
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(pool.Task{}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}

	unblocked := make(chan struct{})
	go func() {
		if err := q.Enqueue(pool.Task{}); err != nil {
			t.Errorf("blocked enqueue failed: %v", err)
		}
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("enqueue on a full queue should block")
	case <-time.After(50 * time.Millisecond):
	}

	if _, ok := q.Dequeue(); !ok {
		t.Fatal("expected a task from dequeue")
	}
	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after dequeue made room")
	}
}

func TestQueueEnqueueAfterCloseFails(t *testing.T) {
	q := pool.NewQueue(2)
	q.Close()

	err := q.Enqueue(pool.Task{})
	if !errors.Is(err, pool.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueDrainsAfterClose(t *testing.T) {
	q := pool.NewQueue(4)
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(pool.Task{}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}
	q.Close()

	// Queued tasks must still come out after close.
	for i := 0; i < 3; i++ {
		if _, ok := q.Dequeue(); !ok {
			t.Fatalf("expected task %d after close", i)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected dequeue to report closed once drained")
	}
}

func TestPoolProcessesAllTasks(t *testing.T) {
	q := pool.NewQueue(16)
	var handled int64
	p := pool.New(4, q, func(pool.Task) {
		atomic.AddInt64(&handled, 1)
	})
	p.Start()

	const n = 50
	for i := 0; i < n; i++ {
		if err := q.Enqueue(pool.Task{}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	if err := p.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if got := atomic.LoadInt64(&handled); got != n {
		t.Fatalf("expected %d handled tasks, got %d", n, got)
	}
}

func TestPoolStartIsIdempotent(t *testing.T) {
	q := pool.NewQueue(4)
	var handled int64
	p := pool.New(2, q, func(pool.Task) {
		atomic.AddInt64(&handled, 1)
	})
	p.Start()
	p.Start()
	p.Start()

	if err := q.Enqueue(pool.Task{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := p.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if got := atomic.LoadInt64(&handled); got != 1 {
		t.Fatalf("expected exactly 1 handled task, got %d", got)
	}
}

func TestPoolSizeFloor(t *testing.T) {
	q := pool.NewQueue(1)
	p := pool.New(0, q, func(pool.Task) {})
	if got := p.Size(); got != 1 {
		t.Fatalf("expected size floor of 1, got %d", got)
	}
}

func TestPoolShutdownTimeoutReportsStragglers(t *testing.T) {
	q := pool.NewQueue(2)
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)

	p := pool.New(1, q, func(pool.Task) {
		started.Done()
		<-release
	})
	p.Start()
	defer close(release)

	if err := q.Enqueue(pool.Task{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	started.Wait()

	err := p.Shutdown(50 * time.Millisecond)
	if !errors.Is(err, pool.ErrShutdownTimeout) {
		t.Fatalf("expected ErrShutdownTimeout, got %v", err)
	}
}

func TestPoolShutdownDrainsQueuedWork(t *testing.T) {
	q := pool.NewQueue(16)
	var handled int64
	p := pool.New(2, q, func(pool.Task) {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&handled, 1)
	})
	p.Start()

	const n = 10
	for i := 0; i < n; i++ {
		if err := q.Enqueue(pool.Task{}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	// Shutdown must let already-queued tasks finish, not abandon them.
	if err := p.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if got := atomic.LoadInt64(&handled); got != n {
		t.Fatalf("expected all %d queued tasks handled, got %d", n, got)
	}
}
